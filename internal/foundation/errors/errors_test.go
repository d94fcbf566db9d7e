package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "config.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "config.yaml", file)
	})

	t.Run("Error string with and without cause", func(t *testing.T) {
		plain := ConfigError("no chroot specified").Build()
		assert.Equal(t, "[config:fatal] no chroot specified", plain.Error())

		wrapped := WrapError(stderrors.New("exit status 1"), CategorySigning, "sign failed").Build()
		assert.Equal(t, "[signing:error] sign failed: exit status 1", wrapped.Error())
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := PipelineError("download failed").Build()
		derived := base.WithContext("package", "foo-1.0-1.src.rpm")

		_, ok := base.Context().Get("package")
		assert.False(t, ok)
		pkg, ok := derived.Context().GetString("package")
		assert.True(t, ok)
		assert.Equal(t, "foo-1.0-1.src.rpm", pkg)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *ClassifiedError
		category  ErrorCategory
		severity  ErrorSeverity
		retryable bool
	}{
		{"config", ConfigError("x").Build(), CategoryConfig, SeverityFatal, false},
		{"pipeline", PipelineError("x").Build(), CategoryBuild, SeverityError, true},
		{"signing", SigningError("x").Build(), CategorySigning, SeverityError, false},
		{"publish", PublishWarning("x").Build(), CategoryPublish, SeverityWarning, false},
		{"executor", ExecutorError("x").Build(), CategoryExecutor, SeverityFatal, false},
		{"network", NetworkError("x").Build(), CategoryNetwork, SeverityError, true},
		{"filesystem", FileSystemError("x").Build(), CategoryFileSystem, SeverityError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category())
			assert.Equal(t, tt.severity, tt.err.Severity())
			assert.Equal(t, tt.retryable, tt.err.CanRetry())
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestChainHelpers(t *testing.T) {
	inner := PipelineError("build failed").Build()
	wrapped := fmt.Errorf("attempt 1: %w", inner)

	assert.True(t, IsClassified(wrapped))
	assert.True(t, HasCategory(wrapped, CategoryBuild))
	assert.True(t, HasSeverity(wrapped, SeverityError))
	assert.Equal(t, CategoryBuild, GetCategory(wrapped))
	assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	assert.Equal(t, SeverityError, GetSeverity(stderrors.New("plain")))
	assert.True(t, stderrors.Is(wrapped, PipelineError("build failed").Build()))
	assert.False(t, stderrors.Is(wrapped, PipelineError("other").Build()))
}

func TestIsOrchestration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", stderrors.New("gpg: signing failed"), false},
		{"signing error", SigningError("sign failed").Build(), false},
		{"publish warning", PublishWarning("createrepo").Build(), false},
		{"pipeline error", PipelineError("download failed").Build(), true},
		{"config error", ConfigError("no chroot").Build(), true},
		{"wrapped pipeline error", fmt.Errorf("signer: %w", PipelineError("x").Build()), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOrchestration(tt.err))
		})
	}
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{"a": 1, "shared": "left"}
	b := ErrorContext{"b": 2, "shared": "right"}

	merged := a.Merge(b)
	assert.Equal(t, ErrorContext{"a": 1, "b": 2, "shared": "right"}, merged)
	assert.Equal(t, b, ErrorContext(nil).Merge(b))
	assert.Equal(t, a, a.Merge(nil))
}
