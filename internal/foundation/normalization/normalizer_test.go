package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backoff string

const (
	backoffFixed  backoff = "fixed"
	backoffLinear backoff = "linear"
)

func newBackoffNormalizer() *Normalizer[backoff] {
	return NewNormalizer(map[string]backoff{
		"fixed":    backoffFixed,
		"Linear ":  backoffLinear,
		"constant": backoffFixed,
	}, "")
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newBackoffNormalizer()

	tests := []struct {
		name  string
		input string
		want  backoff
	}{
		{"exact match", "fixed", backoffFixed},
		{"case insensitive", "LINEAR", backoffLinear},
		{"surrounding spaces", "  fixed  ", backoffFixed},
		{"alias", "constant", backoffFixed},
		{"unknown falls back to default", "jitter", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalizer_NormalizeWithError(t *testing.T) {
	n := newBackoffNormalizer()

	got, err := n.NormalizeWithError(" Linear")
	require.NoError(t, err)
	assert.Equal(t, backoffLinear, got)

	_, err = n.NormalizeWithError("jitter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"jitter"`)
	assert.Contains(t, err.Error(), "[constant fixed linear]")
}

func TestNormalizer_ValidKeysIsACopy(t *testing.T) {
	n := newBackoffNormalizer()
	keys := n.ValidKeys()
	assert.Equal(t, []string{"constant", "fixed", "linear"}, keys)

	keys[0] = "mutated"
	assert.Equal(t, "constant", n.ValidKeys()[0])
}
