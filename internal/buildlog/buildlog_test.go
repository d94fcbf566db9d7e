package buildlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	assert.Equal(t, "\n\nfoo.src.rpm\n\nbuilt ok", Record([]string{PackageHeader("foo.src.rpm"), "built ok"}, []string{""}))
	assert.Equal(t, "out\nstderr\noops", Record([]string{"out"}, []string{"oops"}))
	assert.Equal(t, "", Record(nil, nil))
}

func TestAppendSafe_CreatesAndAppends(t *testing.T) {
	p := filepath.Join(t.TempDir(), FileName)

	require.NoError(t, AppendSafe(p, []string{"a"}, nil))
	require.NoError(t, AppendSafe(p, []string{"b"}, []string{"c"}))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ab\nstderr\nc", string(data))
}

func TestAppendSafe_MissingDirectory(t *testing.T) {
	err := AppendSafe(filepath.Join(t.TempDir(), "nope", FileName), []string{"a"}, nil)
	require.Error(t, err)
}

// TestAppendSafe_ConcurrentWritersDoNotInterleave hammers one file from many
// goroutines, each with its own descriptor, then checks every record is intact.
func TestAppendSafe_ConcurrentWritersDoNotInterleave(t *testing.T) {
	p := filepath.Join(t.TempDir(), FileName)
	const writers = 16
	const perWriter = 50
	payload := strings.Repeat("x", 8192)

	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				pkg := fmt.Sprintf("pkg-%02d-%03d.src.rpm", w, i)
				if err := AppendSafe(p, []string{"<<" + pkg + ">>", payload}, []string{"err-" + pkg, "|end>>"}); err != nil {
					errCh <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	content := string(data)

	records := strings.Split(content, "|end>>")
	require.Len(t, records, writers*perWriter+1)
	assert.Equal(t, "", records[len(records)-1])
	seen := make(map[string]bool, writers*perWriter)
	for _, rec := range records[:len(records)-1] {
		require.True(t, strings.HasPrefix(rec, "<<"), "record must start with its header")
		end := strings.Index(rec, ">>")
		require.Positive(t, end)
		pkg := rec[2:end]
		assert.Equal(t, "<<"+pkg+">>"+payload+StderrHeader+"err-"+pkg, rec)
		assert.False(t, seen[pkg], "duplicate record %s", pkg)
		seen[pkg] = true
	}
	assert.Len(t, seen, writers*perWriter)
}
