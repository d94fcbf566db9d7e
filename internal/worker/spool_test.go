package worker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOpenSpool(t *testing.T) {
	_, err := OpenSpool("")
	require.Error(t, err)

	root := filepath.Join(t.TempDir(), "spool")
	s, err := OpenSpool(root)
	require.NoError(t, err)
	assert.Equal(t, root, s.Root())
	for _, dir := range []string{ProcessingDir, DoneDir, FailedDir} {
		assert.DirExists(t, filepath.Join(root, dir))
	}
}

func TestIsJobFile(t *testing.T) {
	assert.True(t, IsJobFile("/spool/42.json"))
	assert.False(t, IsJobFile("/spool/.42.json"), "hidden files are still being written")
	assert.False(t, IsJobFile("/spool/42.json.tmp"))
	assert.False(t, IsJobFile("/spool/42.result.json"))
}

func TestSpool_PendingClaimFinish(t *testing.T) {
	s, err := OpenSpool(t.TempDir())
	require.NoError(t, err)
	writeFile(t, filepath.Join(s.Root(), "b.json"), "{}")
	writeFile(t, filepath.Join(s.Root(), "a.json"), "{}")
	writeFile(t, filepath.Join(s.Root(), ".c.json"), "{}")
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "dir.json"), 0o755))

	pending, err := s.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(s.Root(), "a.json"), filepath.Join(s.Root(), "b.json")}, pending)

	claimed, ok, err := s.Claim(pending[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(s.Root(), ProcessingDir, "a.json"), claimed)

	_, ok, err = s.Claim(pending[0])
	require.NoError(t, err)
	assert.False(t, ok, "a job is claimed once")

	now := time.Now().UTC().Truncate(time.Second)
	final, err := s.Finish(claimed, Result{BuildID: "7", Job: "a.json", Status: StatusSucceeded, StartedAt: now, FinishedAt: now})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), DoneDir, "a.json"), final)

	res, err := ReadResult(final)
	require.NoError(t, err)
	assert.Equal(t, "7", res.BuildID)
	assert.Equal(t, StatusSucceeded, res.Status)

	claimed, _, err = s.Claim(pending[1])
	require.NoError(t, err)
	final, err = s.Finish(claimed, Result{Job: "b.json", Status: StatusFailed, Error: "boom"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), FailedDir, "b.json"), final)
	res, err = ReadResult(final)
	require.NoError(t, err)
	assert.Equal(t, "boom", res.Error)
}

func TestSpool_Recover(t *testing.T) {
	s, err := OpenSpool(t.TempDir())
	require.NoError(t, err)
	writeFile(t, filepath.Join(s.Root(), ProcessingDir, "left.json"), "{}")

	released, err := s.Recover()
	require.NoError(t, err)
	assert.Equal(t, []string{"left.json"}, released)
	assert.FileExists(t, filepath.Join(s.Root(), "left.json"))
	assert.NoFileExists(t, filepath.Join(s.Root(), ProcessingDir, "left.json"))
}
