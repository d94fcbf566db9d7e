package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareBuildDir_CreatesChrootDir(t *testing.T) {
	root := t.TempDir()
	chrootDir := filepath.Join(root, "alice", "proj", "fedora30-x86_64")
	pkgDir := filepath.Join(chrootDir, "foo-1.0-1")

	require.NoError(t, PrepareBuildDir(chrootDir, pkgDir))

	info, err := os.Stat(chrootDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	// the package directory itself is created by the download, not here
	_, err = os.Stat(pkgDir)
	assert.True(t, os.IsNotExist(err))
}

func TestPrepareBuildDir_ClearsFailMarker(t *testing.T) {
	chrootDir := filepath.Join(t.TempDir(), "fedora30-x86_64")
	pkgDir := filepath.Join(chrootDir, "foo-1.0-1")
	require.NoError(t, MarkFailed(pkgDir))
	require.NoError(t, os.WriteFile(filepath.Join(pkgDir, "foo-1.0-1.x86_64.rpm"), []byte("rpm"), 0o644))
	require.True(t, HasFailMarker(pkgDir))

	require.NoError(t, PrepareBuildDir(chrootDir, pkgDir))

	assert.False(t, HasFailMarker(pkgDir))
	_, err := os.Stat(filepath.Join(pkgDir, "foo-1.0-1.x86_64.rpm"))
	assert.NoError(t, err, "other artifacts must be left alone")
}

func TestPrepareBuildDir_Idempotent(t *testing.T) {
	chrootDir := filepath.Join(t.TempDir(), "epel-7-x86_64")
	pkgDir := filepath.Join(chrootDir, "bar-2-1")

	require.NoError(t, PrepareBuildDir(chrootDir, pkgDir))
	before := listTree(t, filepath.Dir(chrootDir))
	require.NoError(t, PrepareBuildDir(chrootDir, pkgDir))
	assert.Equal(t, before, listTree(t, filepath.Dir(chrootDir)))
}

func TestPrepareBuildDir_ChrootPathIsFile(t *testing.T) {
	root := t.TempDir()
	chrootDir := filepath.Join(root, "c")
	require.NoError(t, os.WriteFile(chrootDir, []byte("x"), 0o644))
	require.Error(t, PrepareBuildDir(chrootDir, filepath.Join(chrootDir, "p")))
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.Walk(root, func(p string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		out = append(out, rel)
		return nil
	}))
	return out
}
