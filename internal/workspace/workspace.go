package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yahoon/Copr/internal/logfields"
)

// FailMarker is the file name signalling a previously failed attempt.
const FailMarker = "fail"

// PrepareBuildDir clears a stale fail marker under pkgDestPath and makes sure
// chrootDir exists. Calling it repeatedly leaves the tree unchanged.
func PrepareBuildDir(chrootDir, pkgDestPath string) error {
	marker := filepath.Join(pkgDestPath, FailMarker)
	if err := os.Remove(marker); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove fail marker: %w", err)
		}
	} else {
		slog.Debug("Removed stale fail marker", logfields.Path(marker))
	}

	if err := os.MkdirAll(chrootDir, 0o755); err != nil {
		return fmt.Errorf("failed to create chroot directory: %w", err)
	}
	return nil
}

// HasFailMarker reports whether pkgDestPath carries a fail marker.
func HasFailMarker(pkgDestPath string) bool {
	info, err := os.Stat(filepath.Join(pkgDestPath, FailMarker))
	return err == nil && info.Mode().IsRegular()
}

// MarkFailed writes the fail marker into pkgDestPath, creating the directory.
func MarkFailed(pkgDestPath string) error {
	if err := os.MkdirAll(pkgDestPath, 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(pkgDestPath, FailMarker), nil, fs.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write fail marker: %w", err)
	}
	return nil
}
