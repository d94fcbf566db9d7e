// Package buildlog appends build output to the shared per-chroot log file.
//
// Several orchestrators, possibly in different processes, append to the same
// file. Every append holds an exclusive advisory flock on the file for the
// duration of a single write, so records never interleave.
package buildlog

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// FileName is the shared build log inside a chroot directory.
const FileName = "mockchain.log"

// StderrHeader separates the stderr blocks from the stdout blocks of a record.
const StderrHeader = "\nstderr\n"

// PackageHeader returns the delimiter written before a package's output.
func PackageHeader(pkg string) string {
	return "\n\n" + pkg + "\n\n"
}

// Record renders the stdout blocks followed, when any stderr block is
// non-empty, by StderrHeader and the stderr blocks.
func Record(out, errs []string) string {
	var b strings.Builder
	for _, s := range out {
		b.WriteString(s)
	}
	if hasContent(errs) {
		b.WriteString(StderrHeader)
		for _, s := range errs {
			b.WriteString(s)
		}
	}
	return b.String()
}

// AppendSafe appends Record(out, errs) to path under an exclusive file lock.
// The file is created if absent. The lock is released and the file closed on
// every return path.
func AppendSafe(path string, out, errs []string) (err error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open build log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close build log: %w", cerr)
		}
	}()

	fd := int(f.Fd())
	if err := flock(fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock build log: %w", err)
	}
	defer func() {
		if uerr := flock(fd, unix.LOCK_UN); uerr != nil && err == nil {
			err = fmt.Errorf("unlock build log: %w", uerr)
		}
	}()

	if _, err := f.WriteString(Record(out, errs)); err != nil {
		return fmt.Errorf("write build log: %w", err)
	}
	return nil
}

// flock retries on EINTR.
func flock(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if err != unix.EINTR {
			return err
		}
	}
}

func hasContent(blocks []string) bool {
	for _, s := range blocks {
		if s != "" {
			return true
		}
	}
	return false
}
