package lock

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// File is a cross-process Locker backed by an advisory flock on path.
type File struct {
	path     string
	interval time.Duration

	mu sync.Mutex
	f  *os.File
}

// NewFile returns a Locker on path. The file is created on first Lock.
func NewFile(path string) *File {
	return &File{path: path, interval: 100 * time.Millisecond}
}

func (l *File) Lock(ctx context.Context) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if err != unix.EWOULDBLOCK && err != unix.EINTR {
			_ = f.Close()
			return fmt.Errorf("flock %s: %w", l.path, err)
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
	return nil
}

func (l *File) Unlock() error {
	l.mu.Lock()
	f := l.f
	l.f = nil
	l.mu.Unlock()

	if f == nil {
		return ErrNotLocked
	}
	defer func() { _ = f.Close() }()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	return nil
}
