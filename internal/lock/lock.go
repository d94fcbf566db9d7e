// Package lock provides the publish lock shared by orchestrators that write
// repository metadata into the same chroot directory.
package lock

import "context"

// Locker is an acquire/release capability. Lock blocks until the lock is held
// or ctx is done.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Mutex is an in-process Locker whose Lock honours context cancellation.
type Mutex struct {
	ch chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

func (m *Mutex) Lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mutex) Unlock() error {
	select {
	case <-m.ch:
		return nil
	default:
		return ErrNotLocked
	}
}
