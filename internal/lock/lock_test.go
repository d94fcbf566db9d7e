package lock

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseMutualExclusion runs workers that each hold l while bumping a
// counter, and fails if two holders ever overlap.
func exerciseMutualExclusion(t *testing.T, newLocker func() Locker) {
	t.Helper()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := newLocker()
			for j := 0; j < 5; j++ {
				require.NoError(t, l.Lock(context.Background()))
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				require.NoError(t, l.Unlock())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMutex(t *testing.T) {
	m := NewMutex()
	exerciseMutualExclusion(t, func() Locker { return m })
}

func TestMutex_LockHonoursContext(t *testing.T) {
	m := NewMutex()
	require.NoError(t, m.Lock(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Lock(ctx), context.DeadlineExceeded)

	require.NoError(t, m.Unlock())
	assert.ErrorIs(t, m.Unlock(), ErrNotLocked)
}

func TestRegistry_SameKeySameLocker(t *testing.T) {
	r := NewRegistry()
	a, err := r.For(Key("alice", "proj"))
	require.NoError(t, err)
	b, err := r.For(Key("alice", "proj"))
	require.NoError(t, err)
	c, err := r.For(Key("bob", "proj"))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	// distinct keys do not block each other
	require.NoError(t, a.Lock(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Lock(ctx))
	require.NoError(t, c.Unlock())
	require.NoError(t, a.Unlock())
}

func TestFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "createrepo.lock")
	// a fresh File per goroutine gives each its own descriptor, as separate processes would have
	exerciseMutualExclusion(t, func() Locker { return NewFile(p) })
}

func TestFile_LockHonoursContext(t *testing.T) {
	p := filepath.Join(t.TempDir(), "createrepo.lock")
	holder := NewFile(p)
	require.NoError(t, holder.Lock(context.Background()))
	defer func() { _ = holder.Unlock() }()

	waiter := NewFile(p)
	waiter.interval = 5 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waiter.Lock(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, waiter.Unlock(), ErrNotLocked)
}
