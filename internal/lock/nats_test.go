package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahoon/Copr/internal/natsclient"
)

type memKV struct {
	mu   sync.Mutex
	rev  uint64
	keys map[string]uint64
}

func newMemKV() *memKV { return &memKV{keys: make(map[string]uint64)} }

func (m *memKV) Create(_ context.Context, key string, _ []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return 0, natsclient.ErrKeyExists
	}
	m.rev++
	m.keys[key] = m.rev
	return m.rev, nil
}

func (m *memKV) Delete(_ context.Context, key string, rev uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] != rev {
		return errors.New("wrong last sequence")
	}
	delete(m.keys, key)
	return nil
}

func TestNATS_MutualExclusion(t *testing.T) {
	kv := newMemKV()
	exerciseMutualExclusion(t, func() Locker {
		l := newNATS(kv, "alice/proj")
		l.interval = time.Millisecond
		return l
	})
}

func TestNATS_LockHonoursContext(t *testing.T) {
	kv := newMemKV()
	holder := newNATS(kv, "alice/proj")
	require.NoError(t, holder.Lock(context.Background()))

	waiter := newNATS(kv, "alice/proj")
	waiter.interval = 5 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, waiter.Lock(ctx), context.DeadlineExceeded)

	require.NoError(t, holder.Unlock())
	assert.ErrorIs(t, holder.Unlock(), ErrNotLocked)
	require.NoError(t, waiter.Lock(context.Background()))
	require.NoError(t, waiter.Unlock())
}

type brokenKV struct{}

func (brokenKV) Create(context.Context, string, []byte) (uint64, error) {
	return 0, errors.New("no responders")
}
func (brokenKV) Delete(context.Context, string, uint64) error { return nil }

func TestNATS_BackendError(t *testing.T) {
	err := newNATS(brokenKV{}, "k").Lock(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "alice_proj", SanitizeKey("alice/proj"))
	assert.Equal(t, "a.b-c_d", SanitizeKey("a.b-c_d"))
	assert.Equal(t, "x__y", SanitizeKey("x @y"))
}
