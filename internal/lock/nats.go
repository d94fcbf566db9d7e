package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yahoon/Copr/internal/natsclient"
)

// kvStore is the part of a JetStream KV bucket the lock needs.
type kvStore interface {
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, rev uint64) error
}

// NATS is a distributed Locker stored as a key in a JetStream KV bucket.
// The bucket TTL bounds how long a crashed holder can keep the lock.
type NATS struct {
	kv       kvStore
	key      string
	owner    string
	interval time.Duration

	mu  sync.Mutex
	rev uint64
}

// NewNATS returns a Locker for key in kv.
func NewNATS(kv *natsclient.KV, key string) *NATS {
	return newNATS(kv, key)
}

func newNATS(kv kvStore, key string) *NATS {
	host, _ := os.Hostname()
	return &NATS{
		kv:       kv,
		key:      SanitizeKey(key),
		owner:    fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()),
		interval: 250 * time.Millisecond,
	}
}

func (l *NATS) Lock(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		rev, err := l.kv.Create(ctx, l.key, []byte(l.owner))
		if err == nil {
			l.mu.Lock()
			l.rev = rev
			l.mu.Unlock()
			return nil
		}
		if !errors.Is(err, natsclient.ErrKeyExists) {
			return fmt.Errorf("acquire lock %s: %w", l.key, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *NATS) Unlock() error {
	l.mu.Lock()
	rev := l.rev
	l.rev = 0
	l.mu.Unlock()

	if rev == 0 {
		return ErrNotLocked
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.kv.Delete(ctx, l.key, rev); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// SanitizeKey maps an arbitrary key onto the KV key alphabet.
func SanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '=':
			return r
		default:
			return '_'
		}
	}, key)
}
