// Package natsclient wraps the NATS JetStream connection shared by the event
// publisher and the distributed publish lock.
package natsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrKeyExists is returned by KV.Create when the key is already held.
var ErrKeyExists = errors.New("key exists")

// Client owns one NATS connection and its JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	url  string
}

// Connect dials url and creates a JetStream context.
func Connect(url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	conn, err := nats.Connect(url, nats.Name("coprbuilder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS client connected", "url", url)
	return &Client{conn: conn, js: js, url: url}, nil
}

// Publish sends data to subject through JetStream and waits for the ack.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// KeyValue opens bucket, creating it with the given per-key TTL if missing.
func (c *Client) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (*KV, error) {
	kv, err := c.js.KeyValue(ctx, bucket)
	if err == nil {
		return &KV{kv: kv}, nil
	}

	kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Copr publish locks",
		History:     1,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
	}
	slog.Info("Created KV bucket", "bucket", bucket, "ttl", ttl)
	return &KV{kv: kv}, nil
}

// Close closes the NATS connection.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// KV is the subset of a JetStream key-value bucket used for locking.
type KV struct {
	kv jetstream.KeyValue
}

// Create stores value under key only if the key does not exist yet.
// It returns ErrKeyExists when another holder owns the key.
func (k *KV) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := k.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, ErrKeyExists
		}
		return 0, err
	}
	return rev, nil
}

// Delete removes key if its last revision is still rev.
func (k *KV) Delete(ctx context.Context, key string, rev uint64) error {
	return k.kv.Delete(ctx, key, jetstream.LastRevision(rev))
}
