// Package backend wires the configured collaborators of a build orchestrator:
// event persistence and broadcast, publish locks, signing, repository
// publishing, metrics and the remote executor.
package backend

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/yahoon/Copr/internal/callback"
	"github.com/yahoon/Copr/internal/config"
	"github.com/yahoon/Copr/internal/createrepo"
	"github.com/yahoon/Copr/internal/eventstore"
	"github.com/yahoon/Copr/internal/executor"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/lock"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/metrics"
	"github.com/yahoon/Copr/internal/natsclient"
	"github.com/yahoon/Copr/internal/remotebuild"
	"github.com/yahoon/Copr/internal/retry"
	"github.com/yahoon/Copr/internal/signer"
)

// ExecutorFactory returns the executor for one job.
type ExecutorFactory func(j job.Job) executor.Executor

// Backend holds the long-lived collaborators shared by all builds of a process.
type Backend struct {
	cfg    *config.Config
	logger *slog.Logger

	store     eventstore.Store
	events    *natsclient.Client
	locks     *lock.Registry
	signer    *signer.Command
	publisher createrepo.Publisher
	registry  *prom.Registry
	recorder  metrics.Recorder
	executors ExecutorFactory

	nats map[string]*natsclient.Client
}

// Option customizes a Backend.
type Option func(*Backend)

// WithExecutorFactory replaces the SSH executor, e.g. with executor.Fake for dry runs.
func WithExecutorFactory(f ExecutorFactory) Option {
	return func(b *Backend) { b.executors = f }
}

// WithPublisher replaces the createrepo command.
func WithPublisher(p createrepo.Publisher) Option {
	return func(b *Backend) { b.publisher = p }
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New opens the event store and NATS connections named by cfg. Close releases them.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Backend, error) {
	if cfg == nil {
		return nil, errors.ConfigError("no configuration").Build()
	}

	b := &Backend{
		cfg:       cfg,
		logger:    slog.Default(),
		signer:    signer.NewCommand(cfg.Signing.Binary, cfg.Signing.KeyDomain),
		publisher: createrepo.NewCommand(cfg.Createrepo.Binary),
		registry:  prom.NewRegistry(),
		nats:      make(map[string]*natsclient.Client),
	}
	b.recorder = metrics.NewPrometheusRecorder(b.registry)
	b.executors = func(j job.Job) executor.Executor {
		return executor.ForJob(cfg.Builder, cfg.Options, j, nil)
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.open(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) open(ctx context.Context) error {
	if path := b.cfg.Events.SQLitePath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create event store directory").
				WithContext("path", path).
				Build()
		}
		store, err := eventstore.NewSQLiteStore(path)
		if err != nil {
			return err
		}
		b.store = store
	}

	if url := b.cfg.Events.NATSURL; url != "" {
		client, err := b.natsClient(url)
		if err != nil {
			return err
		}
		b.events = client
	}

	locks, err := b.lockRegistry(ctx)
	if err != nil {
		return err
	}
	b.locks = locks
	return nil
}

func (b *Backend) natsClient(url string) (*natsclient.Client, error) {
	if c, ok := b.nats[url]; ok {
		return c, nil
	}
	c, err := natsclient.Connect(url)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	b.nats[url] = c
	return c, nil
}

func (b *Backend) lockRegistry(ctx context.Context) (*lock.Registry, error) {
	lc := b.cfg.Lock
	switch lc.Kind {
	case config.LockKindNone:
		return nil, nil
	case config.LockKindFile:
		dir := b.LockDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create lock directory").
				WithContext("path", dir).
				Build()
		}
		return lock.NewRegistryWith(func(key string) (lock.Locker, error) {
			return lock.NewFile(filepath.Join(dir, lock.SanitizeKey(key)+".lock")), nil
		}), nil
	case config.LockKindNATS:
		url := lc.NATSURL
		if url == "" {
			url = b.cfg.Events.NATSURL
		}
		client, err := b.natsClient(url)
		if err != nil {
			return nil, err
		}
		ttl, _ := time.ParseDuration(lc.TTL)
		kv, err := client.KeyValue(ctx, lc.Bucket, ttl)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to open lock bucket").
				WithContext("bucket", lc.Bucket).
				Build()
		}
		return lock.NewRegistryWith(func(key string) (lock.Locker, error) {
			return lock.NewNATS(kv, key), nil
		}), nil
	default:
		return lock.NewRegistry(), nil
	}
}

// LockDir is where file locks live: next to the results tree when one is
// configured, otherwise in the system temp directory.
func (b *Backend) LockDir() string {
	if b.cfg.Build.DestDir != "" {
		return filepath.Join(b.cfg.Build.DestDir, ".locks")
	}
	return filepath.Join(os.TempDir(), "coprbuilder-locks")
}

// Config returns the configuration the backend was built from.
func (b *Backend) Config() *config.Config { return b.cfg }

// Store returns the event store, or nil when persistence is disabled.
func (b *Backend) Store() eventstore.Store { return b.store }

// Registry returns the Prometheus registry the recorder reports to.
func (b *Backend) Registry() *prom.Registry { return b.registry }

// Recorder returns the metrics recorder.
func (b *Backend) Recorder() metrics.Recorder { return b.recorder }

// Locker returns the publish lock for owner/project, or nil when locking is disabled.
func (b *Backend) Locker(owner, project string) (lock.Locker, error) {
	if b.locks == nil {
		return nil, nil
	}
	return b.locks.For(lock.Key(owner, project))
}

// PrepareJob fills in what a job may leave out: a build id and the results root.
func (b *Backend) PrepareJob(j job.Job) job.Job {
	if j.BuildID == "" {
		j.BuildID = uuid.NewString()
	}
	if j.DestDir == "" && b.cfg.Build.DestDir != "" {
		j.DestDir = filepath.Join(b.cfg.Build.DestDir, j.ProjectOwner, j.ProjectName)
	}
	return j
}

// Sink returns the callback sink for j: the log always, plus the event store
// and NATS when configured.
func (b *Backend) Sink(j job.Job) callback.Sink {
	meta := callback.Meta{
		BuildID: j.BuildID,
		Owner:   j.ProjectOwner,
		Project: j.ProjectName,
		Chroot:  j.Chroot,
		Package: j.Pkg,
	}
	sinks := callback.Fanout{callback.NewLogSink(b.logger, meta)}
	if b.store != nil {
		sinks = append(sinks, callback.NewStoreSink(b.store, meta))
	}
	if b.events != nil {
		sinks = append(sinks, callback.NewNATSSink(b.events, b.cfg.Events.Subject, meta))
	}
	return sinks
}

// Orchestrator builds an orchestrator for j with every configured collaborator.
func (b *Backend) Orchestrator(ctx context.Context, j job.Job, sink callback.Sink) (*remotebuild.Orchestrator, error) {
	locker, err := b.Locker(j.ProjectOwner, j.ProjectName)
	if err != nil {
		return nil, err
	}

	opts := []remotebuild.Option{
		remotebuild.WithSink(sink),
		remotebuild.WithPublisher(b.publisher),
		remotebuild.WithPolicy(retry.FromConfig(b.cfg.Build)),
		remotebuild.WithRecorder(b.recorder),
		remotebuild.WithLogger(b.logger.With(logfields.BuildID(j.BuildID))),
		remotebuild.WithPubkeyFetcher(b.signer),
	}
	if locker != nil {
		opts = append(opts, remotebuild.WithLock(locker))
	}
	if b.cfg.Options.DoSign {
		opts = append(opts, remotebuild.WithSigner(b.signer))
	}
	return remotebuild.New(ctx, j, b.cfg.Options, b.executors(j), opts...)
}

// Close releases the event store and NATS connections.
func (b *Backend) Close() error {
	var firstErr error
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			firstErr = err
		}
	}
	for url, c := range b.nats {
		if err := c.Close(); err != nil {
			b.logger.Warn("Failed to close NATS connection", slog.String("url", url), logfields.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
