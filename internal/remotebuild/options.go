package remotebuild

import (
	"log/slog"

	"github.com/yahoon/Copr/internal/callback"
	"github.com/yahoon/Copr/internal/createrepo"
	"github.com/yahoon/Copr/internal/lock"
	"github.com/yahoon/Copr/internal/metrics"
	"github.com/yahoon/Copr/internal/retry"
	"github.com/yahoon/Copr/internal/signer"
)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSink sets the callback sink; the default logs through slog.
func WithSink(s callback.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithLock sets the lock held around repository metadata regeneration.
// The lock is borrowed: the orchestrator only acquires and releases it.
func WithLock(l lock.Locker) Option {
	return func(o *Orchestrator) { o.lock = l }
}

// WithSigner sets the signing client used when signing is enabled.
func WithSigner(s signer.Signer) Option {
	return func(o *Orchestrator) { o.signer = s }
}

// WithPubkeyFetcher sets the client used by AddPubkey.
func WithPubkeyFetcher(f signer.PubkeyFetcher) Option {
	return func(o *Orchestrator) { o.pubkeys = f }
}

// WithPublisher sets the repository metadata publisher.
func WithPublisher(p createrepo.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithPolicy sets the retry policy; the default is two immediate attempts.
func WithPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger for diagnostics not meant for the sink.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
