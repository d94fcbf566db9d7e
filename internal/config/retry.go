package config

import "github.com/yahoon/Copr/internal/foundation/normalization"

// RetryBackoffMode enumerates supported retry backoff strategies.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff returns a canonical typed backoff mode or empty string if unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// LockKind selects the publish lock implementation.
type LockKind string

const (
	LockKindMutex LockKind = "mutex"
	LockKindFile  LockKind = "file"
	LockKindNATS  LockKind = "nats"
	LockKindNone  LockKind = "none"
)

var lockKindNormalizer = normalization.NewNormalizer(map[string]LockKind{
	"mutex": LockKindMutex,
	"file":  LockKindFile,
	"nats":  LockKindNATS,
	"none":  LockKindNone,
}, "")

// NormalizeLockKind returns a canonical lock kind or empty string if unknown.
func NormalizeLockKind(raw string) LockKind {
	return lockKindNormalizer.Normalize(raw)
}
