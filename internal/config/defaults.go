package config

import "github.com/yahoon/Copr/internal/foundation/errors"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

var defaultAppliers = []DefaultApplier{
	&BuildDefaultApplier{},
	&BuilderDefaultApplier{},
	&ToolsDefaultApplier{},
	&EventsDefaultApplier{},
	&LockDefaultApplier{},
	&WorkerDefaultApplier{},
	&LoggingDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, applier := range defaultAppliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// BuildDefaultApplier handles retry defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Build.MaxAttempts == 0 {
		cfg.Build.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Build.RetryBackoff == "" {
		cfg.Build.RetryBackoff = RetryBackoffFixed
	} else {
		mode, err := retryBackoffNormalizer.NormalizeWithError(string(cfg.Build.RetryBackoff))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid build.retry_backoff").Fatal().Build()
		}
		cfg.Build.RetryBackoff = mode
	}
	if cfg.Build.RetryInitialDelay == "" {
		cfg.Build.RetryInitialDelay = "0s"
	}
	if cfg.Build.RetryMaxDelay == "" {
		cfg.Build.RetryMaxDelay = "30s"
	}
	return nil
}

// BuilderDefaultApplier handles remote builder defaults.
type BuilderDefaultApplier struct{}

func (b *BuilderDefaultApplier) Domain() string { return "builder" }

func (b *BuilderDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Builder.Mockchain == "" {
		cfg.Builder.Mockchain = "/usr/bin/mockchain"
	}
	if cfg.Builder.Rsync == "" {
		cfg.Builder.Rsync = "rsync"
	}
	if cfg.Builder.Timeout == "" {
		cfg.Builder.Timeout = DefaultBuildTimeout.String()
	}
	if len(cfg.Builder.SSHOptions) == 0 {
		cfg.Builder.SSHOptions = []string{"-o", "BatchMode=yes", "-o", "StrictHostKeyChecking=no"}
	}
	return nil
}

// ToolsDefaultApplier handles signing and createrepo binaries.
type ToolsDefaultApplier struct{}

func (t *ToolsDefaultApplier) Domain() string { return "tools" }

func (t *ToolsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Signing.Binary == "" {
		cfg.Signing.Binary = "/bin/sign"
	}
	if cfg.Signing.KeyDomain == "" {
		cfg.Signing.KeyDomain = "copr.fedorahosted.org"
	}
	if cfg.Createrepo.Binary == "" {
		cfg.Createrepo.Binary = "/usr/bin/createrepo_c"
	}
	return nil
}

// EventsDefaultApplier handles event sink defaults.
type EventsDefaultApplier struct{}

func (e *EventsDefaultApplier) Domain() string { return "events" }

func (e *EventsDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "copr.build.events"
	}
	return nil
}

// LockDefaultApplier handles publish lock defaults.
type LockDefaultApplier struct{}

func (l *LockDefaultApplier) Domain() string { return "lock" }

func (l *LockDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Lock.Kind == "" {
		cfg.Lock.Kind = LockKindMutex
	} else {
		kind, err := lockKindNormalizer.NormalizeWithError(string(cfg.Lock.Kind))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid lock.kind").Fatal().Build()
		}
		cfg.Lock.Kind = kind
	}
	if cfg.Lock.Bucket == "" {
		cfg.Lock.Bucket = "copr-createrepo-locks"
	}
	if cfg.Lock.TTL == "" {
		cfg.Lock.TTL = "10m"
	}
	return nil
}

// WorkerDefaultApplier handles worker daemon defaults.
type WorkerDefaultApplier struct{}

func (w *WorkerDefaultApplier) Domain() string { return "worker" }

func (w *WorkerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 2
	}
	if cfg.Worker.RescanInterval == "" {
		cfg.Worker.RescanInterval = "30s"
	}
	return nil
}

// LoggingDefaultApplier handles logging defaults.
type LoggingDefaultApplier struct{}

func (l *LoggingDefaultApplier) Domain() string { return "logging" }

func (l *LoggingDefaultApplier) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
