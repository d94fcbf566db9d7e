package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yahoon/Copr/internal/foundation/errors"
)

// Config represents the backend configuration file.
type Config struct {
	Options    Options          `yaml:"options"`
	Build      BuildConfig      `yaml:"build"`
	Builder    BuilderConfig    `yaml:"builder"`
	Signing    SigningConfig    `yaml:"signing"`
	Createrepo CreaterepoConfig `yaml:"createrepo"`
	Events     EventsConfig     `yaml:"events"`
	Lock       LockConfig       `yaml:"lock"`
	Worker     WorkerConfig     `yaml:"worker"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BuildConfig holds the pipeline retry knobs.
type BuildConfig struct {
	MaxAttempts       int              `yaml:"max_attempts,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
	DestDir           string           `yaml:"dest_dir,omitempty"` // default results root for jobs that omit one
}

// BuilderConfig describes how the remote build host is reached.
type BuilderConfig struct {
	Host       string            `yaml:"host"`
	SSHOptions []string          `yaml:"ssh_options,omitempty"`
	Mockchain  string            `yaml:"mockchain,omitempty"`
	Rsync      string            `yaml:"rsync,omitempty"`
	Repos      []string          `yaml:"repos,omitempty"`
	Macros     map[string]string `yaml:"macros,omitempty"`
	Timeout    string            `yaml:"timeout,omitempty"` // used when a job has no timeout of its own
}

// SigningConfig configures the signing command.
type SigningConfig struct {
	Binary    string `yaml:"binary,omitempty"`
	KeyDomain string `yaml:"key_domain,omitempty"`
}

// CreaterepoConfig configures repository metadata regeneration.
type CreaterepoConfig struct {
	Binary string `yaml:"binary,omitempty"`
}

// EventsConfig configures where callback events are persisted or broadcast.
type EventsConfig struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
	NATSURL    string `yaml:"nats_url,omitempty"`
	Subject    string `yaml:"subject,omitempty"`
}

// LockConfig selects the publish lock implementation shared by orchestrators.
type LockConfig struct {
	Kind    LockKind `yaml:"kind,omitempty"`
	NATSURL string   `yaml:"nats_url,omitempty"`
	Bucket  string   `yaml:"bucket,omitempty"`
	TTL     string   `yaml:"ttl,omitempty"`
}

// WorkerConfig configures the spool directory worker.
type WorkerConfig struct {
	SpoolDir       string `yaml:"spool_dir,omitempty"`
	Workers        int    `yaml:"workers,omitempty"`
	RescanInterval string `yaml:"rescan_interval,omitempty"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigError("configuration file not found").
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references, and applies defaults.
func Parse(data []byte) (*Config, error) {
	expandedData := os.ExpandEnv(string(data))

	cfg := Config{Options: DefaultOptions()}
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants after defaults were applied.
func (c *Config) Validate() error {
	if c.Build.MaxAttempts < 1 {
		return errors.ConfigError("build.max_attempts must be at least 1").
			WithContext("value", c.Build.MaxAttempts).
			Build()
	}
	for field, raw := range map[string]string{
		"build.retry_initial_delay": c.Build.RetryInitialDelay,
		"build.retry_max_delay":     c.Build.RetryMaxDelay,
		"builder.timeout":           c.Builder.Timeout,
		"lock.ttl":                  c.Lock.TTL,
		"worker.rescan_interval":    c.Worker.RescanInterval,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid duration").
				Fatal().
				WithContext("field", field).
				Build()
		}
	}
	if c.Lock.Kind == LockKindNATS && c.Lock.NATSURL == "" && c.Events.NATSURL == "" {
		return errors.ConfigError("lock.kind nats requires lock.nats_url or events.nats_url").Build()
	}
	return nil
}

// Durations returns the parsed retry delays; invalid values were rejected by Validate.
func (b BuildConfig) Durations() (initial, maxDelay time.Duration) {
	initial, _ = time.ParseDuration(b.RetryInitialDelay)
	maxDelay, _ = time.ParseDuration(b.RetryMaxDelay)
	return initial, maxDelay
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{Options: DefaultOptions()}
	example.Options.FrontendBaseURL = "https://copr.example.com"
	example.Options.ResultsBaseURL = "https://copr-be.example.com/results"
	example.Builder.Host = "builder1.example.com"
	example.Events.SQLitePath = "/var/lib/copr/events.db"
	example.Worker.SpoolDir = "/var/lib/copr/spool"
	if err := applyDefaults(&example); err != nil {
		return err
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
