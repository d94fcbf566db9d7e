package config

import (
	"bytes"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yahoon/Copr/internal/foundation/errors"
)

const (
	// DefaultBuildUser is the account mockchain runs as on the builder.
	DefaultBuildUser = "mockbuilder"
	// DefaultRemoteBaseDir is where per-build temporary directories are created on the builder.
	DefaultRemoteBaseDir = "/var/tmp"
	// DefaultBuildTimeout bounds a single remote build.
	DefaultBuildTimeout = 6 * time.Hour
	// DefaultMaxAttempts is how many times a package build is attempted.
	DefaultMaxAttempts = 2
)

// Options is the per-orchestrator option set. Unset fields keep their defaults.
type Options struct {
	DoSign          bool   `yaml:"do_sign"`
	FrontendBaseURL string `yaml:"frontend_base_url,omitempty"`
	ResultsBaseURL  string `yaml:"results_baseurl"`
	BuildUser       string `yaml:"build_user"`
	RemoteBaseDir   string `yaml:"remote_basedir"`
	RemoteTempDir   string `yaml:"remote_tempdir,omitempty"`
}

// DefaultOptions returns the option set used when nothing is overridden.
func DefaultOptions() Options {
	return Options{
		DoSign:        false,
		BuildUser:     DefaultBuildUser,
		RemoteBaseDir: DefaultRemoteBaseDir,
	}
}

// Apply returns a copy of o with the given overrides applied.
// Unknown keys are rejected.
func (o Options) Apply(overrides map[string]any) (Options, error) {
	if len(overrides) == 0 {
		return o, nil
	}
	raw, err := yaml.Marshal(overrides)
	if err != nil {
		return o, errors.WrapError(err, errors.CategoryConfig, "failed to encode option overrides").Fatal().Build()
	}

	out := o
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return o, errors.WrapError(err, errors.CategoryConfig, "invalid option override").Fatal().Build()
	}
	return out, nil
}
