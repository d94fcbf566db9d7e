package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/yahoon/Copr/internal/config"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// NewGlobal returns a Global writing command output to stdout.
func NewGlobal() *Global {
	return &Global{Logger: slog.Default(), Out: os.Stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"coprbuilder.yaml" env:"COPR_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Build one package described by a job file"`
	Worker WorkerCmd `cmd:"" help:"Build jobs dropped into the spool directory until stopped"`
	Events EventsCmd `cmd:"" help:"Show stored build events"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing and sets up the bootstrap logger.
// Commands that load a configuration replace it via setupLogging.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := config.NormalizeLogLevel(os.Getenv("COPR_LOG_LEVEL"))
	if c.Verbose {
		level = config.LogLevelDebug
	}
	g.Logger = newLogger(config.LoggingConfig{Level: level, Format: config.LogFormatText})
	slog.SetDefault(g.Logger)
	return nil
}

// loadConfig loads the configuration and applies its logging section.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	lc := cfg.Logging
	if c.Verbose {
		lc.Level = config.LogLevelDebug
	} else if env := os.Getenv("COPR_LOG_LEVEL"); env != "" {
		lc.Level = config.NormalizeLogLevel(env)
	}
	g.Logger = newLogger(lc)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.Level.SlogLevel()}
	if lc.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
