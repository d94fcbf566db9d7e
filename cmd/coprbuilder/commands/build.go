package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/yahoon/Copr/internal/backend"
	"github.com/yahoon/Copr/internal/callback"
	"github.com/yahoon/Copr/internal/config"
	"github.com/yahoon/Copr/internal/executor"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/workspace"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Job    string   `required:"" help:"Path to the JSON job file" type:"existingfile"`
	Host   string   `help:"Override the builder host from the configuration"`
	DryRun bool     `name:"dry-run" help:"Use a local fake builder and skip publishing"`
	Set    []string `help:"Override an option as key=value (repeatable)" placeholder:"KEY=VALUE"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if err := b.apply(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	details, err := b.run(ctx, g, cfg)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(details)
}

// apply folds the command-line overrides into cfg.
func (b *BuildCmd) apply(cfg *config.Config) error {
	if b.Host != "" {
		cfg.Builder.Host = b.Host
	}
	overrides, err := parseOverrides(b.Set)
	if err != nil {
		return err
	}
	cfg.Options, err = cfg.Options.Apply(overrides)
	if err != nil {
		return err
	}
	if b.DryRun {
		cfg.Options.DoSign = false
	}
	return nil
}

func (b *BuildCmd) run(ctx context.Context, g *Global, cfg *config.Config) (map[string]any, error) {
	j, err := job.Load(b.Job)
	if err != nil {
		return nil, err
	}

	opts := []backend.Option{backend.WithLogger(g.Logger)}
	if b.DryRun {
		opts = append(opts, backend.WithExecutorFactory(dryRunExecutor), backend.WithPublisher(nil))
	}
	be, err := backend.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := be.Close(); cerr != nil {
			g.Logger.Warn("Failed to close backend", logfields.Error(cerr))
		}
	}()

	j = be.PrepareJob(j)
	logger := g.Logger.With(logfields.BuildID(j.BuildID), logfields.Package(j.Pkg), logfields.Chroot(j.Chroot))
	logger.Info("Starting build", slog.Bool("dry_run", b.DryRun))

	sink := be.Sink(j)
	o, err := be.Orchestrator(ctx, j, sink)
	if err != nil {
		callback.Finish(sink, false, err.Error())
		return nil, err
	}

	details, err := o.BuildPackage(ctx)
	if err != nil {
		if markErr := workspace.MarkFailed(j.PackageDestPath()); markErr != nil {
			logger.Warn("Failed to write fail marker", logfields.Error(markErr))
		}
		callback.Finish(sink, false, err.Error())
		return nil, err
	}
	if cfg.Options.DoSign {
		o.AddPubkey(ctx)
	}
	callback.Finish(sink, true, "")
	logger.Info("Build succeeded", slog.String("results", o.ResultsURL()))
	return details, nil
}

// dryRunExecutor answers every build locally and drops a placeholder
// binary package into the results directory.
func dryRunExecutor(j job.Job) executor.Executor {
	fake := executor.NewFake()
	fake.Artifacts = map[string]string{j.PackageBaseName() + ".noarch.rpm": "dry run\n"}
	return fake
}

// parseOverrides decodes key=value pairs; values are read as YAML scalars.
func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.ValidationError(fmt.Sprintf("invalid override %q, expected key=value", pair)).Build()
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errors.WrapError(err, errors.CategoryValidation, "invalid override value").
				WithContext("key", key).
				Build()
		}
		out[key] = v
	}
	return out, nil
}
