package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yahoon/Copr/internal/backend"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/worker"
)

// WorkerCmd implements the 'worker' command.
type WorkerCmd struct {
	SpoolDir    string `name:"spool-dir" help:"Override worker.spool_dir"`
	Workers     int    `help:"Override worker.workers"`
	MetricsAddr string `name:"metrics-addr" help:"Override worker.metrics_addr"`
}

func (w *WorkerCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if w.SpoolDir != "" {
		cfg.Worker.SpoolDir = w.SpoolDir
	}
	if w.Workers > 0 {
		cfg.Worker.Workers = w.Workers
	}
	if w.MetricsAddr != "" {
		cfg.Worker.MetricsAddr = w.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.New(ctx, cfg, backend.WithLogger(g.Logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := be.Close(); cerr != nil {
			g.Logger.Warn("Failed to close backend", logfields.Error(cerr))
		}
	}()

	d, err := worker.New(be, g.Logger)
	if err != nil {
		return err
	}
	g.Logger.Info("Worker starting",
		logfields.Path(d.Spool().Root()),
		slog.Int("workers", cfg.Worker.Workers))
	return d.Run(ctx)
}
