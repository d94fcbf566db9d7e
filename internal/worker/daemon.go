package worker

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/yahoon/Copr/internal/backend"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/metrics"
	"github.com/yahoon/Copr/internal/services"
)

const shutdownTimeout = 30 * time.Second

// Daemon ties the spool, the worker pool, the watcher, the rescan schedule
// and the metrics endpoint together.
type Daemon struct {
	backend   *backend.Backend
	spool     *Spool
	pool      *Pool
	watcher   *Watcher
	scheduler *Scheduler
	metrics   *services.HTTPServerService
	services  *services.ServiceOrchestrator
	logger    *slog.Logger
}

// New prepares a daemon for the worker section of b's configuration.
func New(b *backend.Backend, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := b.Config().Worker

	spool, err := OpenSpool(cfg.SpoolDir)
	if err != nil {
		return nil, err
	}
	rescan, err := time.ParseDuration(cfg.RescanInterval)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid worker.rescan_interval").Fatal().Build()
	}

	d := &Daemon{
		backend:  b,
		spool:    spool,
		services: services.NewServiceOrchestrator().WithTimeouts(30*time.Second, shutdownTimeout),
		logger:   logger,
	}
	d.pool = NewPool(cfg.Workers, NewProcessor(b, spool, logger).Process)

	d.watcher, err = NewWatcher(spool.Root(), func(path string) { d.pool.Enqueue(path) })
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create spool watcher").Build()
	}
	d.scheduler, err = NewScheduler()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create scheduler").Build()
	}
	if _, err := d.scheduler.ScheduleEvery("spool-rescan", rescan, d.Scan); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to schedule spool rescan").Build()
	}

	d.registerMetrics(b.Registry())

	for _, svc := range []services.ManagedService{
		services.NewComponentService("pool", d.pool),
		services.NewComponentService("watcher", d.watcher, "pool"),
		services.NewComponentService("scheduler", d.scheduler, "pool"),
	} {
		if err := d.services.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsAddr != "" {
		d.metrics = services.NewHTTPServerService("metrics-http", cfg.MetricsAddr, metrics.HTTPHandler(b.Registry()))
		if err := d.services.RegisterService(d.metrics); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Daemon) registerMetrics(reg *prom.Registry) {
	for _, c := range []prom.Collector{
		prom.NewGaugeFunc(prom.GaugeOpts{Namespace: "copr_backend", Name: "worker_queue_length", Help: "Spooled jobs waiting for a worker"}, func() float64 {
			return float64(d.pool.QueueLength())
		}),
		prom.NewGaugeFunc(prom.GaugeOpts{Namespace: "copr_backend", Name: "worker_active_jobs", Help: "Jobs currently being built"}, func() float64 {
			return float64(d.pool.Active())
		}),
	} {
		if err := reg.Register(c); err != nil {
			var are prom.AlreadyRegisteredError
			if !stdErrors.As(err, &are) {
				d.logger.Warn("Failed to register worker metric", logfields.Error(err))
			}
		}
	}
}

// Spool returns the spool the daemon serves.
func (d *Daemon) Spool() *Spool { return d.spool }

// MetricsAddr is the bound metrics address, empty when disabled or not started.
func (d *Daemon) MetricsAddr() string {
	if d.metrics == nil {
		return ""
	}
	return d.metrics.Addr()
}

// Start recovers jobs from an interrupted run, starts all components and
// queues what is already waiting.
func (d *Daemon) Start(ctx context.Context) error {
	released, err := d.spool.Recover()
	if err != nil {
		return err
	}
	if len(released) > 0 {
		d.logger.Warn("Requeued jobs left in processing by a previous run", slog.Int("count", len(released)))
	}
	if err := d.services.StartAll(ctx); err != nil {
		return err
	}
	d.Scan()
	return nil
}

// Stop stops all components; running builds get shutdownTimeout to finish.
func (d *Daemon) Stop(ctx context.Context) error {
	return d.services.StopAll(ctx)
}

// Run starts the daemon and blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	d.logger.Info("Worker daemon running", logfields.Path(d.spool.Root()))
	<-ctx.Done()
	d.logger.Info("Worker daemon shutting down")
	return d.Stop(context.WithoutCancel(ctx))
}

// Scan queues every pending job in the spool root.
func (d *Daemon) Scan() {
	jobs, err := d.spool.Pending()
	if err != nil {
		d.logger.Error("Spool scan failed", logfields.Error(err))
		return
	}
	for _, path := range jobs {
		d.pool.Enqueue(path)
	}
}
