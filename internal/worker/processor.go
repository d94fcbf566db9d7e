package worker

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/yahoon/Copr/internal/backend"
	"github.com/yahoon/Copr/internal/callback"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/workspace"
)

// Processor builds one spooled job at a time.
type Processor struct {
	backend *backend.Backend
	spool   *Spool
	logger  *slog.Logger
}

// NewProcessor returns a processor building jobs from spool with b.
func NewProcessor(b *backend.Backend, spool *Spool, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{backend: b, spool: spool, logger: logger}
}

// Process claims the job at path, builds it and files it under done/ or
// failed/. A build interrupted by shutdown is put back into the spool.
func (p *Processor) Process(ctx context.Context, path string) {
	claimed, ok, err := p.spool.Claim(path)
	if err != nil {
		p.logger.Error("Failed to claim job", logfields.Path(path), logfields.Error(err))
		return
	}
	if !ok {
		return
	}

	res, interrupted := p.run(ctx, claimed)
	if interrupted {
		p.logger.Warn("Build interrupted, returning job to the spool", logfields.Path(claimed))
		if err := p.spool.Release(claimed); err != nil {
			p.logger.Error("Failed to release job", logfields.Path(claimed), logfields.Error(err))
		}
		return
	}

	final, err := p.spool.Finish(claimed, res)
	if err != nil {
		p.logger.Error("Failed to file finished job", logfields.Path(claimed), logfields.Error(err))
		return
	}
	p.logger.Info("Job finished",
		logfields.BuildID(res.BuildID),
		logfields.Status(res.Status),
		logfields.Path(final),
		logfields.DurationMS(float64(res.FinishedAt.Sub(res.StartedAt).Milliseconds())))
}

func (p *Processor) run(ctx context.Context, claimed string) (Result, bool) {
	res := Result{Job: filepath.Base(claimed), StartedAt: time.Now()}
	fail := func(err error) (Result, bool) {
		res.Status = StatusFailed
		res.Error = err.Error()
		res.FinishedAt = time.Now()
		return res, false
	}

	if ctx.Err() != nil {
		return res, true
	}
	j, err := job.Load(claimed)
	if err != nil {
		return fail(err)
	}
	j = p.backend.PrepareJob(j)
	res.BuildID = j.BuildID

	logger := p.logger.With(logfields.BuildID(j.BuildID), logfields.Package(j.Pkg), logfields.Chroot(j.Chroot))
	logger.Info("Starting build", logfields.Owner(j.ProjectOwner), logfields.Project(j.ProjectName))

	sink := p.backend.Sink(j)
	o, err := p.backend.Orchestrator(ctx, j, sink)
	if err != nil {
		callback.Finish(sink, false, err.Error())
		return fail(err)
	}

	details, err := o.BuildPackage(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.HasCategory(err, errors.CategoryRuntime) {
			return res, true
		}
		if markErr := workspace.MarkFailed(j.PackageDestPath()); markErr != nil {
			logger.Warn("Failed to write fail marker", logfields.Error(markErr))
		}
		callback.Finish(sink, false, err.Error())
		return fail(err)
	}

	if p.backend.Config().Options.DoSign {
		o.AddPubkey(ctx)
	}
	callback.Finish(sink, true, "")

	res.Status = StatusSucceeded
	res.Details = details
	res.FinishedAt = time.Now()
	return res, false
}
