package remotebuild

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/yahoon/Copr/internal/buildlog"
	"github.com/yahoon/Copr/internal/callback"
	"github.com/yahoon/Copr/internal/config"
	"github.com/yahoon/Copr/internal/createrepo"
	"github.com/yahoon/Copr/internal/executor"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/lock"
	"github.com/yahoon/Copr/internal/logfields"
	"github.com/yahoon/Copr/internal/metrics"
	"github.com/yahoon/Copr/internal/retry"
	"github.com/yahoon/Copr/internal/signer"
	"github.com/yahoon/Copr/internal/workspace"
)

var errDownloadFailed = stdErrors.New("download reported failure")

// PubkeyFile is the project public key published in every chroot directory.
const PubkeyFile = "pubkey.gpg"

// Orchestrator builds one package for one chroot. It is not safe for
// concurrent use; run one Orchestrator per job.
type Orchestrator struct {
	job  job.Job
	opts config.Options
	exec executor.Executor

	sink      callback.Sink
	lock      lock.Locker
	signer    signer.Signer
	pubkeys   signer.PubkeyFetcher
	publisher createrepo.Publisher
	policy    retry.Policy
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New validates j and checks the executor. A job without a chroot fails with
// a configuration error before anything touches the builder.
func New(ctx context.Context, j job.Job, opts config.Options, exec executor.Executor, options ...Option) (*Orchestrator, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, errors.ConfigError("no executor configured").Build()
	}

	o := &Orchestrator{
		job:      j,
		opts:     opts,
		exec:     exec,
		policy:   retry.DefaultPolicy(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(o)
	}
	if o.sink == nil {
		o.sink = callback.NewLogSink(o.logger, callback.Meta{
			BuildID: j.BuildID,
			Owner:   j.ProjectOwner,
			Project: j.ProjectName,
			Chroot:  j.Chroot,
			Package: j.Pkg,
		})
	}
	if err := o.policy.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid retry policy").Fatal().Build()
	}
	if opts.DoSign && o.signer == nil {
		return nil, errors.ConfigError("signing enabled but no signer configured").Build()
	}

	if err := exec.Check(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Job returns the job being built.
func (o *Orchestrator) Job() job.Job { return o.job }

// ChrootDir is where results, the shared log and repository metadata live.
func (o *Orchestrator) ChrootDir() string { return o.job.ChrootDir() }

// BuildPackage runs the pipeline until an attempt succeeds or the policy's
// attempts are used up. On success it returns the executor's build details.
// Otherwise the error is a terminal build pipeline error, or the error of a
// step that must not be retried (cancellation, orchestration errors from
// signing that are not build errors).
func (o *Orchestrator) BuildPackage(ctx context.Context) (map[string]any, error) {
	started := time.Now()
	pkg := o.job.Pkg

	for attempt := 1; attempt <= o.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := o.policy.Wait(ctx, attempt-1); err != nil {
				return nil, o.canceled(err, started)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, o.canceled(err, started)
		}

		o.logger.Debug("Starting pipeline attempt",
			logfields.BuildID(o.job.BuildID),
			logfields.Package(pkg),
			logfields.Chroot(o.job.Chroot),
			logfields.Attempt(attempt))

		details, err := o.runAttempt(ctx)
		if err == nil {
			o.recorder.ObserveBuildDuration(time.Since(started))
			o.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
			return details, nil
		}
		if ctx.Err() != nil {
			return nil, o.canceled(ctx.Err(), started)
		}
		if !errors.HasCategory(err, errors.CategoryBuild) {
			o.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
			return nil, err
		}

		o.sink.Error(describe(err))
		o.recorder.IncAttemptFailure(o.job.Chroot)
		o.logger.Warn("Pipeline attempt failed",
			logfields.BuildID(o.job.BuildID),
			logfields.Package(pkg),
			logfields.Attempt(attempt),
			slog.Int("max_attempts", o.policy.MaxAttempts),
			logfields.Error(err))
	}

	msg := fmt.Sprintf("Build pkg %s failed %d times", pkg, o.policy.MaxAttempts)
	o.sink.Log(msg)
	o.recorder.IncRetriesExhausted(o.job.Chroot)
	o.recorder.ObserveBuildDuration(time.Since(started))
	o.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
	return nil, errors.PipelineError(msg).
		Terminal().
		Fatal().
		WithContext("package", pkg).
		WithContext("chroot", o.job.Chroot).
		WithContext("attempts", o.policy.MaxAttempts).
		Build()
}

// runAttempt is one pass through prepare, build, download and log, followed
// by the success steps when the build succeeded.
func (o *Orchestrator) runAttempt(ctx context.Context) (map[string]any, error) {
	pkg := o.job.Pkg
	chrootDir := o.job.ChrootDir()

	if err := o.timed(metrics.StagePrepare, func() error {
		return workspace.PrepareBuildDir(chrootDir, o.job.PackageDestPath())
	}); err != nil {
		return nil, errors.WrapError(err, errors.CategoryBuild, "failed to prepare build directory").
			Immediate().
			WithContext("path", chrootDir).
			Build()
	}

	var built executor.BuildResult
	buildErr := o.timed(metrics.StageBuild, func() error {
		o.sink.StartBuild(pkg)
		var err error
		built, err = o.exec.Build(ctx, pkg)
		o.sink.Log(fmt.Sprintf("builder.build output: (%t, %q, %q, %v)", built.OK, built.Stdout, built.Stderr, built.Details))
		o.sink.EndBuild(pkg)
		return err
	})
	if buildErr != nil {
		return nil, errors.WrapError(buildErr, errors.CategoryBuild, fmt.Sprintf("Remote build of %s did not complete", pkg)).
			Immediate().
			Build()
	}

	var downloaded executor.DownloadResult
	downloadErr := o.timed(metrics.StageDownload, func() error {
		o.sink.StartDownload(pkg)
		var err error
		downloaded, err = o.exec.Download(ctx, pkg, chrootDir)
		o.sink.Log(fmt.Sprintf("builder.download output: (%t, %q, %q)", downloaded.OK, downloaded.Stdout, downloaded.Stderr))
		o.sink.EndDownload(pkg)
		if err == nil && !downloaded.OK {
			err = errDownloadFailed
		}
		return err
	})
	if downloadErr != nil {
		b := errors.PipelineError(fmt.Sprintf("Failure to download %s: %s", pkg, downloaded.Stdout+downloaded.Stderr)).
			WithContext("path", chrootDir)
		if downloadErr != errDownloadFailed {
			b = b.WithCause(downloadErr)
		}
		return nil, b.Build()
	}

	logPath := filepath.Join(chrootDir, buildlog.FileName)
	if err := o.timed(metrics.StageLog, func() error {
		return buildlog.AppendSafe(logPath, []string{buildlog.PackageHeader(pkg), built.Stdout}, []string{built.Stderr})
	}); err != nil {
		return nil, errors.WrapError(err, errors.CategoryBuild, "failed to append build log").
			Immediate().
			WithContext("path", logPath).
			Build()
	}

	if !built.OK {
		return nil, errors.PipelineError(fmt.Sprintf("Error occurred during build %s", o.job.PackageFile())).
			WithContext("package", pkg).
			Build()
	}

	if err := o.onSuccess(ctx); err != nil {
		return nil, err
	}
	return built.Details, nil
}

// onSuccess signs and publishes. Only orchestration errors from signing
// escape; publishing problems are reported and swallowed.
func (o *Orchestrator) onSuccess(ctx context.Context) error {
	o.sink.Log(fmt.Sprintf("Success building %s", o.job.PackageFile()))

	if o.opts.DoSign {
		if err := o.signBuiltPackages(ctx); err != nil {
			return err
		}
	}
	o.publish(ctx)
	return nil
}

func (o *Orchestrator) signBuiltPackages(ctx context.Context) error {
	dir := o.job.PackageDestPath()
	o.sink.Log(fmt.Sprintf("Going to sign pkgs from source: %s in chroot: %s", o.job.Pkg, o.job.ChrootDir()))

	start := time.Now()
	err := o.signer.SignPackagesInDirectory(ctx, o.job.ProjectOwner, o.job.ProjectName, dir)
	o.recorder.ObserveStageDuration(metrics.StageSign, time.Since(start))
	if err != nil {
		o.recorder.IncStageResult(metrics.StageSign, metrics.ResultFailed)
		o.sink.Error(fmt.Sprintf("failed to sign packages built from `%s` with error: \n%s", o.job.Pkg, describe(err)))
		if errors.IsOrchestration(err) {
			return err
		}
	} else {
		o.recorder.IncStageResult(metrics.StageSign, metrics.ResultSuccess)
	}

	o.sink.Log("Sign done")
	return nil
}

// ResultsURL is the public URL of the chroot directory.
func (o *Orchestrator) ResultsURL() string {
	return strings.Join([]string{o.opts.ResultsBaseURL, o.job.ProjectOwner, o.job.ProjectName, o.job.Chroot}, "/")
}

func (o *Orchestrator) publish(ctx context.Context) {
	if o.publisher == nil {
		o.sink.Log("No repository publisher configured, skipping createrepo")
		return
	}

	chrootDir := o.job.ChrootDir()
	baseURL := o.ResultsURL()
	o.sink.Log(fmt.Sprintf("Createrepo:: owner:  %s; project: %s; front url: %s; path: %s; base_url: %s",
		o.job.ProjectOwner, o.job.ProjectName, o.opts.FrontendBaseURL, chrootDir, baseURL))

	start := time.Now()
	res, err := o.regenerateLocked(ctx, createrepo.Request{
		Path:        chrootDir,
		FrontendURL: o.opts.FrontendBaseURL,
		BaseURL:     baseURL,
		Owner:       o.job.ProjectOwner,
		Project:     o.job.ProjectName,
	})
	o.recorder.ObserveStageDuration(metrics.StagePublish, time.Since(start))

	diag := strings.TrimSpace(res.Stderr)
	if diag == "" && err != nil {
		diag = describe(err)
	}
	if diag == "" {
		o.recorder.IncStageResult(metrics.StagePublish, metrics.ResultSuccess)
		return
	}
	o.recorder.IncStageResult(metrics.StagePublish, metrics.ResultWarning)
	o.sink.Error(fmt.Sprintf("Error making local repo: %s", chrootDir))
	o.sink.Error(diag)
}

// regenerateLocked holds the shared publish lock, if any, around Regenerate.
func (o *Orchestrator) regenerateLocked(ctx context.Context, req createrepo.Request) (createrepo.Result, error) {
	if o.lock != nil {
		if err := o.lock.Lock(ctx); err != nil {
			return createrepo.Result{}, errors.WrapError(err, errors.CategoryPublish, "failed to acquire createrepo lock").Warning().Build()
		}
		defer func() {
			if err := o.lock.Unlock(); err != nil {
				o.logger.Warn("Failed to release createrepo lock", logfields.Path(req.Path), logfields.Error(err))
			}
		}()
	}
	return o.publisher.Regenerate(ctx, req)
}

// AddPubkey writes the project's public key into the chroot directory.
// Failures are reported to the sink and never fail the build.
func (o *Orchestrator) AddPubkey(ctx context.Context) {
	o.sink.Log("Retrieving pubkey ")
	if o.pubkeys == nil {
		o.sink.Error("failed to retrieve pubkey: no key client configured")
		return
	}

	owner, project := o.job.ProjectOwner, o.job.ProjectName
	chrootDir := o.job.ChrootDir()
	err := workspace.PrepareBuildDir(chrootDir, o.job.PackageDestPath())
	if err == nil {
		err = o.pubkeys.FetchPubkey(ctx, owner, project, filepath.Join(chrootDir, PubkeyFile))
	}
	if err != nil {
		o.sink.Error(fmt.Sprintf("failed to retrieve pubkey for user %s project %s due to: \n%s", owner, project, describe(err)))
		return
	}
	o.sink.Log(fmt.Sprintf("Added pubkey for user %s project %s into the directory: %s", owner, project, chrootDir))
}

func (o *Orchestrator) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.recorder.ObserveStageDuration(stage, time.Since(start))
	if err != nil {
		o.recorder.IncStageResult(stage, metrics.ResultFailed)
	} else {
		o.recorder.IncStageResult(stage, metrics.ResultSuccess)
	}
	return err
}

func (o *Orchestrator) canceled(err error, started time.Time) error {
	o.recorder.ObserveBuildDuration(time.Since(started))
	o.recorder.IncBuildOutcome(metrics.BuildOutcomeCanceled)
	return errors.WrapError(err, errors.CategoryRuntime, "build canceled").
		WithContext("package", o.job.Pkg).
		Build()
}

// describe renders err for the sink without the classification prefix.
func describe(err error) string {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return err.Error()
	}
	if cause := ce.Cause(); cause != nil {
		return ce.Message() + ": " + cause.Error()
	}
	return ce.Message()
}
