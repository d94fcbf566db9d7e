// Package metrics records build orchestration metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	orch, err := remotebuild.New(ctx, job, opts, exec, remotebuild.WithRecorder(recorder))
//
// The worker daemon serves the registry through HTTPHandler.
package metrics
