// Package errors provides the classified error primitives used across the
// build backend.
//
// Every failure that crosses a package boundary carries an explicit category
// tag. The orchestrator decides retry versus abort by inspecting that tag,
// never the concrete type of the value that produced it.
//
// Key features:
//   - ErrorCategory: what failed (config, build pipeline, signing, publish, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether the retry loop may run the pipeline again
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and log levels for the command line
//
// Example usage:
//
//	err := errors.PipelineError("download failed").
//		WithContext("package", pkg).
//		WithCause(cause).
//		Build()
package errors
