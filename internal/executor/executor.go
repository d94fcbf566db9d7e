// Package executor runs package builds on a remote builder host and fetches
// their results.
package executor

import "context"

// BuildResult is the outcome of one remote build.
type BuildResult struct {
	OK      bool
	Stdout  string
	Stderr  string
	Details map[string]any
}

// DownloadResult is the outcome of fetching build results.
type DownloadResult struct {
	OK     bool
	Stdout string
	Stderr string
}

// Executor performs a remote build and retrieves its artifacts.
//
// A returned error means the operation could not be carried out at all
// (transport failure, cancelled context); a build that ran and failed is
// reported through OK=false with a nil error.
type Executor interface {
	// Check fails fast when the builder host or configuration is unusable.
	Check(ctx context.Context) error
	Build(ctx context.Context, pkg string) (BuildResult, error)
	Download(ctx context.Context, pkg, destDir string) (DownloadResult, error)
}
