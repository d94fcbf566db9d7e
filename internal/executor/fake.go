package executor

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/yahoon/Copr/internal/job"
)

// Fake is intended for tests and local dry-runs. Builds and Downloads are
// answered from the scripted slices in call order; the last entry repeats.
type Fake struct {
	mu sync.Mutex

	CheckErr  error
	Builds    []FakeBuild
	Downloads []FakeDownload

	// Artifacts are written into <destDir>/<package base name>/ on a successful download.
	Artifacts map[string]string

	CheckCalls    int
	BuildCalls    []string
	DownloadCalls []string
}

// FakeBuild scripts one Build call.
type FakeBuild struct {
	Result BuildResult
	Err    error
}

// FakeDownload scripts one Download call.
type FakeDownload struct {
	Result DownloadResult
	Err    error
}

// NewFake returns a Fake whose builds and downloads always succeed.
func NewFake() *Fake {
	return &Fake{
		Builds:    []FakeBuild{{Result: BuildResult{OK: true, Stdout: "fake build\n"}}},
		Downloads: []FakeDownload{{Result: DownloadResult{OK: true}}},
	}
}

func (f *Fake) Check(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	return f.CheckErr
}

func (f *Fake) Build(ctx context.Context, pkg string) (BuildResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.BuildCalls)
	f.BuildCalls = append(f.BuildCalls, pkg)
	if err := ctx.Err(); err != nil {
		return BuildResult{}, err
	}
	if len(f.Builds) == 0 {
		return BuildResult{OK: true}, nil
	}
	b := f.Builds[min(n, len(f.Builds)-1)]
	return b.Result, b.Err
}

func (f *Fake) Download(ctx context.Context, pkg, destDir string) (DownloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.DownloadCalls)
	f.DownloadCalls = append(f.DownloadCalls, pkg)
	if err := ctx.Err(); err != nil {
		return DownloadResult{}, err
	}
	d := FakeDownload{Result: DownloadResult{OK: true}}
	if len(f.Downloads) > 0 {
		d = f.Downloads[min(n, len(f.Downloads)-1)]
	}
	if d.Err == nil && d.Result.OK && len(f.Artifacts) > 0 {
		dir := job.TargetDir(destDir, pkg)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return DownloadResult{}, err
		}
		for name, content := range f.Artifacts {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
				return DownloadResult{}, err
			}
		}
	}
	return d.Result, d.Err
}

// Counts returns the number of Build and Download calls so far.
func (f *Fake) Counts() (builds, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.BuildCalls), len(f.DownloadCalls)
}
