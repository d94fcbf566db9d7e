package worker

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahoon/Copr/internal/backend"
	"github.com/yahoon/Copr/internal/config"
	"github.com/yahoon/Copr/internal/createrepo"
	"github.com/yahoon/Copr/internal/eventstore"
	"github.com/yahoon/Copr/internal/executor"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/workspace"
)

type nopPublisher struct{}

func (nopPublisher) Regenerate(context.Context, createrepo.Request) (createrepo.Result, error) {
	return createrepo.Result{}, nil
}

func newTestDaemon(t *testing.T, exec executor.Executor) (*Daemon, *backend.Backend) {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
build:
  dest_dir: ` + filepath.Join(dir, "results") + `
events:
  sqlite_path: ` + filepath.Join(dir, "events.db") + `
worker:
  spool_dir: ` + filepath.Join(dir, "spool") + `
  workers: 2
  rescan_interval: 50ms
  metrics_addr: 127.0.0.1:0
`))
	require.NoError(t, err)

	b, err := backend.New(context.Background(), cfg,
		backend.WithExecutorFactory(func(job.Job) executor.Executor { return exec }),
		backend.WithPublisher(nopPublisher{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	d, err := New(b, nil)
	require.NoError(t, err)
	return d, b
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "waiting for %s", path)
}

func TestDaemon_BuildsSpooledJobs(t *testing.T) {
	d, b := newTestDaemon(t, executor.NewFake())
	root := d.Spool().Root()

	// one job is waiting before start, the other arrives while running
	writeFile(t, filepath.Join(root, "good.json"),
		`{"build_id":"100","chroot":"fedora30-x86_64","pkg":"foo-1.0-1.src.rpm","project_owner":"alice","project_name":"proj"}`)

	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	writeFile(t, filepath.Join(root, ".bad.json"), `{"pkg":"foo-1.0-1.src.rpm","project_owner":"alice","project_name":"proj"}`)
	require.NoError(t, os.Rename(filepath.Join(root, ".bad.json"), filepath.Join(root, "bad.json")))

	good := filepath.Join(root, DoneDir, "good.json")
	waitForFile(t, good)
	waitForFile(t, filepath.Join(root, DoneDir, "good"+ResultSuffix))
	res, err := ReadResult(good)
	require.NoError(t, err)
	assert.Equal(t, "100", res.BuildID)
	assert.Equal(t, StatusSucceeded, res.Status)

	bad := filepath.Join(root, FailedDir, "bad.json")
	waitForFile(t, bad)
	waitForFile(t, filepath.Join(root, FailedDir, "bad"+ResultSuffix))
	res, err = ReadResult(bad)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "no chroot specified")

	events, err := b.Store().GetByBuildID(context.Background(), "100")
	require.NoError(t, err)
	summaries := eventstore.Summarize(events)
	require.Len(t, summaries, 1)
	assert.Equal(t, eventstore.StatusSucceeded, summaries[0].Status)

	resp, err := http.Get("http://" + d.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "copr_backend_worker_queue_length")
	assert.Contains(t, string(body), "copr_backend_build_outcomes_total")
}

func TestDaemon_FailedBuildIsMarked(t *testing.T) {
	exec := &executor.Fake{Builds: []executor.FakeBuild{{Result: executor.BuildResult{OK: false, Stderr: "error"}}}}
	d, b := newTestDaemon(t, exec)
	root := d.Spool().Root()
	writeFile(t, filepath.Join(root, "fail.json"),
		`{"build_id":"200","chroot":"fedora30-x86_64","pkg":"foo-1.0-1.src.rpm","project_owner":"alice","project_name":"proj"}`)

	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Stop(context.Background()) })

	waitForFile(t, filepath.Join(root, FailedDir, "fail"+ResultSuffix))
	res, err := ReadResult(filepath.Join(root, FailedDir, "fail.json"))
	require.NoError(t, err)
	assert.Contains(t, res.Error, "failed 2 times")

	j := b.PrepareJob(job.Job{BuildID: "200", Chroot: "fedora30-x86_64", Pkg: "foo-1.0-1.src.rpm", ProjectOwner: "alice", ProjectName: "proj"})
	assert.True(t, workspace.HasFailMarker(j.PackageDestPath()))
}

func TestDaemon_RequiresSpoolDir(t *testing.T) {
	cfg, err := config.Parse([]byte("worker: {}\n"))
	require.NoError(t, err)
	b, err := backend.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = New(b, nil)
	require.Error(t, err)
}
