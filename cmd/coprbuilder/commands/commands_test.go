package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahoon/Copr/internal/buildlog"
	"github.com/yahoon/Copr/internal/config"
)

func testGlobal() (*Global, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Global{Logger: slog.New(slog.DiscardHandler), Out: out}, out
}

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "coprbuilder.yaml")
	content := "options:\n" +
		"  results_baseurl: https://copr-be.example.com/results\n" +
		"builder:\n" +
		"  host: builder.example.com\n" +
		"build:\n" +
		"  dest_dir: " + filepath.Join(dir, "results") + "\n" +
		"events:\n" +
		"  sqlite_path: " + filepath.Join(dir, "events.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	return cfgPath
}

func writeTestJob(t *testing.T, dir string) string {
	t.Helper()
	jobPath := filepath.Join(dir, "job.json")
	content := `{"build_id": "b-42", "chroot": "fedora-40-x86_64", "pkg": "https://example.com/foo-1.0-1.src.rpm",` +
		` "project_owner": "alice", "project_name": "tools"}`
	require.NoError(t, os.WriteFile(jobPath, []byte(content), 0o600))
	return jobPath
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	g, out := testGlobal()
	root := &CLI{Config: filepath.Join(dir, "coprbuilder.yaml")}

	require.NoError(t, (&InitCmd{}).Run(g, root))
	assert.Contains(t, out.String(), "initialized successfully")

	cfg, err := config.Load(root.Config)
	require.NoError(t, err)
	assert.Equal(t, "builder1.example.com", cfg.Builder.Host)

	err = (&InitCmd{}).Run(g, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, (&InitCmd{Force: true}).Run(g, root))
}

func TestBuildCmd_DryRun(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: writeTestConfig(t, dir)}
	g, out := testGlobal()

	cmd := &BuildCmd{Job: writeTestJob(t, dir), DryRun: true}
	require.NoError(t, cmd.Run(g, root))
	assert.Equal(t, "null\n", out.String())

	chrootDir := filepath.Join(dir, "results", "alice", "tools", "fedora-40-x86_64")
	assert.FileExists(t, filepath.Join(chrootDir, "foo-1.0-1", "foo-1.0-1.noarch.rpm"))
	logData, err := os.ReadFile(filepath.Join(chrootDir, buildlog.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "foo-1.0-1.src.rpm")

	g, out = testGlobal()
	require.NoError(t, (&EventsCmd{BuildID: "b-42"}).Run(g, root))
	assert.Contains(t, out.String(), "build_started")
	assert.Contains(t, out.String(), "succeeded")

	g, out = testGlobal()
	require.NoError(t, (&EventsCmd{Since: time.Hour, JSON: true}).Run(g, root))
	assert.Contains(t, out.String(), `"build_id": "b-42"`)
	assert.Contains(t, out.String(), `"status": "succeeded"`)
}

func TestBuildCmd_RejectsUnknownOverride(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: writeTestConfig(t, dir)}
	g, _ := testGlobal()

	cmd := &BuildCmd{Job: writeTestJob(t, dir), DryRun: true, Set: []string{"no_such_option=1"}}
	require.Error(t, cmd.Run(g, root))
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"do_sign=true", "build_user=builder", "results_baseurl=https://x/y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"do_sign":         true,
		"build_user":      "builder",
		"results_baseurl": "https://x/y",
	}, got)

	_, err = parseOverrides([]string{"missing-separator"})
	require.Error(t, err)

	got, err = parseOverrides(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventsCmd_RequiresStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "coprbuilder.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("builder:\n  host: b\n"), 0o600))
	g, _ := testGlobal()

	err := (&EventsCmd{}).Run(g, &CLI{Config: cfgPath})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path")
}
