package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yahoon/Copr/internal/command"
	"github.com/yahoon/Copr/internal/foundation/errors"
)

var (
	_ Executor = (*SSH)(nil)
	_ Executor = (*Fake)(nil)
)

func testConfig() SSHConfig {
	return SSHConfig{
		Host:          "builder1",
		User:          "mockbuilder",
		SSHOptions:    []string{"-o", "BatchMode=yes"},
		Chroot:        "fedora30-x86_64",
		Repos:         []string{"https://repo/a"},
		Macros:        map[string]string{"copr_username": "alice", "copr_projectname": "proj", "vendor": "Fedora Project COPR (alice/proj)"},
		BuildrootPkgs: []string{"make", "gcc"},
		Timeout:       time.Hour,
		RemoteBaseDir: "/var/tmp",
	}
}

// scripted answers ssh commands by the remote script they carry.
func scripted(buildExit int, successMarker bool) *command.FakeRunner {
	return &command.FakeRunner{Match: func(spec command.Spec) (command.Reply, bool) {
		if spec.Name == "rsync" {
			return command.Reply{Stdout: "sent 10 bytes\n"}, true
		}
		script := spec.Args[len(spec.Args)-1]
		switch {
		case strings.HasPrefix(script, "/bin/mktemp"):
			return command.Reply{Stdout: "/var/tmp/mockremote-abcde\n"}, true
		case strings.Contains(script, "mockchain -r"):
			return command.Reply{ExitCode: buildExit, Stdout: "mock output\n", Stderr: "mock warnings\n"}, true
		case strings.HasPrefix(script, "test -f"):
			if successMarker {
				return command.Reply{}, true
			}
			return command.Reply{ExitCode: 1}, true
		}
		return command.Reply{}, false
	}}
}

func TestSSH_BuildAndDownload(t *testing.T) {
	runner := scripted(0, true)
	s := NewSSH(testConfig(), runner)

	res, err := s.Build(context.Background(), "http://h/foo-1.0-1.src.rpm")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "mock output\n", res.Stdout)
	assert.Equal(t, "mock warnings\n", res.Stderr)
	assert.Equal(t, "fedora30-x86_64", res.Details["chroot"])
	assert.Equal(t, "/var/tmp/mockremote-abcde", res.Details["remote_dir"])

	calls := runner.Recorded()
	require.Len(t, calls, 3)
	build := calls[1]
	assert.Equal(t, "ssh", build.Name)
	assert.Contains(t, build.Args, "mockbuilder@builder1")
	script := build.Args[len(build.Args)-1]
	assert.Contains(t, script, "/usr/bin/mockchain -r fedora30-x86_64 -l /var/tmp/mockremote-abcde/build/")
	assert.Contains(t, script, "-a https://repo/a")
	assert.Contains(t, script, "'--define=copr_username alice'")
	assert.Contains(t, script, "'--additional-package=make gcc'")
	assert.True(t, strings.HasSuffix(script, "http://h/foo-1.0-1.src.rpm"))
	assert.Contains(t, calls[2].Args[len(calls[2].Args)-1], "/var/tmp/mockremote-abcde/build/results/fedora30-x86_64/foo-1.0-1/success")

	dl, err := s.Download(context.Background(), "http://h/foo-1.0-1.src.rpm", "/res/fedora30-x86_64")
	require.NoError(t, err)
	assert.True(t, dl.OK)

	calls = runner.Recorded()
	rsync := calls[len(calls)-1]
	assert.Equal(t, "rsync", rsync.Name)
	assert.Equal(t, []string{"-avH", "-e", "ssh -o BatchMode=yes", "mockbuilder@builder1:/var/tmp/mockremote-abcde/build/results/fedora30-x86_64/", "/res/fedora30-x86_64/"}, rsync.Args)
}

func TestSSH_BuildFailures(t *testing.T) {
	res, err := NewSSH(testConfig(), scripted(1, false)).Build(context.Background(), "foo.src.rpm")
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = NewSSH(testConfig(), scripted(0, false)).Build(context.Background(), "foo.src.rpm")
	require.NoError(t, err)
	assert.False(t, res.OK, "missing success marker means failure")
}

func TestSSH_DownloadWithoutBuild(t *testing.T) {
	res, err := NewSSH(testConfig(), scripted(0, true)).Download(context.Background(), "foo.src.rpm", "/dest")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, res.Stderr, "no remote build directory")
}

func TestSSH_RemoteTempDir(t *testing.T) {
	cfg := testConfig()
	cfg.RemoteTempDir = "/tmp/fixed"
	runner := scripted(0, true)
	res, err := NewSSH(cfg, runner).Build(context.Background(), "foo.src.rpm")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fixed", res.Details["remote_dir"])
	assert.Equal(t, "mkdir -p /tmp/fixed", runner.Recorded()[0].Args[len(runner.Recorded()[0].Args)-1])
}

func TestSSH_Check(t *testing.T) {
	require.NoError(t, NewSSH(testConfig(), &command.FakeRunner{}).Check(context.Background()))

	err := NewSSH(testConfig(), &command.FakeRunner{Default: command.Reply{ExitCode: 255, Stderr: "Connection refused"}}).Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryExecutor))

	cfg := testConfig()
	cfg.Host = ""
	require.Error(t, NewSSH(cfg, &command.FakeRunner{}).Check(context.Background()))

	cfg = testConfig()
	cfg.Chroot = ""
	err = NewSSH(cfg, &command.FakeRunner{}).Check(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "plain-1.0", shellQuote("plain-1.0"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, `'it'"'"'s here'`, shellQuote("it's here"))
}
