package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/yahoon/Copr/internal/command"
	"github.com/yahoon/Copr/internal/foundation/errors"
	"github.com/yahoon/Copr/internal/job"
	"github.com/yahoon/Copr/internal/logfields"
)

// SSHConfig configures an SSH executor for one chroot.
type SSHConfig struct {
	Host          string
	User          string
	SSHOptions    []string
	Mockchain     string
	Rsync         string
	Chroot        string
	Repos         []string
	Macros        map[string]string
	BuildrootPkgs []string
	Timeout       time.Duration
	RemoteBaseDir string
	RemoteTempDir string
}

// SSH builds packages with mockchain on a remote host and pulls the results
// back with rsync.
type SSH struct {
	cfg    SSHConfig
	runner command.Runner

	mu      sync.Mutex
	tmpDirs map[string]string // pkg -> remote working directory
}

// NewSSH returns an executor using runner (os/exec when nil).
func NewSSH(cfg SSHConfig, runner command.Runner) *SSH {
	if runner == nil {
		runner = command.OSRunner{}
	}
	if cfg.Mockchain == "" {
		cfg.Mockchain = "/usr/bin/mockchain"
	}
	if cfg.Rsync == "" {
		cfg.Rsync = "rsync"
	}
	return &SSH{cfg: cfg, runner: runner, tmpDirs: make(map[string]string)}
}

func (s *SSH) target() string {
	if s.cfg.User == "" {
		return s.cfg.Host
	}
	return s.cfg.User + "@" + s.cfg.Host
}

func (s *SSH) remote(ctx context.Context, script string) (command.Result, error) {
	args := append(append([]string{}, s.cfg.SSHOptions...), s.target(), script)
	return command.Capture(ctx, s.runner, command.Spec{Name: "ssh", Args: args})
}

// Check verifies the host answers over ssh and has mockchain installed.
func (s *SSH) Check(ctx context.Context) error {
	if s.cfg.Host == "" {
		return errors.ExecutorError("no builder host specified").Build()
	}
	if s.cfg.Chroot == "" {
		return errors.ConfigError("no chroot specified").Build()
	}
	res, err := s.remote(ctx, "test -x "+shellQuote(s.cfg.Mockchain))
	if err != nil {
		return errors.WrapError(err, errors.CategoryExecutor, "builder host unreachable").
			Fatal().
			WithContext("host", s.cfg.Host).
			Build()
	}
	if !res.OK() {
		return errors.ExecutorError("builder host is not usable").
			WithContext("host", s.cfg.Host).
			WithContext("exit_code", res.ExitCode).
			WithContext("stderr", strings.TrimSpace(res.Stderr)).
			Build()
	}
	return nil
}

// Build runs mockchain for pkg in a fresh remote working directory.
func (s *SSH) Build(ctx context.Context, pkg string) (BuildResult, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	tmpDir, err := s.makeTempDir(ctx)
	if err != nil {
		return BuildResult{}, err
	}
	s.mu.Lock()
	s.tmpDirs[pkg] = tmpDir
	s.mu.Unlock()

	started := time.Now()
	slog.Info("Starting remote build",
		logfields.Host(s.cfg.Host),
		logfields.Chroot(s.cfg.Chroot),
		logfields.Package(pkg),
		logfields.Path(tmpDir))

	res, err := s.remote(ctx, s.mockchainCommand(tmpDir, pkg))
	if err != nil {
		return BuildResult{Stdout: res.Stdout, Stderr: res.Stderr}, errors.WrapError(err, errors.CategoryExecutor, "remote build did not complete").
			WithContext("host", s.cfg.Host).
			Build()
	}

	ok := res.OK()
	if ok {
		// mockchain exits 0 even when it skipped the package; the success marker is authoritative
		check, err := s.remote(ctx, "test -f "+shellQuote(path.Join(s.resultDir(tmpDir, pkg), "success")))
		ok = err == nil && check.OK()
	}

	return BuildResult{
		OK:     ok,
		Stdout: res.Stdout,
		Stderr: res.Stderr,
		Details: map[string]any{
			"chroot":     s.cfg.Chroot,
			"host":       s.cfg.Host,
			"remote_dir": tmpDir,
			"build_time": int(time.Since(started).Seconds()),
		},
	}, nil
}

// Download rsyncs the chroot results of the last Build of pkg into destDir.
func (s *SSH) Download(ctx context.Context, pkg, destDir string) (DownloadResult, error) {
	s.mu.Lock()
	tmpDir, ok := s.tmpDirs[pkg]
	s.mu.Unlock()
	if !ok {
		return DownloadResult{Stderr: "no remote build directory for " + pkg}, nil
	}

	src := fmt.Sprintf("%s:%s/", s.target(), path.Join(tmpDir, "build", "results", s.cfg.Chroot))
	sshCmd := strings.Join(append([]string{"ssh"}, s.cfg.SSHOptions...), " ")
	res, err := command.Capture(ctx, s.runner, command.Spec{
		Name: s.cfg.Rsync,
		Args: []string{"-avH", "-e", sshCmd, src, strings.TrimSuffix(destDir, "/") + "/"},
	})
	if err != nil {
		return DownloadResult{Stdout: res.Stdout, Stderr: res.Stderr}, errors.WrapError(err, errors.CategoryExecutor, "download did not complete").
			WithContext("host", s.cfg.Host).
			Build()
	}
	return DownloadResult{OK: res.OK(), Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

func (s *SSH) makeTempDir(ctx context.Context) (string, error) {
	if s.cfg.RemoteTempDir != "" {
		res, err := s.remote(ctx, "mkdir -p "+shellQuote(s.cfg.RemoteTempDir))
		if err != nil || !res.OK() {
			return "", s.tempDirError(err, res)
		}
		return s.cfg.RemoteTempDir, nil
	}

	base := s.cfg.RemoteBaseDir
	if base == "" {
		base = "/var/tmp"
	}
	res, err := s.remote(ctx, "/bin/mktemp -d "+shellQuote(base)+"/mockremote-XXXXX")
	if err != nil || !res.OK() {
		return "", s.tempDirError(err, res)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (s *SSH) tempDirError(err error, res command.Result) error {
	b := errors.ExecutorError("failed to create remote working directory").
		WithContext("host", s.cfg.Host).
		WithContext("stderr", strings.TrimSpace(res.Stderr))
	if err != nil {
		b = b.WithCause(err)
	}
	return b.Build()
}

func (s *SSH) resultDir(tmpDir, pkg string) string {
	return path.Join(tmpDir, "build", "results", s.cfg.Chroot, job.PackageBaseName(pkg))
}

func (s *SSH) mockchainCommand(tmpDir, pkg string) string {
	parts := []string{shellQuote(s.cfg.Mockchain), "-r", shellQuote(s.cfg.Chroot), "-l", shellQuote(path.Join(tmpDir, "build") + "/")}
	for _, repo := range s.cfg.Repos {
		parts = append(parts, "-a", shellQuote(repo))
	}
	for _, k := range sortedKeys(s.cfg.Macros) {
		parts = append(parts, "-m", shellQuote(fmt.Sprintf("--define=%s %s", k, s.cfg.Macros[k])))
	}
	if len(s.cfg.BuildrootPkgs) > 0 {
		parts = append(parts, "-m", shellQuote("--additional-package="+strings.Join(s.cfg.BuildrootPkgs, " ")))
	}
	parts = append(parts, shellQuote(pkg))
	return strings.Join(parts, " ")
}

// shellQuote quotes s for a POSIX shell on the remote side.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
