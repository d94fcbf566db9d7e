// Package command runs external programs (ssh, rsync, sign, createrepo) with
// captured output.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// Spec describes one invocation.
type Spec struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the invocation for logs.
func (s Spec) String() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// Runner executes a Spec, streaming output to stdout and stderr. It returns
// the exit code; a non-zero exit is reported through both the code and err.
type Runner interface {
	Run(ctx context.Context, spec Spec, stdout, stderr io.Writer) (int, error)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, spec Spec, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	return -1, err
}

// Result is the captured outcome of Capture.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports a zero exit code.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Capture runs spec and collects its output. The returned error is nil when
// the program ran and exited, whatever its exit code; it is set only when the
// program could not be started or ctx ended.
func Capture(ctx context.Context, r Runner, spec Spec) (Result, error) {
	if r == nil {
		r = OSRunner{}
	}
	var stdout, stderr bytes.Buffer
	code, err := r.Run(ctx, spec, &stdout, &stderr)
	res := Result{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil && code < 0 {
		return res, err
	}
	return res, nil
}
