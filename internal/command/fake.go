package command

import (
	"context"
	"io"
	"sync"
)

// Reply is a scripted response of FakeRunner.
type Reply struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// FakeRunner is intended for tests: it records every Spec and answers with
// the first matching reply from Match, falling back to Default.
type FakeRunner struct {
	mu      sync.Mutex
	Calls   []Spec
	Match   func(spec Spec) (Reply, bool)
	Default Reply
}

func (f *FakeRunner) Run(_ context.Context, spec Spec, stdout, stderr io.Writer) (int, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, spec)
	match := f.Match
	reply := f.Default
	f.mu.Unlock()

	if match != nil {
		if r, ok := match(spec); ok {
			reply = r
		}
	}
	_, _ = io.WriteString(stdout, reply.Stdout)
	_, _ = io.WriteString(stderr, reply.Stderr)
	return reply.ExitCode, reply.Err
}

// Recorded returns a copy of the recorded calls.
func (f *FakeRunner) Recorded() []Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Spec(nil), f.Calls...)
}
