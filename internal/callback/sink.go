// Package callback delivers build progress, log and error notifications from
// an orchestrator to whoever observes it. Every method is fire-and-forget:
// sinks never report failures back to the orchestrator.
package callback

import (
	"sync"

	"github.com/yahoon/Copr/internal/eventstore"
)

// Sink receives build notifications.
type Sink interface {
	Log(msg string)
	Error(msg string)
	StartBuild(pkg string)
	EndBuild(pkg string)
	StartDownload(pkg string)
	EndDownload(pkg string)
}

// Finisher is implemented by sinks that record the final build outcome.
type Finisher interface {
	Finish(success bool, msg string)
}

// Finish reports the outcome to s if it is a Finisher.
func Finish(s Sink, success bool, msg string) {
	if f, ok := s.(Finisher); ok {
		f.Finish(success, msg)
	}
}

// Meta identifies the build a sink reports for.
type Meta struct {
	BuildID string
	Owner   string
	Project string
	Chroot  string
	Package string
}

func (m Meta) event(t eventstore.Type, pkg, msg string) eventstore.Event {
	if pkg == "" {
		pkg = m.Package
	}
	return eventstore.Event{
		BuildID: m.BuildID,
		Type:    t,
		Owner:   m.Owner,
		Project: m.Project,
		Chroot:  m.Chroot,
		Package: pkg,
		Message: msg,
	}
}

// Fanout forwards every notification to each sink in order.
type Fanout []Sink

func (f Fanout) Log(msg string) {
	for _, s := range f {
		s.Log(msg)
	}
}

func (f Fanout) Error(msg string) {
	for _, s := range f {
		s.Error(msg)
	}
}

func (f Fanout) StartBuild(pkg string) {
	for _, s := range f {
		s.StartBuild(pkg)
	}
}

func (f Fanout) EndBuild(pkg string) {
	for _, s := range f {
		s.EndBuild(pkg)
	}
}

func (f Fanout) StartDownload(pkg string) {
	for _, s := range f {
		s.StartDownload(pkg)
	}
}

func (f Fanout) EndDownload(pkg string) {
	for _, s := range f {
		s.EndDownload(pkg)
	}
}

// Finish forwards the outcome to every sink that is a Finisher.
func (f Fanout) Finish(success bool, msg string) {
	for _, s := range f {
		Finish(s, success, msg)
	}
}

// Memory records notifications as events. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []eventstore.Event
}

func (m *Memory) add(t eventstore.Type, pkg, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventstore.Event{Type: t, Package: pkg, Message: msg})
}

func (m *Memory) Log(msg string)           { m.add(eventstore.TypeLog, "", msg) }
func (m *Memory) Error(msg string)         { m.add(eventstore.TypeError, "", msg) }
func (m *Memory) StartBuild(pkg string)    { m.add(eventstore.TypeBuildStarted, pkg, "") }
func (m *Memory) EndBuild(pkg string)      { m.add(eventstore.TypeBuildEnded, pkg, "") }
func (m *Memory) StartDownload(pkg string) { m.add(eventstore.TypeDownloadStarted, pkg, "") }
func (m *Memory) EndDownload(pkg string)   { m.add(eventstore.TypeDownloadEnded, pkg, "") }

// Finish records the final outcome.
func (m *Memory) Finish(success bool, msg string) {
	t := eventstore.TypeFailed
	if success {
		t = eventstore.TypeSucceeded
	}
	m.add(t, "", msg)
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []eventstore.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]eventstore.Event(nil), m.events...)
}

// OfType returns the recorded events of type t.
func (m *Memory) OfType(t eventstore.Type) []eventstore.Event {
	var out []eventstore.Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
