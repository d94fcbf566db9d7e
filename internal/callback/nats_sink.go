package callback

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yahoon/Copr/internal/eventstore"
	"github.com/yahoon/Copr/internal/logfields"
)

// Publisher publishes a message on a subject; natsclient.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSSink broadcasts notifications as JSON events on
// <subject>.<owner>.<project>.<type>.
type NATSSink struct {
	pub     Publisher
	subject string
	meta    Meta
	timeout time.Duration
}

// NewNATSSink returns a sink publishing under subject.
func NewNATSSink(pub Publisher, subject string, meta Meta) *NATSSink {
	return &NATSSink{pub: pub, subject: subject, meta: meta, timeout: 5 * time.Second}
}

// Subject returns the subject an event of type t is published on.
func (s *NATSSink) Subject(t eventstore.Type) string {
	subj := s.subject
	if s.meta.Owner != "" && s.meta.Project != "" {
		subj += "." + token(s.meta.Owner) + "." + token(s.meta.Project)
	}
	return subj + "." + string(t)
}

func (s *NATSSink) publish(t eventstore.Type, pkg, msg string) {
	e := s.meta.event(t, pkg, msg)
	e.Timestamp = time.Now()
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Failed to encode build event", logfields.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.Subject(t), data); err != nil {
		slog.Warn("Failed to publish build event",
			logfields.BuildID(s.meta.BuildID),
			logfields.Event(string(t)),
			logfields.Error(err))
	}
}

func (s *NATSSink) Log(msg string)           { s.publish(eventstore.TypeLog, "", msg) }
func (s *NATSSink) Error(msg string)         { s.publish(eventstore.TypeError, "", msg) }
func (s *NATSSink) StartBuild(pkg string)    { s.publish(eventstore.TypeBuildStarted, pkg, "") }
func (s *NATSSink) EndBuild(pkg string)      { s.publish(eventstore.TypeBuildEnded, pkg, "") }
func (s *NATSSink) StartDownload(pkg string) { s.publish(eventstore.TypeDownloadStarted, pkg, "") }
func (s *NATSSink) EndDownload(pkg string)   { s.publish(eventstore.TypeDownloadEnded, pkg, "") }

// Finish publishes the final outcome of the build.
func (s *NATSSink) Finish(success bool, msg string) {
	t := eventstore.TypeFailed
	if success {
		t = eventstore.TypeSucceeded
	}
	s.publish(t, "", msg)
}

// token replaces characters that are not valid inside a NATS subject token.
func token(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r == '.' || r == '*' || r == '>' || r == ' ' || r == '\t' {
			out[i] = '_'
		}
	}
	return string(out)
}
