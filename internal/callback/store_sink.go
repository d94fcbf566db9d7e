package callback

import (
	"context"
	"log/slog"
	"time"

	"github.com/yahoon/Copr/internal/eventstore"
	"github.com/yahoon/Copr/internal/logfields"
)

// StoreSink persists notifications in an event store.
type StoreSink struct {
	store   eventstore.Store
	meta    Meta
	timeout time.Duration
}

// NewStoreSink returns a sink appending to store.
func NewStoreSink(store eventstore.Store, meta Meta) *StoreSink {
	return &StoreSink{store: store, meta: meta, timeout: 5 * time.Second}
}

func (s *StoreSink) append(t eventstore.Type, pkg, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	e := s.meta.event(t, pkg, msg)
	e.Timestamp = time.Now()
	if err := s.store.Append(ctx, e); err != nil {
		slog.Warn("Failed to persist build event",
			logfields.BuildID(s.meta.BuildID),
			logfields.Event(string(t)),
			logfields.Error(err))
	}
}

func (s *StoreSink) Log(msg string)           { s.append(eventstore.TypeLog, "", msg) }
func (s *StoreSink) Error(msg string)         { s.append(eventstore.TypeError, "", msg) }
func (s *StoreSink) StartBuild(pkg string)    { s.append(eventstore.TypeBuildStarted, pkg, "") }
func (s *StoreSink) EndBuild(pkg string)      { s.append(eventstore.TypeBuildEnded, pkg, "") }
func (s *StoreSink) StartDownload(pkg string) { s.append(eventstore.TypeDownloadStarted, pkg, "") }
func (s *StoreSink) EndDownload(pkg string)   { s.append(eventstore.TypeDownloadEnded, pkg, "") }

// Finish records the final outcome of the build.
func (s *StoreSink) Finish(success bool, msg string) {
	t := eventstore.TypeFailed
	if success {
		t = eventstore.TypeSucceeded
	}
	s.append(t, "", msg)
}
