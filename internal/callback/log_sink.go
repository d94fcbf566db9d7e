package callback

import (
	"log/slog"

	"github.com/yahoon/Copr/internal/logfields"
)

// LogSink writes notifications to a slog.Logger. It is the default sink.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging through logger (slog.Default when nil),
// tagging every record with the build identity in meta.
func NewLogSink(logger *slog.Logger, meta Meta) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	var attrs []any
	if meta.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(meta.BuildID))
	}
	if meta.Owner != "" {
		attrs = append(attrs, logfields.Owner(meta.Owner), logfields.Project(meta.Project))
	}
	if meta.Chroot != "" {
		attrs = append(attrs, logfields.Chroot(meta.Chroot))
	}
	return &LogSink{logger: logger.With(attrs...)}
}

func (s *LogSink) Log(msg string)   { s.logger.Info(msg) }
func (s *LogSink) Error(msg string) { s.logger.Error(msg) }

func (s *LogSink) StartBuild(pkg string) {
	s.logger.Info("Start build", logfields.Package(pkg))
}

func (s *LogSink) EndBuild(pkg string) {
	s.logger.Info("End build", logfields.Package(pkg))
}

func (s *LogSink) StartDownload(pkg string) {
	s.logger.Info("Start retrieve results", logfields.Package(pkg))
}

func (s *LogSink) EndDownload(pkg string) {
	s.logger.Info("End retrieve results", logfields.Package(pkg))
}
