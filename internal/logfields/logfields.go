package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyJobID      = "job_id"
	KeyPackage    = "package"
	KeyChroot     = "chroot"
	KeyOwner      = "owner"
	KeyProject    = "project"
	KeyHost       = "host"
	KeyAttempt    = "attempt"
	KeyStage      = "stage"
	KeyStatus     = "status"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyWorker     = "worker"
	KeyEvent      = "event"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Package(p string) slog.Attr      { return slog.String(KeyPackage, p) }
func Chroot(c string) slog.Attr       { return slog.String(KeyChroot, c) }
func Owner(o string) slog.Attr        { return slog.String(KeyOwner, o) }
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Event(kind string) slog.Attr     { return slog.String(KeyEvent, kind) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
