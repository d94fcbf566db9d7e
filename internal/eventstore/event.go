package eventstore

import "time"

// Type names a callback event kind.
type Type string

const (
	TypeLog             Type = "log"
	TypeError           Type = "error"
	TypeBuildStarted    Type = "build_started"
	TypeBuildEnded      Type = "build_ended"
	TypeDownloadStarted Type = "download_started"
	TypeDownloadEnded   Type = "download_ended"
	TypeSucceeded       Type = "succeeded"
	TypeFailed          Type = "failed"
)

// Event is one recorded progress, log or error notification of a build.
type Event struct {
	ID        int64             `json:"id,omitempty"`
	BuildID   string            `json:"build_id"`
	Type      Type              `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Owner     string            `json:"owner,omitempty"`
	Project   string            `json:"project,omitempty"`
	Chroot    string            `json:"chroot,omitempty"`
	Package   string            `json:"package,omitempty"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
