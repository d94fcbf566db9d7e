// Package eventstore persists callback events emitted by build orchestrators
// and derives per-build summaries from them.
package eventstore

import (
	"sort"
	"time"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// BuildSummary is a read model reconstructed from the events of one build.
type BuildSummary struct {
	BuildID     string     `json:"build_id"`
	Owner       string     `json:"owner,omitempty"`
	Project     string     `json:"project,omitempty"`
	Chroot      string     `json:"chroot,omitempty"`
	Package     string     `json:"package,omitempty"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	Downloads   int        `json:"downloads"`
	Errors      []string   `json:"errors,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Summarize folds events into one summary per build, ordered by start time.
func Summarize(events []Event) []BuildSummary {
	byID := make(map[string]*BuildSummary)
	var order []string

	for _, e := range events {
		if e.BuildID == "" {
			continue
		}
		s, ok := byID[e.BuildID]
		if !ok {
			s = &BuildSummary{BuildID: e.BuildID, Status: StatusRunning, StartedAt: e.Timestamp}
			byID[e.BuildID] = s
			order = append(order, e.BuildID)
		}
		if s.Owner == "" {
			s.Owner, s.Project, s.Chroot = e.Owner, e.Project, e.Chroot
		}
		if s.Package == "" {
			s.Package = e.Package
		}

		switch e.Type {
		case TypeBuildStarted:
			s.Attempts++
		case TypeDownloadEnded:
			s.Downloads++
		case TypeError:
			s.Errors = append(s.Errors, e.Message)
		case TypeSucceeded, TypeFailed:
			s.Status = StatusSucceeded
			if e.Type == TypeFailed {
				s.Status = StatusFailed
			}
			ts := e.Timestamp
			s.CompletedAt = &ts
		}
	}

	out := make([]BuildSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
