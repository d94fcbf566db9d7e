package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yahoon/Copr/internal/foundation/errors"
)

const (
	ProcessingDir = "processing"
	DoneDir       = "done"
	FailedDir     = "failed"

	jobSuffix    = ".json"
	ResultSuffix = ".result.json"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Result is written next to a finished job file.
type Result struct {
	BuildID    string         `json:"build_id,omitempty"`
	Job        string         `json:"job"`
	Status     string         `json:"status"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Spool is a directory of job files and its state subdirectories.
type Spool struct {
	root string
}

// OpenSpool creates root and its state subdirectories if needed.
func OpenSpool(root string) (*Spool, error) {
	if root == "" {
		return nil, errors.ConfigError("worker.spool_dir is required").Build()
	}
	for _, dir := range []string{root, filepath.Join(root, ProcessingDir), filepath.Join(root, DoneDir), filepath.Join(root, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create spool directory").
				WithContext("path", dir).
				Build()
		}
	}
	return &Spool{root: root}, nil
}

// Root returns the directory producers drop jobs into.
func (s *Spool) Root() string { return s.root }

// IsJobFile reports whether name is a job file producers are done writing.
func IsJobFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, jobSuffix) &&
		!strings.HasSuffix(base, ResultSuffix) &&
		!strings.HasPrefix(base, ".")
}

// Pending lists job files waiting in the spool root, sorted by name.
func (s *Spool) Pending() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list spool").
			WithContext("path", s.root).
			Build()
	}
	var jobs []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsJobFile(e.Name()) {
			jobs = append(jobs, filepath.Join(s.root, e.Name()))
		}
	}
	sort.Strings(jobs)
	return jobs, nil
}

// Claim moves a pending job into processing/. It reports false when the job
// is gone, typically because another worker claimed it first.
func (s *Spool) Claim(path string) (string, bool, error) {
	claimed := filepath.Join(s.root, ProcessingDir, filepath.Base(path))
	if err := os.Rename(path, claimed); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.WrapError(err, errors.CategoryFileSystem, "failed to claim job").
			WithContext("path", path).
			Build()
	}
	return claimed, true, nil
}

// Release moves a claimed job back into the spool root.
func (s *Spool) Release(claimed string) error {
	if err := os.Rename(claimed, filepath.Join(s.root, filepath.Base(claimed))); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to release job").
			WithContext("path", claimed).
			Build()
	}
	return nil
}

// Recover releases jobs left in processing/ by a previous run.
func (s *Spool) Recover() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, ProcessingDir))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list processing directory").Build()
	}
	var released []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsJobFile(e.Name()) {
			continue
		}
		if err := s.Release(filepath.Join(s.root, ProcessingDir, e.Name())); err != nil {
			return released, err
		}
		released = append(released, e.Name())
	}
	return released, nil
}

// Finish moves a claimed job into done/ or failed/ and writes res next to it.
// It returns the final job path.
func (s *Spool) Finish(claimed string, res Result) (string, error) {
	dir := DoneDir
	if res.Status != StatusSucceeded {
		dir = FailedDir
	}
	name := filepath.Base(claimed)
	final := filepath.Join(s.root, dir, name)
	if err := os.Rename(claimed, final); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to move finished job").
			WithContext("path", claimed).
			Build()
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return final, fmt.Errorf("failed to encode job result: %w", err)
	}
	resultPath := filepath.Join(s.root, dir, strings.TrimSuffix(name, jobSuffix)+ResultSuffix)
	tmp := filepath.Join(s.root, dir, "."+filepath.Base(resultPath)+".tmp")
	err = os.WriteFile(tmp, append(data, '\n'), 0o644)
	if err == nil {
		err = os.Rename(tmp, resultPath)
	}
	if err != nil {
		return final, errors.WrapError(err, errors.CategoryFileSystem, "failed to write job result").
			WithContext("path", resultPath).
			Build()
	}
	return final, nil
}

// ReadResult loads the result written for a finished job file.
func ReadResult(finishedJob string) (Result, error) {
	var res Result
	data, err := os.ReadFile(strings.TrimSuffix(finishedJob, jobSuffix) + ResultSuffix)
	if err != nil {
		return res, err
	}
	err = json.Unmarshal(data, &res)
	return res, err
}
