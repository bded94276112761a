// Package registry implements the file-backed job registry: a single JSON
// document listing every job ever submitted and its last dispatcher-visible
// status. The registry is the dispatcher's source of truth; workers never
// write it, they report through their per-job status documents instead.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"time"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// Status is a job's dispatcher-visible lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRemoved    Status = "removed"
)

// Terminal reports whether s is a final state the dispatcher will never
// transition away from.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusFailed, StatusRemoved:
		return true
	}
	return false
}

// Job is one registry entry.
type Job struct {
	ID           string   `json:"job_id"`
	Filename     string   `json:"filename"`
	URL          string   `json:"url"`
	Status       Status   `json:"status"`
	Destinations []string `json:"selected_destinations"`
}

// NewJobID derives a job identifier from the submission time and filename.
// The hash suffix keeps two same-second submissions of different files
// distinct.
func NewJobID(filename string) string {
	h := fnv.New32a()
	h.Write([]byte(filename))
	return fmt.Sprintf("job_%d_%04x", time.Now().Unix(), h.Sum32()&0xffff)
}

// Store persists the job list as a single JSON document.
type Store struct {
	fs   vfs.Filesystem
	path string
	log  *slog.Logger
}

// NewStore creates a store over the registry file at path.
func NewStore(filesystem vfs.Filesystem, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fs: filesystem, path: path, log: logger}
}

// Load reads the full job list. A missing, unreadable or corrupt registry
// file yields an empty list rather than an error: the registry is
// append-mostly operator state, and refusing to start over a damaged file
// would wedge the whole pipeline.
func (s *Store) Load() ([]Job, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.log.Warn("registry file is unreadable, starting empty",
			"path", s.path,
			"error", err)
		return nil, nil
	}

	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		s.log.Warn("registry file is corrupt, starting empty",
			"path", s.path,
			"error", err)
		return nil, nil
	}
	return jobs, nil
}

// Save writes the full job list, replacing the previous document.
func (s *Store) Save(jobs []Job) error {
	if jobs == nil {
		jobs = []Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := s.fs.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry %s: %w", s.path, err)
	}
	return nil
}

// Add appends a new pending job and persists the list.
func (s *Store) Add(job Job) error {
	jobs, err := s.Load()
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.ID == job.ID {
			return fmt.Errorf("job %s already registered", job.ID)
		}
	}
	jobs = append(jobs, job)
	return s.Save(jobs)
}

// SetStatus updates one job's status and persists the list.
func (s *Store) SetStatus(jobID string, status Status) error {
	jobs, err := s.Load()
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID == jobID {
			jobs[i].Status = status
			return s.Save(jobs)
		}
	}
	return fmt.Errorf("job %s not found", jobID)
}

// RemovePending deletes a job that has not started. Jobs in any other state
// are left untouched and reported as an error so callers cannot silently
// drop a running worker's registry entry.
func (s *Store) RemovePending(jobID string) error {
	jobs, err := s.Load()
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID != jobID {
			continue
		}
		if jobs[i].Status != StatusPending {
			return fmt.Errorf("job %s is %s, only pending jobs can be removed", jobID, jobs[i].Status)
		}
		jobs = append(jobs[:i], jobs[i+1:]...)
		return s.Save(jobs)
	}
	return fmt.Errorf("job %s not found", jobID)
}

// ClearTerminal removes every job in a terminal state and returns how many
// were dropped.
func (s *Store) ClearTerminal() (int, error) {
	jobs, err := s.Load()
	if err != nil {
		return 0, err
	}
	kept := jobs[:0]
	for _, j := range jobs {
		if !j.Status.Terminal() {
			kept = append(kept, j)
		}
	}
	removed := len(jobs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.Save(kept)
}
