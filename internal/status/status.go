// Package status implements the on-disk protocol between a transfer worker
// and everything outside it: the per-job status document the worker rewrites
// as it progresses, and the cancel sentinel anyone may create to ask the
// worker to stop.
//
// The document is rewritten whole on every update and the rewrite is not
// atomic, so readers can observe a truncated or empty file mid-write. The
// protocol defines such reads as "still processing" rather than errors.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// DownloadStage is the download phase's fine-grained state.
type DownloadStage string

const (
	DownloadPending   DownloadStage = "pending"
	Downloading       DownloadStage = "downloading"
	DownloadCompleted DownloadStage = "completed"
	DownloadFailed    DownloadStage = "failed"
	DownloadCancelled DownloadStage = "cancelled"
)

// CloudStage is a single destination's fine-grained upload state.
type CloudStage string

const (
	CloudPending       CloudStage = "pending"
	CloudChecking      CloudStage = "checking"
	CloudUploading     CloudStage = "uploading"
	CloudGeneratingURL CloudStage = "generating_url"
	CloudCompleted     CloudStage = "completed"
	CloudSkipped       CloudStage = "skipped"
	CloudFailed        CloudStage = "failed"
)

// URLKind distinguishes how an object's access URL was produced.
type URLKind string

const (
	URLPublic    URLKind = "public"
	URLPresigned URLKind = "presigned"
)

// DownloadState is the download section of a status document.
type DownloadState struct {
	Stage      DownloadStage `json:"stage"`
	Percentage int           `json:"percentage"`
	Message    string        `json:"message"`
}

// CloudState is one destination's section of a status document.
type CloudState struct {
	Stage      CloudStage `json:"stage"`
	Percentage int        `json:"percentage"`
	Message    string     `json:"message"`
	URL        string     `json:"url,omitempty"`
	URLKind    URLKind    `json:"url_kind,omitempty"`
}

// Document is the full per-job status document.
type Document struct {
	JobID    string                `json:"job_id"`
	Filename string                `json:"filename"`
	URL      string                `json:"url"`
	Status   registry.Status       `json:"status"`
	Download DownloadState         `json:"download"`
	Clouds   map[string]CloudState `json:"clouds"`
}

// DocumentPath returns the status document path for a job.
func DocumentPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".status.json")
}

// SentinelPath returns the cancel sentinel path for a job.
func SentinelPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".cancel")
}

// Writer is the single legitimate writer of a job's status document. It holds
// the document in memory and rewrites the whole file on every mutation.
type Writer struct {
	fs   vfs.Filesystem
	path string

	mu  sync.Mutex
	doc Document
}

// NewWriter creates a writer for the given job. The document is not persisted
// until Init.
func NewWriter(filesystem vfs.Filesystem, dir, jobID, filename, url string, destinations []string) *Writer {
	clouds := make(map[string]CloudState, len(destinations))
	for _, d := range destinations {
		clouds[d] = CloudState{Stage: CloudPending, Message: "Waiting"}
	}
	return &Writer{
		fs:   filesystem,
		path: DocumentPath(dir, jobID),
		doc: Document{
			JobID:    jobID,
			Filename: filename,
			URL:      url,
			Status:   registry.StatusProcessing,
			Download: DownloadState{Stage: DownloadPending, Message: "Waiting"},
			Clouds:   clouds,
		},
	}
}

// Init writes the initial document so readers never confuse "file absent"
// with "worker not yet launched".
func (w *Writer) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// SetStatus updates the job-level status and persists.
func (w *Writer) SetStatus(s registry.Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.Status = s
	return w.flushLocked()
}

// SetDownload updates the download section and persists.
func (w *Writer) SetDownload(stage DownloadStage, percentage int, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.Download = DownloadState{Stage: stage, Percentage: percentage, Message: message}
	return w.flushLocked()
}

// SetCloud replaces one destination's section and persists.
func (w *Writer) SetCloud(destination string, state CloudState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.Clouds[destination] = state
	return w.flushLocked()
}

// Snapshot returns a copy of the current document.
func (w *Writer) Snapshot() Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc := w.doc
	doc.Clouds = make(map[string]CloudState, len(w.doc.Clouds))
	for k, v := range w.doc.Clouds {
		doc.Clouds[k] = v
	}
	return doc
}

func (w *Writer) flushLocked() error {
	data, err := json.MarshalIndent(w.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status document: %w", err)
	}
	if err := w.fs.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("writing status document %s: %w", w.path, err)
	}
	return nil
}

// Read loads a job's status document.
//
// Returns present=false when the document does not exist. A document that
// exists but fails to parse (a read raced a rewrite) is reported as a bare
// processing state, never as an error. Genuine I/O failures such as
// permission errors are returned as errors.
func Read(filesystem vfs.Filesystem, dir, jobID string) (doc Document, present bool, err error) {
	path := DocumentPath(dir, jobID)
	data, err := filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, false, nil
		}
		return Document{}, false, fmt.Errorf("reading status document %s: %w", path, err)
	}

	if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil || doc.JobID == "" {
		return Document{JobID: jobID, Status: registry.StatusProcessing}, true, nil
	}
	return doc, true, nil
}

// Resolve merges a job's registry status with its status document. The
// document is authoritative when present; when the registry says the job is
// running but no document exists yet, the worker simply has not written one,
// so the registry's answer stands.
func Resolve(registryStatus registry.Status, doc Document, present bool) registry.Status {
	if present && doc.Status != "" {
		return doc.Status
	}
	return registryStatus
}

// Sentinel manages a job's cancel sentinel file. Existence alone carries the
// signal; the content is a timestamp for diagnostics only.
type Sentinel struct {
	fs   vfs.Filesystem
	path string
}

// NewSentinel creates a handle for a job's cancel sentinel.
func NewSentinel(filesystem vfs.Filesystem, dir, jobID string) *Sentinel {
	return &Sentinel{fs: filesystem, path: SentinelPath(dir, jobID)}
}

// Request creates the sentinel, asking the owning worker to cancel.
func (s *Sentinel) Request() error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := s.fs.WriteFile(s.path, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("writing cancel sentinel %s: %w", s.path, err)
	}
	return nil
}

// Present reports whether the sentinel exists. Probe errors are treated as
// "not cancelled": a transient stat failure must not abort a healthy
// transfer.
func (s *Sentinel) Present() bool {
	exists, err := s.fs.Exists(s.path)
	if err != nil {
		return false
	}
	return exists
}

// Clear removes the sentinel. Observers delete sentinels, creators never do;
// a missing file is not an error.
func (s *Sentinel) Clear() error {
	exists, err := s.fs.Exists(s.path)
	if err != nil || !exists {
		return nil
	}
	return s.fs.Remove(s.path)
}

// Probe returns the sentinel check as a plain function for transfer stages
// that should not know about the on-disk protocol.
func (s *Sentinel) Probe() func() bool {
	return s.Present
}
