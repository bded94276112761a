// Package worker implements the single-job transfer process: download the
// source URL, replicate to every selected destination in order, and report
// through the job's status document. One worker process owns exactly one
// job's status document for its lifetime.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/catalog"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/download"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/progress"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/status"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/upload"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

var _ upload.Store = (*objstore.Client)(nil)

// Config describes one worker invocation.
type Config struct {
	JobID        string
	URL          string
	Filename     string
	Destinations []string

	// Catalog resolves destination names to credentials and endpoints.
	Catalog *catalog.Catalog

	// FS is the filesystem holding the status directory, the work directory
	// and the downloaded temp file.
	FS vfs.Filesystem

	// StatusDir holds status documents and cancel sentinels.
	StatusDir string

	// WorkDir holds the temporary download before it is uploaded.
	WorkDir string

	// HTTPClient overrides the download transport. Nil selects the default
	// with dial and header timeouts.
	HTTPClient *http.Client

	// Interval throttles progress reporting and cancel polling. Zero selects
	// one second.
	Interval time.Duration

	// Stage overrides the upload stage. Nil builds the real object-store
	// stage; tests inject one with fake stores.
	Stage *upload.Stage

	// Logger receives worker diagnostics. Nil selects slog.Default.
	Logger *slog.Logger
}

// Worker runs one job to a terminal state.
type Worker struct {
	cfg    Config
	log    *slog.Logger
	writer *status.Writer
	cancel *status.Sentinel
}

// New creates a worker for the given job.
func New(cfg Config) *Worker {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("job_id", cfg.JobID)

	if cfg.Stage == nil {
		cfg.Stage = upload.NewStage(func(dest catalog.Destination) (upload.Store, error) {
			return objstore.New(dest,
				objstore.WithFilesystem(cfg.FS),
				objstore.WithLogger(log),
			)
		}, cfg.Interval, log)
	}

	return &Worker{
		cfg:    cfg,
		log:    log,
		writer: status.NewWriter(cfg.FS, cfg.StatusDir, cfg.JobID, cfg.Filename, cfg.URL, cfg.Destinations),
		cancel: status.NewSentinel(cfg.FS, cfg.StatusDir, cfg.JobID),
	}
}

// Run executes the job. The returned error is non-nil only when the worker
// could not even initialize its status document; every other outcome,
// including download and upload failures, lives in the status document and
// returns nil.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.writer.Init(); err != nil {
		return fmt.Errorf("initializing status document: %w", err)
	}

	tempPath := filepath.Join(w.cfg.WorkDir, w.cfg.JobID+"_"+w.cfg.Filename)
	final := registry.StatusFailed

	// Cleanup runs on every exit path: drop the temp file, consume any
	// sentinel, and persist the terminal status.
	defer func() {
		if exists, err := w.cfg.FS.Exists(tempPath); err == nil && exists {
			if err := w.cfg.FS.Remove(tempPath); err != nil {
				w.log.Warn("removing temp file failed", "path", tempPath, "error", err)
			}
		}
		if err := w.cancel.Clear(); err != nil {
			w.log.Warn("clearing cancel sentinel failed", "error", err)
		}
		if err := w.writer.SetStatus(final); err != nil {
			w.log.Error("writing final status failed", "status", final, "error", err)
		}
	}()

	// A cancellation filed before the worker even started wins outright.
	if w.cancel.Present() {
		w.log.Info("cancelled before start")
		final = registry.StatusCancelled
		return nil
	}

	size, ok := w.download(ctx, tempPath, &final)
	if !ok {
		return nil
	}

	// A cancellation that landed in the download's final seconds must not be
	// lost just because the polling loop never saw it. The download section
	// is rewritten so readers never see a completed download on a cancelled
	// job.
	if w.cancel.Present() {
		w.log.Info("cancelled between download and upload")
		w.setDownload(status.DownloadCancelled, 0, "Cancelled after download")
		final = registry.StatusCancelled
		return nil
	}

	final = w.uploadAll(ctx, tempPath, size)
	return nil
}

// download runs the download phase. ok=false means the job reached a
// terminal state (already stored in *final) and uploads must not run.
func (w *Worker) download(ctx context.Context, tempPath string, final *registry.Status) (int64, bool) {
	w.setDownload(status.Downloading, 0, "Starting download")

	size, err := download.Download(ctx, w.cfg.URL, tempPath, w.cfg.FS, download.Options{
		Client:   w.cfg.HTTPClient,
		Interval: w.cfg.Interval,
		Progress: func(pct int, msg string) {
			w.setDownload(status.Downloading, pct, msg)
		},
		Cancel: w.cancel.Probe(),
		Logger: w.log,
	})

	switch {
	case errors.Is(err, download.ErrCancelled):
		w.log.Info("download cancelled")
		w.setDownload(status.DownloadCancelled, 0, "Cancelled")
		*final = registry.StatusCancelled
		return 0, false

	case err != nil:
		w.log.Error("download failed", "url", w.cfg.URL, "error", err)
		w.setDownload(status.DownloadFailed, 0, fmt.Sprintf("Download error: %v", err))
		*final = registry.StatusFailed
		return 0, false

	case size == 0:
		// An empty body is not a valid upload input.
		w.log.Error("downloaded file is empty", "url", w.cfg.URL)
		w.setDownload(status.DownloadFailed, 0, "Downloaded file is empty")
		*final = registry.StatusFailed
		return 0, false
	}

	w.setDownload(status.DownloadCompleted, 100, fmt.Sprintf("Complete: %s", progress.FormatBytes(size)))
	return size, true
}

// uploadAll runs the upload stage for every destination sequentially,
// continuing past individual failures, and returns the aggregate job status.
func (w *Worker) uploadAll(ctx context.Context, tempPath string, size int64) registry.Status {
	outcomes := make([]upload.Outcome, 0, len(w.cfg.Destinations))

	for _, name := range w.cfg.Destinations {
		report := func(cs status.CloudState) {
			if err := w.writer.SetCloud(name, cs); err != nil {
				w.log.Warn("writing cloud status failed", "destination", name, "error", err)
			}
		}

		dest, ok := w.cfg.Catalog.Get(name)
		if !ok {
			msg := fmt.Sprintf("Unknown destination %q", name)
			w.log.Error("destination not in catalog", "destination", name)
			report(status.CloudState{Stage: status.CloudFailed, Message: msg})
			outcomes = append(outcomes, upload.Outcome{Destination: name, State: upload.Failed, Message: msg})
			continue
		}

		outcomes = append(outcomes, w.cfg.Stage.Upload(ctx, dest, tempPath, w.cfg.Filename, size, report))
	}

	return aggregate(outcomes, w.log)
}

// aggregate folds per-destination outcomes into the job status: any failure
// fails the job; otherwise completions and deliberate skips both count as
// success.
func aggregate(outcomes []upload.Outcome, log *slog.Logger) registry.Status {
	sawTerminal := true
	for _, o := range outcomes {
		switch o.State {
		case upload.Failed:
			return registry.StatusFailed
		case upload.Completed, upload.Skipped:
		default:
			sawTerminal = false
		}
	}
	if !sawTerminal {
		log.Warn("indeterminate upload outcomes, reporting failure", "outcomes", len(outcomes))
		return registry.StatusFailed
	}
	return registry.StatusCompleted
}

func (w *Worker) setDownload(stage status.DownloadStage, pct int, msg string) {
	if err := w.writer.SetDownload(stage, pct, msg); err != nil {
		w.log.Warn("writing download status failed", "error", err)
	}
}
