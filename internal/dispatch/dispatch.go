// Package dispatch scans the registry for pending jobs and spawns one worker
// process per job. Launches are fire-and-forget: the dispatcher marks a job
// processing as soon as the process starts and never waits on it; the job's
// real outcome flows back through the status channel.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
)

// Launch describes one worker invocation.
type Launch struct {
	JobID        string
	URL          string
	Filename     string
	Destinations []string
}

// Launcher starts a worker process for a job. Implementations must return
// once the process has started (or failed to); they never wait for exit.
type Launcher interface {
	Launch(ctx context.Context, l Launch) error
}

// ExecLauncher launches workers via os/exec, redirecting each worker's
// diagnostic output to per-job log files.
type ExecLauncher struct {
	// WorkerBin is the worker executable path.
	WorkerBin string

	// LogDir receives <job_id>.out.log and <job_id>.err.log files.
	LogDir string
}

// Launch starts the worker with positional arguments
// (job_id, url, filename, comma-joined destinations) and detaches.
func (e *ExecLauncher) Launch(ctx context.Context, l Launch) error {
	if err := os.MkdirAll(e.LogDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir %s: %w", e.LogDir, err)
	}

	stdout, err := os.Create(filepath.Join(e.LogDir, l.JobID+".out.log"))
	if err != nil {
		return fmt.Errorf("creating stdout log for %s: %w", l.JobID, err)
	}
	stderr, err := os.Create(filepath.Join(e.LogDir, l.JobID+".err.log"))
	if err != nil {
		stdout.Close()
		return fmt.Errorf("creating stderr log for %s: %w", l.JobID, err)
	}

	cmd := exec.CommandContext(ctx, e.WorkerBin,
		l.JobID, l.URL, l.Filename, strings.Join(l.Destinations, ","))
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("starting worker for %s: %w", l.JobID, err)
	}

	// Reap the process and close the log files once it exits; the outcome
	// itself is read from the status document, not the exit code.
	go func() {
		_ = cmd.Wait()
		stdout.Close()
		stderr.Close()
	}()

	return nil
}

// Report summarizes one dispatch round.
type Report struct {
	// Launched lists job IDs whose workers started.
	Launched []string

	// Failures maps job IDs to their launch errors. Failed jobs keep their
	// pending status and are retried on the next round.
	Failures map[string]error
}

// Dispatcher launches workers for pending registry jobs.
type Dispatcher struct {
	store    *registry.Store
	launcher Launcher
	log      *slog.Logger
}

// New creates a dispatcher over the given registry store and launcher.
func New(store *registry.Store, launcher Launcher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, launcher: launcher, log: logger}
}

// DispatchPending launches a worker for every pending job. One job's launch
// failure never aborts the rest; it is recorded in the report and the job
// stays pending. Successfully launched jobs are optimistically marked
// processing in a single registry save.
func (d *Dispatcher) DispatchPending(ctx context.Context) (Report, error) {
	jobs, err := d.store.Load()
	if err != nil {
		return Report{}, fmt.Errorf("loading registry: %w", err)
	}

	report := Report{Failures: make(map[string]error)}
	changed := false

	for i := range jobs {
		if jobs[i].Status != registry.StatusPending {
			continue
		}

		launch := Launch{
			JobID:        jobs[i].ID,
			URL:          jobs[i].URL,
			Filename:     jobs[i].Filename,
			Destinations: jobs[i].Destinations,
		}
		if err := d.launcher.Launch(ctx, launch); err != nil {
			d.log.Error("worker launch failed", "job_id", jobs[i].ID, "error", err)
			report.Failures[jobs[i].ID] = err
			continue
		}

		d.log.Info("worker launched", "job_id", jobs[i].ID, "destinations", jobs[i].Destinations)
		jobs[i].Status = registry.StatusProcessing
		report.Launched = append(report.Launched, jobs[i].ID)
		changed = true
	}

	if changed {
		if err := d.store.Save(jobs); err != nil {
			return report, fmt.Errorf("saving registry: %w", err)
		}
	}
	return report, nil
}
