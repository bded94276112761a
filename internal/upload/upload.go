// Package upload runs the per-destination upload stage: admission control
// against the destination's capacity ceiling, the transfer itself, and access
// URL generation. Each destination is processed independently; one
// destination's failure never touches its siblings.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/catalog"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/progress"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/status"
)

// State is a destination's final outcome class.
type State string

const (
	// Completed means the object landed and has an access URL.
	Completed State = "completed"

	// Skipped means the upload was deliberately not attempted (capacity
	// ceiling or empty file). Skips do not fail the job.
	Skipped State = "skipped"

	// Failed means the upload was attempted and did not succeed, or could
	// not be attempted due to a configuration error. Any failure fails the
	// job as a whole.
	Failed State = "failed"
)

// Outcome is the result of one destination's upload stage.
type Outcome struct {
	Destination string
	State       State
	Message     string
	URL         string
	URLKind     status.URLKind
}

// Store is the object-store surface the stage needs per destination.
// *objstore.Client implements it.
type Store interface {
	BucketSize(ctx context.Context) (int64, error)
	UploadFile(ctx context.Context, path, key string, onProgress func(int64)) error
	ObjectURL(ctx context.Context, key string) (url string, presigned bool, err error)
}

// StoreFactory builds a Store for a destination. Production wires
// objstore.New; tests substitute fakes.
type StoreFactory func(dest catalog.Destination) (Store, error)

// Report receives the destination's status section as the stage progresses.
type Report func(status.CloudState)

// Stage uploads one local file to destinations.
type Stage struct {
	newStore StoreFactory
	interval time.Duration
	log      *slog.Logger
}

// NewStage creates an upload stage. interval throttles progress reports; zero
// selects the default one second.
func NewStage(newStore StoreFactory, interval time.Duration, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{newStore: newStore, interval: interval, log: logger}
}

// Upload runs the stage for a single destination and returns its outcome.
// The returned Outcome is always well-formed; errors are folded into the
// Failed state rather than returned, since a destination failure is data, not
// a control-flow event.
func (s *Stage) Upload(
	ctx context.Context,
	dest catalog.Destination,
	localPath, key string,
	size int64,
	report Report,
) Outcome {
	log := s.log.With("destination", dest.Name, "bucket", dest.Bucket, "key", key)

	if report == nil {
		report = func(status.CloudState) {}
	}

	if !dest.HasCredentials() {
		msg := fmt.Sprintf("Configuration error: missing credentials for %s", dest.Name)
		log.Error("destination misconfigured, skipping upload")
		report(status.CloudState{Stage: status.CloudFailed, Message: msg})
		return Outcome{Destination: dest.Name, State: Failed, Message: msg}
	}

	if size == 0 {
		msg := "Skipped: file is empty"
		report(status.CloudState{Stage: status.CloudSkipped, Message: msg})
		return Outcome{Destination: dest.Name, State: Skipped, Message: msg}
	}

	store, err := s.newStore(dest)
	if err != nil {
		return s.fail(log, report, dest, fmt.Sprintf("Client error: %v", err))
	}

	if dest.CapacityLimit > 0 {
		report(status.CloudState{Stage: status.CloudChecking, Message: "Checking bucket capacity"})

		existing, err := store.BucketSize(ctx)
		if err != nil {
			return s.fail(log, report, dest, fmt.Sprintf("Capacity check error: %v", err))
		}
		if excess := existing + size - dest.CapacityLimit; excess > 0 {
			msg := fmt.Sprintf("Skipped: bucket limit %s would be exceeded by %s",
				progress.FormatBytes(dest.CapacityLimit),
				progress.FormatBytes(excess))
			log.Warn("capacity ceiling reached",
				"existing_bytes", existing,
				"file_bytes", size,
				"limit_bytes", dest.CapacityLimit)
			report(status.CloudState{Stage: status.CloudSkipped, Message: msg})
			return Outcome{Destination: dest.Name, State: Skipped, Message: msg}
		}
	}

	report(status.CloudState{Stage: status.CloudUploading, Message: "Starting upload"})

	acc := progress.NewAccumulator(size, s.interval, func(pct int, msg string) {
		report(status.CloudState{Stage: status.CloudUploading, Percentage: pct, Message: msg})
	})

	if err := store.UploadFile(ctx, localPath, key, acc.Add); err != nil {
		return s.fail(log, report, dest, fmt.Sprintf("Upload error: %v", err))
	}

	report(status.CloudState{Stage: status.CloudGeneratingURL, Percentage: 100, Message: "Generating access URL"})

	url, presigned, err := store.ObjectURL(ctx, key)
	if err != nil {
		return s.fail(log, report, dest, fmt.Sprintf("URL generation error: %v", err))
	}
	kind := status.URLPublic
	if presigned {
		kind = status.URLPresigned
	}

	msg := fmt.Sprintf("Complete: %s", progress.FormatBytes(size))
	report(status.CloudState{
		Stage:      status.CloudCompleted,
		Percentage: 100,
		Message:    msg,
		URL:        url,
		URLKind:    kind,
	})
	log.Info("upload completed", "size", size, "url_kind", kind)

	return Outcome{
		Destination: dest.Name,
		State:       Completed,
		Message:     msg,
		URL:         url,
		URLKind:     kind,
	}
}

func (s *Stage) fail(log *slog.Logger, report Report, dest catalog.Destination, msg string) Outcome {
	log.Error("upload stage failed", "message", msg)
	report(status.CloudState{Stage: status.CloudFailed, Message: msg})
	return Outcome{Destination: dest.Name, State: Failed, Message: msg}
}
