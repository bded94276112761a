// Package download implements the streaming fetch of a job's source URL to
// local storage. The response body is streamed in bounded chunks; progress
// and the cancel probe share a single one-second timer so a multi-minute
// download stays responsive to cancellation without paying a per-chunk stat.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/progress"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// ErrCancelled reports that a download stopped because the cancel probe
// fired. It is deliberately distinct from transport errors so callers never
// misreport a cancellation as a failure.
var ErrCancelled = errors.New("download cancelled")

// chunkSize bounds each read so the body is never buffered whole in memory.
const chunkSize = 32 * 1024

// Options configures a download.
type Options struct {
	// Client is the HTTP client to use. Nil selects a default with dial and
	// response-header timeouts but no overall deadline, since large bodies
	// legitimately take minutes.
	Client *http.Client

	// Interval is the cadence for both progress emission and the cancel
	// probe. Zero selects one second.
	Interval time.Duration

	// Progress receives throttled snapshots.
	Progress progress.FlushFunc

	// Cancel is polled on the progress cadence; returning true stops the
	// download and removes the partial file.
	Cancel func() bool

	// Logger receives diagnostics. Nil selects slog.Default.
	Logger *slog.Logger
}

// DefaultClient returns the transport used when Options.Client is nil.
func DefaultClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Download streams url to path on the given filesystem and returns the byte
// count written.
//
// Cancellation via Options.Cancel returns ErrCancelled with the partial file
// already removed. Every other failure is a transport or storage error and is
// fatal for the job; no retry is attempted here.
func Download(ctx context.Context, url, path string, filesystem vfs.Filesystem, opts Options) (int64, error) {
	client := opts.Client
	if client == nil {
		client = DefaultClient()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = progress.DefaultInterval
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	total := resp.ContentLength
	log.Debug("download started", "url", url, "content_length", total)

	out, err := filesystem.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}

	var (
		written   int64
		lastTick  = time.Now()
		lastBytes int64
		buf       = make([]byte, chunkSize)
	)

	discard := func() {
		out.Close()
		if rmErr := filesystem.Remove(path); rmErr != nil {
			log.Warn("removing partial download failed", "path", path, "error", rmErr)
		}
	}

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return written, fmt.Errorf("writing %s: %w", path, writeErr)
			}
			written += int64(n)
		}

		// One timer serves both concerns: the cancel probe and the
		// progress snapshot fire together, at most once per interval.
		if elapsed := time.Since(lastTick); elapsed >= interval {
			if opts.Cancel != nil && opts.Cancel() {
				discard()
				return 0, ErrCancelled
			}
			if opts.Progress != nil {
				speed := float64(written-lastBytes) / elapsed.Seconds()
				msg := fmt.Sprintf("%s / %s (%s/s)",
					progress.FormatBytes(written),
					progress.FormatBytes(total),
					progress.FormatBytes(int64(speed)))
				opts.Progress(progress.Percentage(written, total), msg)
			}
			lastTick = time.Now()
			lastBytes = written
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			out.Close()
			return written, fmt.Errorf("reading body of %s: %w", url, readErr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("closing %s: %w", path, err)
	}

	// A cancellation that raced the final chunk is the caller's to observe:
	// the worker re-checks its sentinel between download and upload.
	log.Debug("download finished", "url", url, "bytes", written)
	return written, nil
}
