// Package progress provides the thread-safe byte accounting shared by the
// download and upload stages. An Accumulator turns raw byte deltas into
// throttled percentage/throughput snapshots so that progress reporting never
// outpaces the status channel's disk writes.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultInterval is the minimum time between two emitted snapshots.
// Throttling exists purely to bound disk I/O from progress reporting; it has
// no effect on transfer correctness.
const DefaultInterval = time.Second

// FlushFunc receives a throttled progress snapshot. The percentage is clamped
// to [0, 100]; the message carries transferred/total sizes and throughput in
// human-readable form.
type FlushFunc func(percentage int, message string)

// Accumulator is a thread-safe byte counter producing throttled snapshots.
// Add may be called from multiple goroutines (concurrent part uploads feed the
// same accumulator).
type Accumulator struct {
	total    int64
	interval time.Duration
	flush    FlushFunc

	mu          sync.Mutex
	transferred int64
	lastFlush   time.Time
	lastBytes   int64
	speed       string

	now func() time.Time
}

// NewAccumulator creates an accumulator for a transfer of total bytes.
// Snapshots are handed to flush at most once per interval; interval <= 0
// selects DefaultInterval.
func NewAccumulator(total int64, interval time.Duration, flush FlushFunc) *Accumulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	a := &Accumulator{
		total:    total,
		interval: interval,
		flush:    flush,
		now:      time.Now,
	}
	a.lastFlush = a.now()
	return a
}

// Add records n more transferred bytes. If more than the configured interval
// has elapsed since the last emission, it recomputes throughput over the
// elapsed window and flushes a snapshot.
func (a *Accumulator) Add(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.transferred += n

	now := a.now()
	elapsed := now.Sub(a.lastFlush)
	if elapsed < a.interval {
		return
	}

	bytesDiff := a.transferred - a.lastBytes
	speed := float64(bytesDiff) / elapsed.Seconds()
	a.speed = fmt.Sprintf("%s/s", FormatBytes(int64(speed)))
	a.lastFlush = now
	a.lastBytes = a.transferred

	if a.flush != nil {
		a.flush(a.percentageLocked(), a.messageLocked())
	}
}

// Transferred returns the byte count accumulated so far.
func (a *Accumulator) Transferred() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transferred
}

// Percentage returns the current clamped completion percentage.
func (a *Accumulator) Percentage() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.percentageLocked()
}

func (a *Accumulator) percentageLocked() int {
	return Percentage(a.transferred, a.total)
}

func (a *Accumulator) messageLocked() string {
	speed := a.speed
	if speed == "" {
		speed = "0 B/s"
	}
	return fmt.Sprintf("%s / %s (%s)", FormatBytes(a.transferred), FormatBytes(a.total), speed)
}

// Percentage computes transferred/total as a percentage clamped to [0, 100].
// An unknown total (<= 0) reports 0.
func Percentage(transferred, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(transferred * 100 / total)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
		tb = gb * 1024
	)

	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// ParseBytes parses a human-readable byte string (e.g. "19.5GB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1

	switch {
	case strings.HasSuffix(s, "TB"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "TB")
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	var value float64
	if _, err := fmt.Sscanf(s, "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}
