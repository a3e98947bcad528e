package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ligustah/contentbackup/internal/content"
)

// Options configures the progress reporter.
type Options struct {
	// TotalRoots is the number of top-level folders to export.
	TotalRoots int

	// BatchSize is the number of roots exported in parallel (for display).
	BatchSize int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 1s
	UpdateInterval time.Duration

	// Source is the API endpoint being exported (for display).
	Source string
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	rootsDone      atomic.Int32
	rootsFailed    atomic.Int32
	inProgress     atomic.Int32
	nodesBulk      atomic.Int64
	nodesRecursed  atomic.Int64
	nodesEmpty     atomic.Int64
	nodesFailed    atomic.Int64
	completedBytes atomic.Int64
	startTime      time.Time
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = time.Second
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.startTime = time.Now()
	r.started = true
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[contentbackup] Exporting: %s\n", r.opts.Source)
	// Roots are only known once the folders are listed; the progress line
	// shows them.
	fmt.Fprintf(r.opts.Output, "[contentbackup] Batch size: %d\n", r.opts.BatchSize)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It waits for the
// final line to be written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// AddRoots raises the number of roots to export.
func (r *Reporter) AddRoots(n int) {
	r.mu.Lock()
	r.opts.TotalRoots += n
	r.mu.Unlock()
}

// RootStarted marks a root as in progress.
func (r *Reporter) RootStarted() {
	r.inProgress.Add(1)
}

// RootFinished marks a root as done.
func (r *Reporter) RootFinished(failed bool) {
	r.rootsDone.Add(1)
	if failed {
		r.rootsFailed.Add(1)
	}
	r.inProgress.Add(-1)
}

// NodeDone records the outcome of one node.
func (r *Reporter) NodeDone(status content.Status, bytes int64) {
	switch status {
	case content.StatusBulk:
		r.nodesBulk.Add(1)
	case content.StatusRecursed:
		r.nodesRecursed.Add(1)
	case content.StatusEmpty:
		r.nodesEmpty.Add(1)
	case content.StatusFailed:
		r.nodesFailed.Add(1)
	}
	r.completedBytes.Add(bytes)
}

// Nodes returns the number of finished nodes.
func (r *Reporter) Nodes() int64 {
	return r.nodesBulk.Load() + r.nodesRecursed.Load() + r.nodesEmpty.Load() + r.nodesFailed.Load()
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	r.mu.Lock()
	total := r.opts.TotalRoots
	r.mu.Unlock()

	done := int(r.rootsDone.Load())
	var percent float64
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}

	fmt.Fprintf(r.opts.Output, "\r[contentbackup] Progress: %.1f%% | Roots: %d/%d | %d in-progress | %d failed | Nodes: %d | Written: %s | Elapsed: %s    ",
		percent,
		done,
		total,
		r.inProgress.Load(),
		r.rootsFailed.Load(),
		r.Nodes(),
		formatBytes(r.completedBytes.Load()),
		formatDuration(time.Since(r.startTime)),
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	fmt.Fprintf(r.opts.Output, "\r[contentbackup] Roots: %d done | %d failed                                        \n",
		r.rootsDone.Load(),
		r.rootsFailed.Load(),
	)
	fmt.Fprintf(r.opts.Output, "[contentbackup] Nodes: %d bulk | %d recursed | %d empty | %d failed\n",
		r.nodesBulk.Load(),
		r.nodesRecursed.Load(),
		r.nodesEmpty.Load(),
		r.nodesFailed.Load(),
	)
	fmt.Fprintf(r.opts.Output, "[contentbackup] Total time: %s | Written: %s\n",
		formatDuration(time.Since(r.startTime)),
		formatBytes(r.completedBytes.Load()),
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}
