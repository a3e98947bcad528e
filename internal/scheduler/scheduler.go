package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ligustah/contentbackup/internal/content"
	"github.com/ligustah/contentbackup/internal/progress"
)

// ErrNotFolder is recorded for roots that are not folders.
var ErrNotFolder = errors.New("scheduler: root is not a folder")

// Exporter exports one root and always returns its outcome.
type Exporter interface {
	Export(ctx context.Context, node content.Node, target string) *content.Outcome
}

// Options configures the scheduler.
type Options struct {
	// BatchSize is how many roots are exported in parallel. A batch must
	// finish completely before the next one starts.
	// Default: 10
	BatchSize int

	// LaunchDelay is a flat wait between two launches within a batch.
	// Zero launches the whole batch at once.
	LaunchDelay time.Duration

	// RunID identifies the run in the report. Default: a new UUID.
	RunID string

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	Logger *slog.Logger
}

// DefaultOptions returns the batch size and launch delay used by the CLI.
func DefaultOptions() Options {
	return Options{
		BatchSize:   10,
		LaunchDelay: time.Second,
	}
}

// Scheduler exports roots in fixed-size batches on a bounded worker pool.
type Scheduler struct {
	exp  Exporter
	opts Options
	log  *slog.Logger
}

// New creates a scheduler.
func New(exp Exporter, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.LaunchDelay < 0 {
		opts.LaunchDelay = 0
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		exp:  exp,
		opts: opts,
		log:  logger.With("component", "scheduler", "run_id", opts.RunID),
	}
}

type job struct {
	index int
	root  content.Node
}

type result struct {
	index int
	out   *content.Outcome
}

// Run exports every root and returns the aggregate report. Failures are
// collected, never returned: a failed root does not stop later batches.
// Outcomes in the report are in root order.
func (s *Scheduler) Run(ctx context.Context, roots []content.Node) *Report {
	report := NewReport(s.opts.RunID)
	report.Roots = len(roots)
	size := s.opts.BatchSize

	outcomes := make([]*content.Outcome, len(roots))
	jobs := make(chan job)
	// One slot per worker: a batch never has more results than workers, so
	// workers never block on send.
	results := make(chan result, size)

	var wg sync.WaitGroup
	for i := 0; i < min(size, len(roots)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- result{
					index: j.index,
					out:   s.exp.Export(ctx, j.root, content.RootPath(j.root)),
				}
			}
		}()
	}

	for start := 0; start < len(roots); start += size {
		batch := roots[start:min(start+size, len(roots))]
		report.Batches = append(report.Batches, len(batch))
		s.log.Info("starting batch", "batch", len(report.Batches), "roots", len(batch), "first", start+1)

		launched := 0
		for i, root := range batch {
			idx := start + i
			if !root.IsFolder() {
				outcomes[idx] = s.skip(root, fmt.Errorf("%w: %s", ErrNotFolder, root.Name))
				continue
			}
			if launched > 0 {
				if err := sleep(ctx, s.opts.LaunchDelay); err != nil {
					outcomes[idx] = s.skip(root, err)
					continue
				}
			} else if err := ctx.Err(); err != nil {
				outcomes[idx] = s.skip(root, err)
				continue
			}

			if s.opts.Progress != nil {
				s.opts.Progress.RootStarted()
			}
			s.log.Debug("launching root", "id", root.ID, "name", root.Name, "index", idx+1)
			jobs <- job{index: idx, root: root}
			launched++
		}

		// Barrier: the next batch starts only when every root of this one
		// has returned.
		for ; launched > 0; launched-- {
			r := <-results
			outcomes[r.index] = r.out
			s.finish(r.out)
		}
	}

	close(jobs)
	wg.Wait()

	for _, out := range outcomes {
		report.Add(out)
	}
	report.Duration = time.Since(report.StartedAt)

	s.log.Info("run finished",
		"roots", report.Roots,
		"nodes", report.Nodes,
		"failed", len(report.Failures),
		"duration", report.Duration.Round(time.Millisecond))
	return report
}

// skip records a root that was never handed to the exporter.
func (s *Scheduler) skip(root content.Node, err error) *content.Outcome {
	out := content.NewOutcome(root, content.RootPath(root))
	out.Fail(err)
	if s.opts.Progress != nil {
		s.opts.Progress.RootStarted()
		s.opts.Progress.NodeDone(out.Status, 0)
	}
	s.finish(out)
	return out
}

func (s *Scheduler) finish(out *content.Outcome) {
	if s.opts.Progress != nil {
		s.opts.Progress.RootFinished(out.Failed())
	}
	if !out.Failed() {
		s.log.Info("root exported",
			"id", out.NodeID, "name", out.Name, "status", out.Status,
			"nodes", out.Count(), "bytes", out.TotalBytes())
		return
	}
	attrs := []any{"id", out.NodeID, "name", out.Name, "status", out.Status, "error", out.Reason}
	if out.Cause != nil {
		attrs = append(attrs, "cause_id", out.Cause.ID, "cause_name", out.Cause.Name)
	}
	s.log.Warn("root failed", attrs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
