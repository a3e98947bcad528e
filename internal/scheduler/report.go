package scheduler

import (
	"encoding/json"
	"time"

	"github.com/ligustah/contentbackup/internal/content"
)

// Failure is one node whose export could not be completed. Root is the
// top-level folder it was exported under.
type Failure struct {
	Root  content.NodeRef `json:"root"`
	Node  content.NodeRef `json:"node"`
	Path  string          `json:"path"`
	Error string          `json:"error"`
}

// Report aggregates the outcomes of a run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	// Roots is the number of roots scheduled; Batches holds the size of
	// every batch in launch order.
	Roots   int
	Batches []int

	// Nodes is the number of nodes visited across all roots.
	Nodes  int
	Bytes  int64
	Counts map[content.Status]int

	Failures []Failure
	Outcomes []*content.Outcome
}

// NewReport returns an empty report for the run.
func NewReport(runID string) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		Counts:    map[content.Status]int{},
	}
}

// Failed reports whether any node failed.
func (r *Report) Failed() bool {
	return r.Counts[content.StatusFailed] > 0
}

// Add records the outcome of one root and all of its descendants.
func (r *Report) Add(out *content.Outcome) {
	r.Outcomes = append(r.Outcomes, out)
	root := out.Ref()
	out.Walk(func(o *content.Outcome) {
		r.Nodes++
		r.Bytes += o.Bytes
		r.Counts[o.Status]++
		// Only the node a failure originated at is listed; its failed
		// ancestors point back to it through Cause.
		if o.Originated() {
			r.Failures = append(r.Failures, Failure{
				Root:  root,
				Node:  o.Ref(),
				Path:  o.Path,
				Error: o.Reason,
			})
		}
	})
}

// Merge combines reports of consecutive runs into one. The run ID and start
// time come from the first report; the duration spans all of them.
func Merge(reports ...*Report) *Report {
	var out *Report
	var end time.Time
	for _, r := range reports {
		if r == nil {
			continue
		}
		if out == nil {
			out = NewReport(r.RunID)
			out.StartedAt = r.StartedAt
		}
		if r.StartedAt.Before(out.StartedAt) {
			out.StartedAt = r.StartedAt
		}
		if e := r.StartedAt.Add(r.Duration); e.After(end) {
			end = e
		}
		out.Roots += r.Roots
		out.Batches = append(out.Batches, r.Batches...)
		out.Nodes += r.Nodes
		out.Bytes += r.Bytes
		for s, n := range r.Counts {
			out.Counts[s] += n
		}
		out.Failures = append(out.Failures, r.Failures...)
		out.Outcomes = append(out.Outcomes, r.Outcomes...)
	}
	if out == nil {
		return NewReport("")
	}
	out.Duration = end.Sub(out.StartedAt)
	return out
}

type jsonReport struct {
	RunID     string                 `json:"run_id"`
	StartedAt time.Time              `json:"started_at"`
	Duration  string                 `json:"duration"`
	Roots     int                    `json:"roots"`
	Batches   []int                  `json:"batches"`
	Nodes     int                    `json:"nodes"`
	Bytes     int64                  `json:"bytes"`
	Counts    map[content.Status]int `json:"counts"`
	Failures  []Failure              `json:"failures"`
	Outcomes  []*content.Outcome     `json:"outcomes"`
}

// MarshalJSON writes the duration in human-readable form.
func (r *Report) MarshalJSON() ([]byte, error) {
	failures := r.Failures
	if failures == nil {
		failures = []Failure{}
	}
	return json.Marshal(jsonReport{
		RunID:     r.RunID,
		StartedAt: r.StartedAt.UTC(),
		Duration:  r.Duration.Round(time.Millisecond).String(),
		Roots:     r.Roots,
		Batches:   r.Batches,
		Nodes:     r.Nodes,
		Bytes:     r.Bytes,
		Counts:    r.Counts,
		Failures:  failures,
		Outcomes:  r.Outcomes,
	})
}
