package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ligustah/contentbackup/internal/content"
	"github.com/ligustah/contentbackup/internal/progress"
	"github.com/ligustah/contentbackup/internal/sumo"
)

// Node-level failures. Bulk export errors are not in this list: they only
// trigger decomposition of folders, and are reported as-is for leaves.
var (
	ErrChildEnumeration = errors.New("exporter: cannot list folder children")
	ErrWrite            = errors.New("exporter: cannot write artifact")
	ErrDepthExceeded    = errors.New("exporter: maximum folder depth exceeded")
	ErrCycle            = errors.New("exporter: node already visited in this tree")
)

// API is the part of the content API the exporter needs.
type API interface {
	// ExportContent returns a node with all descendants inlined.
	ExportContent(ctx context.Context, id string) (sumo.Document, error)
	// Folder returns a folder with one level of children.
	Folder(ctx context.Context, id string) (content.Node, error)
}

// Sink receives exported documents.
type Sink interface {
	EnsureDir(ctx context.Context, path string) error
	Write(ctx context.Context, key string, data []byte) error
}

// Options configures the exporter.
type Options struct {
	// PaceDelay is a flat wait before every bulk export and every folder
	// listing. Zero disables pacing.
	PaceDelay time.Duration

	// MaxDepth bounds how many folder levels below the root may be
	// decomposed. Default: 64
	MaxDepth int

	// Exhaustive keeps exporting the remaining siblings after a child
	// fails. By default the first unrecovered failure stops the folder and
	// all of its ancestors.
	Exhaustive bool

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	Logger *slog.Logger
}

// DefaultOptions returns the pacing and depth used by the CLI.
func DefaultOptions() Options {
	return Options{
		PaceDelay: 500 * time.Millisecond,
		MaxDepth:  64,
	}
}

// Exporter exports one content tree at a time. It holds no per-tree state
// and may be shared by concurrent workers.
type Exporter struct {
	api  API
	sink Sink
	opts Options
	log  *slog.Logger
}

// New creates an exporter.
func New(api API, sink Sink, opts Options) *Exporter {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	if opts.PaceDelay < 0 {
		opts.PaceDelay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		api:  api,
		sink: sink,
		opts: opts,
		log:  logger.With("component", "exporter"),
	}
}

// frame is one folder being decomposed.
type frame struct {
	out      *content.Outcome
	depth    int
	children []content.Node
	next     int
	taken    map[string]bool
	failed   *content.Outcome
}

// Export exports node to target. It first asks for the whole subtree in one
// document; if that fails and node is a folder, the folder is decomposed and
// each child is exported on its own, descending further wherever a child
// folder's bulk export fails too.
//
// Export never returns an error: every failure is recorded in the outcome.
func (e *Exporter) Export(ctx context.Context, node content.Node, target string) *content.Outcome {
	root := content.NewOutcome(node, target)
	visited := map[string]bool{node.ID: true}

	if e.bulk(ctx, node, root) {
		return root
	}
	first := e.open(ctx, node, root, 0)
	if first == nil {
		return root
	}

	stack := []*frame{first}
	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if err := ctx.Err(); err != nil {
			top.out.Fail(err)
			e.done(top.out)
			failStack(stack[:len(stack)-1], top.out, e.done)
			return root
		}

		if top.next == len(top.children) {
			stack = stack[:len(stack)-1]
			if top.failed != nil {
				top.out.FailFrom(top.failed)
			} else {
				top.out.Status = content.StatusRecursed
			}
			e.done(top.out)
			if top.out.Failed() && len(stack) > 0 {
				parent := stack[len(stack)-1]
				if parent.failed == nil {
					parent.failed = top.out
				}
			}
			continue
		}

		child := top.children[top.next]
		top.next++
		co := top.out.AddChild(child, content.ChildPath(top.out.Path, child, top.taken))

		if visited[child.ID] {
			co.Fail(fmt.Errorf("%w: %s", ErrCycle, child.ID))
			e.done(co)
		} else {
			visited[child.ID] = true
			if !e.bulk(ctx, child, co) {
				if top.depth+1 > e.opts.MaxDepth {
					co.Fail(fmt.Errorf("%w: %d", ErrDepthExceeded, e.opts.MaxDepth))
					e.done(co)
				} else if f := e.open(ctx, child, co, top.depth+1); f != nil {
					stack = append(stack, f)
					continue
				}
			}
		}

		if !co.Failed() {
			continue
		}

		if !e.opts.Exhaustive {
			failStack(stack, co, e.done)
			return root
		}
		if top.failed == nil {
			top.failed = co
		}
	}

	return root
}

// bulk attempts a single-shot export of node. It returns true when the
// outcome is final: written, empty, or failed for a reason decomposition
// cannot fix. It returns false for a folder whose bulk export failed.
func (e *Exporter) bulk(ctx context.Context, node content.Node, out *content.Outcome) bool {
	e.pace(ctx)

	doc, err := e.api.ExportContent(ctx, node.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			out.Fail(ctxErr)
			e.done(out)
			return true
		}
		if !node.IsFolder() {
			out.Fail(err)
			e.done(out)
			return true
		}
		e.log.Info("bulk export failed, decomposing folder",
			"id", node.ID, "name", node.Name, "path", out.Path, "error", err)
		return false
	}

	if node.IsFolder() && doc.ChildCount() == 0 {
		out.Status = content.StatusEmpty
		e.done(out)
		return true
	}

	if err := e.sink.Write(ctx, content.ArtifactKey(out.Path), doc); err != nil {
		out.Fail(fmt.Errorf("%w: %w", ErrWrite, err))
		e.done(out)
		return true
	}
	out.Status = content.StatusBulk
	out.Bytes = int64(len(doc))
	e.done(out)
	return true
}

// open prepares a folder for decomposition: its directory and its list of
// children. It returns nil, with out failed, if either step fails.
func (e *Exporter) open(ctx context.Context, node content.Node, out *content.Outcome, depth int) *frame {
	if err := e.sink.EnsureDir(ctx, out.Path); err != nil {
		out.Fail(fmt.Errorf("%w: %w", ErrWrite, err))
		e.done(out)
		return nil
	}

	e.pace(ctx)
	listed, err := e.api.Folder(ctx, node.ID)
	if err != nil {
		out.Fail(fmt.Errorf("%w: %w", ErrChildEnumeration, err))
		e.done(out)
		return nil
	}

	return &frame{
		out:      out,
		depth:    depth,
		children: listed.Children,
		taken:    make(map[string]bool, len(listed.Children)),
	}
}

// failStack marks every open folder as failed by cause, innermost first.
func failStack(stack []*frame, cause *content.Outcome, done func(*content.Outcome)) {
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].out.FailFrom(cause)
		done(stack[i].out)
	}
}

func (e *Exporter) done(out *content.Outcome) {
	if out.Failed() {
		e.log.Warn("node export failed",
			"id", out.NodeID, "name", out.Name, "path", out.Path, "error", out.Reason)
	} else {
		e.log.Debug("node exported",
			"id", out.NodeID, "name", out.Name, "path", out.Path, "status", out.Status)
	}
	if e.opts.Progress != nil {
		e.opts.Progress.NodeDone(out.Status, out.Bytes)
	}
}

func (e *Exporter) pace(ctx context.Context) {
	if e.opts.PaceDelay <= 0 {
		return
	}
	t := time.NewTimer(e.opts.PaceDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
