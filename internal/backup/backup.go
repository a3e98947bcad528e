package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ligustah/contentbackup/internal/content"
	"github.com/ligustah/contentbackup/internal/exporter"
	"github.com/ligustah/contentbackup/internal/progress"
	"github.com/ligustah/contentbackup/internal/scheduler"
	"github.com/ligustah/contentbackup/internal/sumo"
)

// ErrStorage wraps failures to write the run report.
var ErrStorage = errors.New("backup: storage error")

// DefaultObjectKinds are the global object sets saved next to the content.
var DefaultObjectKinds = []string{
	"connections",
	"extractionRules",
	"partitions",
	"scheduledViews",
	"users",
	"roles",
	"ingestBudgets",
}

// MonitorsKey is where the monitor tree is written.
const MonitorsKey = "monitors.json"

// Client is the part of the API a full backup uses.
type Client interface {
	exporter.API
	GlobalFolder(ctx context.Context) ([]content.Node, error)
	AdminRecommended(ctx context.Context) (content.Node, error)
	Objects(ctx context.Context, kind string) (sumo.Document, error)
	MonitorsRoot(ctx context.Context) (string, error)
	ExportMonitors(ctx context.Context, id string) (sumo.Document, error)
}

// Storage receives artifacts and the final report.
type Storage interface {
	exporter.Sink
	Finish(ctx context.Context, runID string, report any) error
}

// Options configures a full backup.
type Options struct {
	Exporter  exporter.Options
	Scheduler scheduler.Options

	// ObjectKinds lists the global object sets to save.
	// Default: DefaultObjectKinds
	ObjectKinds []string

	// NameFilter keeps only user folders whose name starts with it.
	NameFilter string

	Progress *progress.Reporter
	Logger   *slog.Logger
}

// Run performs a full backup: monitors, global object sets, the admin
// recommended folder and every user folder, then writes the report.
//
// Export failures are recorded in the report. An error is returned only when
// the run cannot proceed: the API rejects the credentials, the user folders
// cannot be listed, or the report cannot be written. When the run stops
// early, the partial report is still written so the artifacts saved so far
// can be validated and deleted. The report is returned alongside the error.
func Run(ctx context.Context, client Client, st Storage, opts Options) (*scheduler.Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ObjectKinds == nil {
		opts.ObjectKinds = DefaultObjectKinds
	}
	runID := opts.Scheduler.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.With("component", "backup", "run_id", runID)

	opts.Exporter.Logger = logger
	opts.Exporter.Progress = opts.Progress
	opts.Scheduler.Logger = logger
	opts.Scheduler.Progress = opts.Progress
	opts.Scheduler.RunID = runID

	exp := exporter.New(client, st, opts.Exporter)
	sched := scheduler.New(exp, opts.Scheduler)

	globals := scheduler.NewReport(runID)
	abort := func(report *scheduler.Report, err error) (*scheduler.Report, error) {
		if ferr := st.Finish(ctx, runID, report); ferr != nil {
			log.Error("cannot write partial report", "error", ferr)
		}
		return report, err
	}

	if err := saveMonitors(ctx, client, st, globals, log); err != nil {
		globals.Duration = time.Since(globals.StartedAt)
		return abort(globals, err)
	}
	for _, kind := range opts.ObjectKinds {
		if err := saveObjects(ctx, client, st, kind, globals, log); err != nil {
			globals.Duration = time.Since(globals.StartedAt)
			return abort(globals, err)
		}
	}
	globals.Duration = time.Since(globals.StartedAt)

	var admin *scheduler.Report
	arf, err := client.AdminRecommended(ctx)
	switch {
	case errors.Is(err, sumo.ErrUnauthorized):
		return abort(globals, err)
	case err != nil:
		log.Error("cannot get admin recommended folder", "error", err)
	case arf.ID == "":
		log.Info("no admin recommended folder")
	default:
		if opts.Progress != nil {
			opts.Progress.AddRoots(1)
		}
		admin = sched.Run(ctx, []content.Node{arf})
	}

	roots, err := client.GlobalFolder(ctx)
	if err != nil {
		return abort(scheduler.Merge(globals, admin), fmt.Errorf("list user folders: %w", err))
	}
	roots = filterRoots(roots, opts.NameFilter)
	log.Info("user folders found", "count", len(roots), "filter", opts.NameFilter)
	if opts.Progress != nil {
		opts.Progress.AddRoots(len(roots))
	}

	users := sched.Run(ctx, roots)
	report := scheduler.Merge(globals, admin, users)

	for _, f := range report.Failures {
		log.Error("failed backup",
			"root_id", f.Root.ID, "root_name", f.Root.Name,
			"id", f.Node.ID, "name", f.Node.Name, "path", f.Path, "error", f.Error)
	}
	log.Info("backup finished",
		"roots", report.Roots,
		"nodes", report.Nodes,
		"failed", len(report.Failures),
		"duration", report.Duration.Round(time.Millisecond))

	if err := st.Finish(ctx, runID, report); err != nil {
		return report, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return report, nil
}

// saveMonitors writes the monitor tree. Only an authorization failure is
// returned; anything else is recorded in the report.
func saveMonitors(ctx context.Context, client Client, st Storage, report *scheduler.Report, log *slog.Logger) error {
	out := content.NewOutcome(content.Node{ID: "monitors", Name: "monitors"}, "monitors")
	defer report.Add(out)

	id, err := client.MonitorsRoot(ctx)
	if err == nil {
		out.NodeID = id
		var doc sumo.Document
		doc, err = client.ExportMonitors(ctx, id)
		if err == nil {
			err = write(ctx, st, MonitorsKey, doc, out)
		}
	}
	if err != nil {
		out.Fail(err)
		log.Error("cannot save monitors", "error", err)
		if errors.Is(err, sumo.ErrUnauthorized) {
			return err
		}
		return nil
	}
	log.Info("saved monitors", "key", MonitorsKey, "bytes", out.Bytes)
	return nil
}

func saveObjects(ctx context.Context, client Client, st Storage, kind string, report *scheduler.Report, log *slog.Logger) error {
	out := content.NewOutcome(content.Node{ID: kind, Name: kind}, kind)
	defer report.Add(out)

	doc, err := client.Objects(ctx, kind)
	if err == nil {
		err = write(ctx, st, content.ArtifactKey(kind), doc, out)
	}
	if err != nil {
		out.Fail(err)
		log.Error("cannot save objects", "kind", kind, "error", err)
		if errors.Is(err, sumo.ErrUnauthorized) {
			return err
		}
		return nil
	}
	log.Info("saved objects", "kind", kind, "bytes", out.Bytes)
	return nil
}

func write(ctx context.Context, st Storage, key string, doc sumo.Document, out *content.Outcome) error {
	if err := st.Write(ctx, key, doc); err != nil {
		return fmt.Errorf("%w: %w", exporter.ErrWrite, err)
	}
	out.Status = content.StatusBulk
	out.Bytes = int64(len(doc))
	return nil
}

func filterRoots(roots []content.Node, prefix string) []content.Node {
	if prefix == "" {
		return roots
	}
	var out []content.Node
	for _, r := range roots {
		if strings.HasPrefix(r.Name, prefix) {
			out = append(out, r)
		}
	}
	return out
}
