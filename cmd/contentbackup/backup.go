package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/contentbackup/internal/backup"
	"github.com/ligustah/contentbackup/internal/config"
	"github.com/ligustah/contentbackup/internal/exporter"
	"github.com/ligustah/contentbackup/internal/progress"
	"github.com/ligustah/contentbackup/internal/scheduler"
	"github.com/ligustah/contentbackup/internal/store"
	"github.com/ligustah/contentbackup/internal/sumo"
)

// runBackup exports the whole content library, monitors and global objects
// and writes a report. Export failures of single nodes do not stop the run
// but make it exit with ExitExportFailed.
func runBackup(args []string) int {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)

	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env-file", "", "Load environment from this file (default: ./.env if present)")
	endpoint := fs.String("endpoint", "", "API endpoint (default: $SUMO_ENDPOINT or "+config.DefaultEndpoint+")")
	accessID := fs.String("access-id", "", "Access ID (default: $SUMO_ACCESS_ID)")
	accessKey := fs.String("access-key", "", "Access key (default: $SUMO_ACCESS_KEY)")
	admin := fs.Bool("admin", true, "Export in admin mode (content of all users)")
	output := fs.String("output", "", "Output directory (default: ./backupContent_<timestamp>)")
	bucket := fs.String("bucket", "", "Bucket URL instead of a directory (s3://, gs://, file://)")
	batchSize := fs.Int("batch-size", 10, "Number of user folders exported in parallel")
	launchDelay := fs.Duration("launch-delay", time.Second, "Delay between starting two exports in a batch")
	paceDelay := fs.Duration("pace-delay", 500*time.Millisecond, "Delay before every export and folder listing")
	pollInterval := fs.Duration("poll-interval", time.Second, "Export job status poll interval")
	timeout := fs.Duration("timeout", 60*time.Second, "Timeout for a single API request")
	maxDepth := fs.Int("max-depth", 64, "Maximum folder depth to decompose")
	exhaustive := fs.Bool("exhaustive", false, "Keep exporting siblings after a failure")
	objects := fs.String("objects", "", "Comma-separated global object sets to save (default: all)")
	filter := fs.String("filter", "", "Only export user folders whose name starts with this prefix")
	showProgress := fs.Bool("progress", false, "Show progress output")
	retryAttempts := fs.Int("retry-attempts", 3, "Retries for rate-limited (429) requests, including leaf exports; other errors are never retried")
	retryDelay := fs.Duration("retry-delay", 5*time.Second, "Delay between retries")
	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := fs.Bool("log-json", false, "Log as JSON")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: contentbackup backup [options]

Export every user folder, the admin recommended folder, monitors and global
objects. Folders too large for a single export are split into their children.

Credentials are read from SUMO_ACCESS_ID and SUMO_ACCESS_KEY.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	override := config.Config{
		Endpoint:   *endpoint,
		AccessID:   *accessID,
		AccessKey:  *accessKey,
		Output:     *output,
		Bucket:     *bucket,
		Exhaustive: *exhaustive,
		NameFilter: *filter,
		Progress:   *showProgress,
	}
	if *objects != "" {
		for _, kind := range strings.Split(*objects, ",") {
			if kind = strings.TrimSpace(kind); kind != "" {
				override.ObjectKinds = append(override.ObjectKinds, kind)
			}
		}
	}
	cfg = cfg.Merge(override)

	// Flags with defaults only override the file and environment when set.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "admin":
			cfg.AdminMode = *admin
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "launch-delay":
			cfg.LaunchDelay = *launchDelay
		case "pace-delay":
			cfg.PaceDelay = *paceDelay
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "timeout":
			cfg.Timeout = *timeout
		case "max-depth":
			cfg.MaxDepth = *maxDepth
		case "retry-attempts":
			cfg.Retry.Attempts = *retryAttempts
		case "retry-delay":
			cfg.Retry.Delay = *retryDelay
		}
	})

	if cfg.Output == "" && cfg.Bucket == "" {
		cfg.Output = config.DefaultOutputDir(time.Now())
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	logger, err := newLogger(os.Stderr, *logLevel, *logJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[contentbackup] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	target := cfg.Output
	var st *store.Store
	if cfg.Bucket != "" {
		target = cfg.Bucket
		st, err = store.Open(ctx, cfg.Bucket)
	} else {
		st, err = store.OpenDir(cfg.Output)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return ExitStorageError
	}
	defer st.Close()

	client := sumo.NewClient(sumo.Options{
		Endpoint:      cfg.Endpoint,
		AccessID:      cfg.AccessID,
		AccessKey:     cfg.AccessKey,
		AdminMode:     cfg.AdminMode,
		Timeout:       cfg.Timeout,
		RetryAttempts: cfg.Retry.Attempts,
		RetryDelay:    cfg.Retry.Delay,
		PollInterval:  cfg.PollInterval,
		Logger:        logger,
	})

	var reporter *progress.Reporter
	if cfg.Progress {
		reporter = progress.NewReporter(progress.Options{
			BatchSize:      cfg.BatchSize,
			UpdateInterval: 5 * time.Second,
			Source:         cfg.Endpoint,
		})
		reporter.Start()
		defer reporter.Stop()
	}

	fmt.Fprintf(os.Stderr, "[contentbackup] Backing up %s to %s\n", cfg.Endpoint, target)

	report, err := backup.Run(ctx, client, st, backup.Options{
		Exporter: exporter.Options{
			PaceDelay:  cfg.PaceDelay,
			MaxDepth:   cfg.MaxDepth,
			Exhaustive: cfg.Exhaustive,
		},
		Scheduler: scheduler.Options{
			BatchSize:   cfg.BatchSize,
			LaunchDelay: cfg.LaunchDelay,
		},
		ObjectKinds: cfg.ObjectKinds,
		NameFilter:  cfg.NameFilter,
		Progress:    reporter,
		Logger:      logger,
	})
	if reporter != nil {
		reporter.Stop()
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			fmt.Fprintln(os.Stderr, "[contentbackup] Backup interrupted")
			return ExitGeneralError
		case errors.Is(err, backup.ErrStorage):
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitStorageError
		default:
			fmt.Fprintf(os.Stderr, "Error accessing API: %v\n", err)
			return ExitAPIError
		}
	}

	fmt.Fprintf(os.Stderr, "[contentbackup] Backup complete: %s\n", target)
	fmt.Fprintf(os.Stderr, "[contentbackup] Run %s | Roots: %d | Nodes: %d | Written: %s | Duration: %s\n",
		report.RunID,
		report.Roots,
		report.Nodes,
		progress.FormatBytes(report.Bytes),
		progress.FormatDuration(report.Duration),
	)

	if report.Failed() {
		fmt.Fprintf(os.Stderr, "[contentbackup] Failed backups: %d\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "  - %s %s (at %s %s): %s\n", f.Root.ID, f.Root.Name, f.Node.ID, f.Path, f.Error)
		}
		return ExitExportFailed
	}
	return ExitSuccess
}
