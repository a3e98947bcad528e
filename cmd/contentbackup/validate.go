package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ligustah/contentbackup/internal/progress"
	"github.com/ligustah/contentbackup/internal/store"
)

// runValidate checks that a finished backup is complete: every artifact
// listed in report.json exists with the recorded size.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)

	dir := fs.String("dir", "", "Backup directory")
	bucket := fs.String("bucket", "", "Backup bucket URL")
	verify := fs.Bool("verify", false, "Also read every artifact and compare checksums")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: contentbackup validate [options]

Verify that every artifact of a finished backup exists with the size recorded
in report.json. Exactly one of -dir and -bucket is required.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if (*dir == "") == (*bucket == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -dir and -bucket is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		st  *store.Store
		err error
	)
	target := *bucket
	if *dir != "" {
		target = *dir
		if _, statErr := os.Stat(*dir); statErr != nil {
			fmt.Fprintf(os.Stderr, "Error opening backup: %v\n", statErr)
			return ExitStorageError
		}
		st, err = store.OpenDir(*dir)
	} else {
		st, err = store.Open(ctx, *bucket)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening backup: %v\n", err)
		return ExitStorageError
	}
	defer st.Close()

	result, err := store.Validate(ctx, st.Bucket(), *verify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, store.ErrNoManifest) {
			return ExitValidationFailed
		}
		return ExitStorageError
	}

	fmt.Printf("Backup: %s\n", target)
	fmt.Printf("Run: %s\n", result.RunID)
	fmt.Printf("Artifacts: %d\n", result.ArtifactCount)
	fmt.Printf("Total size: %s\n", progress.FormatBytes(result.TotalSize))

	if result.Valid {
		fmt.Println("Status: VALID")
		return ExitSuccess
	}

	fmt.Println("Status: INVALID")
	fmt.Printf("Missing artifacts: %d\n", result.Missing)
	fmt.Printf("Size mismatches: %d\n", result.SizeMismatches)
	if *verify {
		fmt.Printf("Checksum mismatches: %d\n", result.ChecksumMismatches)
	}

	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return ExitValidationFailed
}
