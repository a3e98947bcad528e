package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ligustah/contentbackup/internal/store"
)

// runDelete removes a finished backup: every artifact listed in its
// report.json and the report itself. By default prompts for confirmation
// unless -force is specified.
func runDelete(args []string) int {
	return deleteBackup(args, os.Stdin)
}

func deleteBackup(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)

	dir := fs.String("dir", "", "Backup directory")
	bucket := fs.String("bucket", "", "Backup bucket URL")
	force := fs.Bool("force", false, "Skip confirmation prompt")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: contentbackup delete [options]

Remove a finished backup: every artifact listed in report.json, then the
report. Other objects in the bucket are left alone. Exactly one of -dir and
-bucket is required.

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
	target := *bucket
	if *dir != "" {
		target = *dir
	}

	if !*force {
		fmt.Printf("Delete backup %s? [y/N]: ", target)
		reader := bufio.NewReader(stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(os.Stderr, "Cancelled")
			return ExitSuccess
		}
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
	if *dir != "" {
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

	n, err := store.Delete(ctx, st.Bucket())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, store.ErrNoManifest) {
			return ExitValidationFailed
		}
		return ExitStorageError
	}

	fmt.Fprintf(os.Stderr, "[contentbackup] Deleted %d artifacts from %s\n", n, target)
	return ExitSuccess
}
