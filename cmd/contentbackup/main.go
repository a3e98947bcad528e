package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitAPIError         = 3
	ExitStorageError     = 5
	ExitValidationFailed = 7
	ExitExportFailed     = 8
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "backup":
		return runBackup(cmdArgs)
	case "validate":
		return runValidate(cmdArgs)
	case "delete":
		return runDelete(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: contentbackup <command> [options]

Commands:
  backup    Export all content, monitors and global objects to a directory or bucket
  validate  Verify that every artifact of a finished backup exists with the recorded size
  delete    Remove a finished backup and its report

Run 'contentbackup <command> -h' for command-specific help.`)
}

// newLogger builds the process logger. level is one of debug, info, warn,
// error.
func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
