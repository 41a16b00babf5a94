// Package main is the entry point for the canvasinfo command line tool.
//
// canvasinfo reads the students and groups of a Canvas course and writes
// them as a students table (CSV, XLSX), a teammates sheet and a RepoBee
// team manifest (YAML).
//
// Usage:
//
//	canvasinfo verify --course-id 12345
//	canvasinfo info --course-id 12345 --yaml-file students
//	canvasinfo snapshot --course-id 12345
//	canvasinfo history
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
)

// Exit codes.
const (
	exitOK       = 0
	exitArgument = 1
	exitFailure  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return exitCode(err, a, root.Name(), stderr)
}

// usageError marks errors in the command line itself.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode prints err unless the reporter already did, and maps it to an
// exit code: 1 for invalid arguments or settings, 2 for anything else.
func exitCode(err error, a *app, prog string, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	if !a.reporter.reported() {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
	}

	var usage usageError
	if errors.As(err, &usage) || shared.IsConfig(err) {
		fmt.Fprintf(stderr, "Try '%s --help' for more information.\n", prog)
		return exitArgument
	}
	return exitFailure
}
