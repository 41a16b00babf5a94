package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/canvasinfo/canvasinfo/internal/application/command"
)

// consoleReporter prints user facing messages. Info and warnings go to
// stdout, errors to stderr.
type consoleReporter struct {
	mu       sync.Mutex
	stdout   io.Writer
	stderr   io.Writer
	quiet    bool
	errors   int
	progress bool
}

var _ command.Reporter = (*consoleReporter)(nil)

func newConsoleReporter(stdout, stderr io.Writer) *consoleReporter {
	return &consoleReporter{stdout: stdout, stderr: stderr}
}

func (r *consoleReporter) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}
	r.endProgress()
	fmt.Fprintln(r.stdout, msg)
}

func (r *consoleReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endProgress()
	fmt.Fprintf(r.stdout, "WARNING: %s\n", msg)
}

func (r *consoleReporter) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endProgress()
	r.errors++
	fmt.Fprintf(r.stderr, "ERROR: %s\n", msg)
}

// Progress redraws one line until the last group is loaded.
func (r *consoleReporter) Progress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}
	fmt.Fprintf(r.stdout, "\rLoading groups: %d/%d", current, total)
	r.progress = true
	if current >= total {
		r.endProgress()
	}
}

func (r *consoleReporter) endProgress() {
	if r.progress {
		fmt.Fprintln(r.stdout)
		r.progress = false
	}
}

// reported reports whether an error was already printed.
func (r *consoleReporter) reported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors > 0
}
