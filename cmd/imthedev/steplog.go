package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// stepLog provides step-by-step progress output for CLI operations.
type stepLog struct {
	w     io.Writer
	isTTY bool
	mu    sync.Mutex
}

// newStepLog creates a step logger that writes to w.
// isTTY controls whether in-place status updates are used (true) or
// plain line output (false).
func newStepLog(w io.Writer, isTTY bool) *stepLog {
	return &stepLog{w: w, isTTY: isTTY}
}

// newStdoutStepLog detects whether stdout is a terminal.
func newStdoutStepLog() *stepLog {
	return newStepLog(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
}

// Step prints a completed step with a checkmark.
func (s *stepLog) Step(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s\n", msg)
}

// StepTimed prints a completed step with a checkmark and duration.
func (s *stepLog) StepTimed(msg string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s (%.1fs)\n", msg, d.Seconds())
}

// Busy prints an in-progress line. Returns a function that marks the
// step done. In TTY mode the line is rewritten in place; otherwise two
// lines are printed.
func (s *stepLog) Busy(msg string) func() {
	s.mu.Lock()
	if s.isTTY {
		fmt.Fprintf(s.w, "… %s", msg)
	} else {
		fmt.Fprintf(s.w, "%s\n", msg)
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.isTTY {
			fmt.Fprintf(s.w, "\r✓ %s\n", msg)
		} else {
			fmt.Fprintf(s.w, "✓ %s\n", msg)
		}
	}
}

// Warn prints a non-fatal problem.
func (s *stepLog) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "! %s\n", msg)
}
