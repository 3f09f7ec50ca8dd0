package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes follow grep: 0 when a line matched, 1 when none did and 2 on
// errors.
const (
	exitMatch   = 0
	exitNoMatch = 1
	exitTrouble = 2
)

// exitError carries a process exit code through cobra. An empty err means the
// reason was already reported.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var errNoMatch = &exitError{code: exitNoMatch}

func usageError(format string, args ...any) error {
	return &exitError{code: exitTrouble, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitMatch
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitTrouble
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()

	if err != nil && err.Error() != "" {
		fmt.Fprintf(os.Stderr, "hypergrep: %v\n", err)
	}
	os.Exit(exitCode(err))
}
