// Package engine invokes the container engine CLI as a subprocess.
package engine

import (
	"context"
	"strings"
)

// Request describes one synchronous engine invocation.
type Request struct {
	// Args follow the engine binary, e.g. ["inspect", "<id>"].
	Args []string
	// MergeOutput captures stdout and stderr into Result.Stdout in arrival order.
	MergeOutput bool
}

// Result is the immutable outcome of one invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited with code zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// TrimmedStdout returns stdout without surrounding whitespace.
func (r Result) TrimmedStdout() string {
	return strings.TrimSpace(r.Stdout)
}

// Invoker runs the engine binary and captures its output.
// A non-zero exit is reported through Result, not as an error; the error
// return is reserved for commands that could not be run at all.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
	// Name is the engine binary, used in error messages.
	Name() string
}
