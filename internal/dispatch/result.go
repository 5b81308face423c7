package dispatch

import (
	"fmt"
	"strings"
)

// Result is the normalized outcome of a command.
type Result struct {
	Succeeded bool
	// ExitCode is -1 when the process never produced one (transport error,
	// timeout, missing binary).
	ExitCode int
	Stdout   string
	Stderr   string
	// Output is stdout on success. On failure it also carries stderr, or the
	// reason the command could not run.
	Output string
}

// Failed is the negation of Succeeded.
func (r Result) Failed() bool { return !r.Succeeded }

// Trimmed returns stdout without surrounding whitespace.
func (r Result) Trimmed() string { return strings.TrimSpace(r.Stdout) }

// Tail returns at most the last n bytes of Output, which is usually where
// the useful part of a failing command's output is.
func (r Result) Tail(n int) string {
	out := strings.TrimSpace(r.Output)
	if len(out) <= n {
		return out
	}
	return "..." + out[len(out)-n:]
}

func completed(exitCode int, stdout, stderr string) Result {
	r := Result{
		Succeeded: exitCode == 0,
		ExitCode:  exitCode,
		Stdout:    stdout,
		Stderr:    stderr,
		Output:    stdout,
	}
	if !r.Succeeded && strings.TrimSpace(stderr) != "" {
		r.Output = strings.TrimRight(stdout, "\n") + "\nError: " + stderr
	}
	return r
}

func failure(format string, args ...any) Result {
	msg := fmt.Sprintf(format, args...)
	return Result{ExitCode: -1, Stderr: msg, Output: msg}
}
