package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/calcifer/internal/registry"
)

// ErrHalted marks a run stopped before completing its goal.
var ErrHalted = errors.New("run halted")

// HaltError describes where a run stopped. Cause is set when the run was
// cancelled rather than stopped by failed hosts.
type HaltError struct {
	Goal  string
	Group string
	Task  string
	Hosts []string
	Cause error
}

func (e *HaltError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("goal %s halted before %s/%s: %v", e.Goal, e.Group, e.Task, e.Cause)
	}
	return fmt.Sprintf("goal %s halted at %s/%s: failed on %s",
		e.Goal, e.Group, e.Task, strings.Join(e.Hosts, ", "))
}

// Unwrap exposes ErrHalted and the cause, if any.
func (e *HaltError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrHalted, e.Cause}
	}
	return []error{ErrHalted}
}

// Exit codes of a run.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUnknownGoal = 2
)

// ExitCode maps the error returned by Run to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, registry.ErrUnknownGoal):
		return ExitUnknownGoal
	default:
		return ExitFailed
	}
}
