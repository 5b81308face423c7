// Package handlers implements the business logic for CLI commands.
//
// Handlers are called by the cobra definitions in the commands package and
// never touch cobra themselves, so they can be tested directly.
package handlers

import "errors"

// Options carries the persistent flags shared by every goal command.
type Options struct {
	ConfigPath    string
	InventoryPath string
	// Target limits every group to the host with exactly this name.
	Target string
	// Quiet hides sub-step results.
	Quiet bool
	// Verbose raises the file log to debug.
	Verbose        bool
	AskBecomePass  bool
	LogFile        string
	MetricsFile    string
	MaxParallel    int
	TUI            bool
	HCloudSelector string
}

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a handler to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}
