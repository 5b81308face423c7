package handlers

import (
	"github.com/imamik/calcifer/internal/ui/tui"
)

// Doctor checks the tools calcifer shells out to on the control machine.
// Missing required tools fail the command; optional ones only warn.
func Doctor() error {
	results := checkPrereqs()
	tui.RenderDoctor(stdout, results, isTerminal())
	if err := results.Error(); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}
