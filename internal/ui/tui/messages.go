// Package tui renders run progress: a line-oriented console observer and a
// Bubble Tea dashboard for --tui.
package tui

import "github.com/imamik/calcifer/internal/engine"

// EventMsg carries an engine event into the program.
type EventMsg struct{ Event engine.Event }

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// DoneMsg signals that the run returned.
type DoneMsg struct {
	Report *engine.Report
	Err    error
}
