package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/calcifer/internal/engine"
)

// RunFunc runs a goal, reporting progress to obs.
type RunFunc func(ctx context.Context, obs engine.Observer) (*engine.Report, error)

type runOutcome struct {
	report *engine.Report
	err    error
}

// Run drives run inside the dashboard. Quitting the dashboard cancels the
// run; Run still waits for it to return so that hosts are never left
// mid-command without the caller knowing.
func Run(ctx context.Context, m Model, run RunFunc) (*engine.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan runOutcome, 1)
	go func() {
		obs := engine.ObserverFunc(func(e engine.Event) {
			p.Send(EventMsg{Event: e})
		})
		report, err := run(ctx, obs)
		done <- runOutcome{report: report, err: err}
		p.Send(DoneMsg{Report: report, Err: err})
	}()

	_, uiErr := p.Run()
	cancel()
	out := <-done

	if uiErr != nil && out.err == nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return out.report, fmt.Errorf("TUI error: %w", uiErr)
	}
	return out.report, out.err
}
