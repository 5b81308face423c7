package tui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/calcifer/internal/engine"
	"github.com/imamik/calcifer/internal/task"
)

// Console renders engine events as lines. It is safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	color   bool

	// steps buffers sub-step lines per host until the host result is
	// printed, so concurrent hosts do not interleave.
	steps map[string][]string
}

// NewConsole returns a Console writing to w. Colour is enabled when w is a
// terminal.
func NewConsole(w io.Writer, verbose bool) *Console {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Console{w: w, verbose: verbose, color: color, steps: make(map[string][]string)}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) paint(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

// Event implements engine.Observer.
func (c *Console) Event(e engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case engine.EventGoalStarted:
		title := "Starting goal: " + e.Goal
		if target := e.Fields["target"]; target != "" {
			title += " (target " + target + ")"
		}
		c.println(c.paint(titleStyle, title))

	case engine.EventGroupStarted:
		c.println("")
		c.println(c.paint(sectionStyle.MarginTop(0), "▸ "+e.Group) + " " + c.paint(dimStyle, e.Message))

	case engine.EventGroupSkipped:
		if c.verbose {
			c.println(c.paint(dimStyle, fmt.Sprintf("%s %s: %s", skipMark, e.Group, e.Message)))
		}

	case engine.EventTaskStarted:
		c.println("  " + c.paint(activeStyle, e.Task))

	case engine.EventStep:
		if !c.verbose {
			return
		}
		var line string
		if e.Status == task.StatusFailed {
			line = c.paint(failedStyle, stepBadMark+" "+e.Step+":") + " " + c.paint(dimStyle, e.Message)
		} else {
			line = c.paint(okStyle, stepOKMark) + " " + c.paint(dimStyle, e.Step)
		}
		key := e.Task + "@" + e.Host
		c.steps[key] = append(c.steps[key], line)

	case engine.EventHostResult:
		msg := e.Message
		if msg == "" {
			msg = strings.ToLower(string(e.Status))
		}
		c.println(fmt.Sprintf("    %s %s: %s",
			c.paint(statusStyle(e.Status), Marker(e.Status)), e.Host, msg))

		key := e.Task + "@" + e.Host
		for _, line := range c.steps[key] {
			c.println("        " + line)
		}
		delete(c.steps, key)

	case engine.EventRunHalted:
		c.println("")
		c.println(c.paint(failedStyle, failMark+" "+e.Message))

	case engine.EventGoalCompleted:
		c.println("")
		c.println(c.paint(okStyle, fmt.Sprintf("Goal %s completed in %s", e.Goal, formatDuration(e.Duration))))
	}
}

// Summary prints per-status counts and the hosts that failed.
func (c *Console) Summary(r *engine.Report) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.println("")
	c.println(c.paint(titleStyle, "Execution summary"))
	c.println(strings.Repeat("─", 30))

	counts := r.Counts()
	var parts []string
	for _, s := range task.Statuses {
		if n := counts[s]; n > 0 {
			parts = append(parts, c.paint(statusStyle(s), fmt.Sprintf("%s %d", Marker(s), n)))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, c.paint(dimStyle, "nothing ran"))
	}
	c.println(strings.Join(parts, "  "))

	hosts := map[string]bool{}
	for _, d := range r.Dispatches {
		for _, hr := range d.Results {
			hosts[hr.Host] = hosts[hr.Host] || hr.Failed
		}
	}
	var ok, failed []string
	for h, f := range hosts {
		if f {
			failed = append(failed, h)
		} else {
			ok = append(ok, h)
		}
	}
	sort.Strings(ok)
	sort.Strings(failed)

	if len(ok) > 0 {
		c.println(c.paint(okStyle, fmt.Sprintf("Success (%d): %s", len(ok), strings.Join(ok, ", "))))
	}
	if len(failed) > 0 {
		c.println(c.paint(failedStyle, fmt.Sprintf("Failed (%d): %s", len(failed), strings.Join(failed, ", "))))
	}
	c.println(c.paint(dimStyle, "Duration: "+formatDuration(r.Duration().Round(time.Second))))
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.w, s)
}
