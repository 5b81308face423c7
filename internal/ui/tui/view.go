package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/calcifer/internal/task"
)

// styleFunc is a single-string styling function.
type styleFunc func(string) string

// sf wraps a lipgloss.Style into a styleFunc.
func sf(s lipgloss.Style) styleFunc {
	return func(str string) string { return s.Render(str) }
}

func renderView(m Model) string {
	var b strings.Builder

	renderHeader(&b, m)
	renderProgressBar(&b, m)

	for _, g := range m.Groups {
		renderGroup(&b, m, g)
	}

	if m.Halted != "" {
		b.WriteString("\n")
		b.WriteString(failedStyle.Render("  " + failMark + " " + m.Halted))
		b.WriteString("\n")
	}

	renderFooter(&b, m)
	return b.String()
}

func renderHeader(b *strings.Builder, m Model) {
	title := fmt.Sprintf("calcifer: %s", m.Goal)
	if m.Target != "" {
		title += fmt.Sprintf(" (target %s)", m.Target)
	}
	b.WriteString(titleStyle.Render(title))

	status := " "
	switch {
	case m.Err != nil:
		status += failedStyle.Render("Halted")
	case m.Done:
		status += okStyle.Render("Completed")
	default:
		status += activeStyle.Render(currentSpinner(m.SpinnerFrame)) + " " + warningStyle.Render("Running")
	}
	b.WriteString(status)
	b.WriteString("\n")
}

func renderProgressBar(b *strings.Builder, m Model) {
	progress := m.progress()
	barWidth := 40
	if m.Width > 0 && m.Width < 80 {
		barWidth = max(m.Width-30, 10)
	}
	filled := min(int(float64(barWidth)*progress), barWidth)

	bar := progressBarFull.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(b, "  %s %d%%\n", bar, int(progress*100))
}

func renderGroup(b *strings.Builder, m Model, g groupRow) {
	header := "  " + g.Name
	if g.Skipped {
		b.WriteString(sectionStyle.Render(header))
		b.WriteString(" " + dimStyle.Render(skipMark+" "+g.Reason) + "\n")
		return
	}
	b.WriteString(sectionStyle.Render(header))
	b.WriteString("\n")

	if len(g.Tasks) == 0 {
		fmt.Fprintf(b, "    %s\n", dimStyle.Render(pendingMark+" waiting"))
		return
	}

	for _, t := range g.Tasks {
		icon, style := taskIcon(m, t)
		fmt.Fprintf(b, "    %s %s\n", style(icon), style(t.Name))
		for _, h := range t.Hosts {
			renderHost(b, m, h)
		}
	}
}

func renderHost(b *strings.Builder, m Model, h hostRow) {
	if h.Status == "" {
		fmt.Fprintf(b, "      %s %-18s\n", activeStyle.Render(currentSpinner(m.SpinnerFrame)), h.Host)
	} else {
		style := statusStyle(h.Status)
		fmt.Fprintf(b, "      %s %-18s %s\n", style.Render(Marker(h.Status)), h.Host, dimStyle.Render(h.Message))
	}

	if !m.Verbose {
		return
	}
	for _, s := range h.Steps {
		if s.OK {
			fmt.Fprintf(b, "          %s %s\n", okStyle.Render(stepOKMark), dimStyle.Render(s.Name))
		} else {
			fmt.Fprintf(b, "          %s %s\n", failedStyle.Render(stepBadMark+" "+s.Name+":"), dimStyle.Render(s.Message))
		}
	}
}

func renderFooter(b *strings.Builder, m Model) {
	elapsed := formatDuration(time.Since(m.StartTime))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  elapsed: %s  |  q: quit", elapsed)))
	b.WriteString("\n")
}

// Helper functions

var severity = map[task.Status]int{
	task.StatusSkipped: 1,
	task.StatusOK:      2,
	task.StatusChanged: 3,
	task.StatusWarning: 4,
	task.StatusFailed:  5,
}

func taskIcon(m Model, t taskRow) (string, styleFunc) {
	if t.Active {
		return currentSpinner(m.SpinnerFrame), sf(activeStyle)
	}
	worst := taskStatus(t)
	return Marker(worst), sf(statusStyle(worst))
}

// taskStatus is the most severe status among a task's hosts.
func taskStatus(t taskRow) (worst task.Status) {
	for _, h := range t.Hosts {
		if severity[h.Status] > severity[worst] {
			worst = h.Status
		}
	}
	return worst
}

func currentSpinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return spinnerFrames[frame%len(spinnerFrames)]
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
