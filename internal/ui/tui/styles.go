package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/calcifer/internal/task"
)

var (
	// Colors
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	okStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	changedStyle = lipgloss.NewStyle().
			Foreground(colorBlue)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	activeStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	progressBarFull  = lipgloss.NewStyle().Foreground(colorGreen)
	progressBarEmpty = lipgloss.NewStyle().Foreground(colorDim)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			MarginTop(1)
)

const (
	okMark      = "[OK]"
	changedMark = "[CH]"
	warnMark    = "[??]"
	failMark    = "[!!]"
	skipMark    = "[--]"
	pendingMark = "[  ]"
	stepOKMark  = "✔"
	stepBadMark = "✖"
)

var spinnerFrames = []string{"[⠋ ]", "[⠙ ]", "[⠹ ]", "[⠸ ]", "[⠼ ]", "[⠴ ]", "[⠦ ]", "[⠧ ]", "[⠇ ]", "[⠏ ]"}

// Marker returns the status marker for s.
func Marker(s task.Status) string {
	switch s {
	case task.StatusOK:
		return okMark
	case task.StatusChanged:
		return changedMark
	case task.StatusWarning:
		return warnMark
	case task.StatusFailed:
		return failMark
	case task.StatusSkipped:
		return skipMark
	}
	return pendingMark
}

func statusStyle(s task.Status) lipgloss.Style {
	switch s {
	case task.StatusOK:
		return okStyle
	case task.StatusChanged:
		return changedStyle
	case task.StatusWarning:
		return warningStyle
	case task.StatusFailed:
		return failedStyle
	}
	return dimStyle
}
