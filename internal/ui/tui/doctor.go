package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/imamik/calcifer/internal/util/prerequisites"
)

// RenderDoctor writes one line per checked tool.
func RenderDoctor(w io.Writer, results *prerequisites.CheckResults, color bool) {
	paint := func(s string, style func(...string) string) string {
		if !color {
			return s
		}
		return style(s)
	}

	fmt.Fprintln(w, paint("Local prerequisites", titleStyle.Render))
	for _, r := range results.Results {
		var mark, detail string
		var style func(...string) string
		switch {
		case r.Found:
			mark, style = okMark, okStyle.Render
			detail = r.Path
			if r.Version != "" {
				detail += "  " + r.Version
			}
		case r.Tool.Required:
			mark, style = failMark, failedStyle.Render
			detail = "missing, see " + r.Tool.InstallURL
		default:
			mark, style = warnMark, warningStyle.Render
			detail = "not installed (optional), see " + r.Tool.InstallURL
		}
		fmt.Fprintf(w, "  %s %-10s %s\n", paint(mark, style), r.Tool.Name, paint(detail, dimStyle.Render))
		if !r.Found && r.Tool.Description != "" {
			fmt.Fprintf(w, "       %s\n", paint(r.Tool.Description, dimStyle.Render))
		}
	}

	if err := results.Error(); err != nil {
		fmt.Fprintln(w, paint(strings.TrimSpace(err.Error()), failedStyle.Render))
	}
}
