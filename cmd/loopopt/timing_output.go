package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"loopopt/internal/observ"
)

// printTimings renders one timing table per program.
func printTimings(out io.Writer, title string, r observ.Report) {
	if out == nil || len(r.Phases) == 0 {
		return
	}
	width := runewidth.StringWidth("total")
	for _, p := range r.Phases {
		width = max(width, runewidth.StringWidth(p.Name))
	}

	label := lipgloss.NewStyle().Width(width + 2).PaddingLeft(2)
	num := lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
	note := lipgloss.NewStyle().PaddingLeft(2)
	total := lipgloss.NewStyle()
	if !color.NoColor {
		num = num.Foreground(lipgloss.Color("6"))
		note = note.Foreground(lipgloss.Color("8"))
		total = total.Bold(true)
	}

	var sb strings.Builder
	sb.WriteString(headingColor.Sprintf("timings: %s", title))
	sb.WriteByte('\n')
	for _, p := range r.Phases {
		sb.WriteString(label.Render(p.Name))
		sb.WriteString(num.Render(fmt.Sprintf("%.2f ms", p.DurationMS)))
		if p.Note != "" {
			sb.WriteString(note.Render(p.Note))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(total.Render(label.Render("total") + num.Render(fmt.Sprintf("%.2f ms", r.TotalMS))))
	sb.WriteByte('\n')
	fmt.Fprint(out, sb.String())
}

// fitName shortens s to at most width terminal cells.
func fitName(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// padName pads s with spaces to width terminal cells.
func padName(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// cellWidth returns the number of terminal cells s occupies.
func cellWidth(s string) int { return runewidth.StringWidth(s) }
