package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	headingColor = color.New(color.Bold)
	okColor      = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// applyColorMode sets the global color switch from a --color value.
func applyColorMode(value string) error {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		color.NoColor = os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stdout)
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	return nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of stdout, or fallback when it is not a
// terminal.
func terminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}
