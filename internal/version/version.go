// Package version holds build information for the loopopt CLI. The
// variables are set with -ldflags "-X loopopt/internal/version.Version=...".
package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is the commit the binary was built from, if known.
	GitCommit = ""

	// BuildDate is the build time in ISO-8601, if known.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored returns Version with its major, minor and patch parts
// colored. It is plain when color output is disabled.
func Colored() string {
	core, suffix, _ := strings.Cut(Version, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// String returns the one-line description printed by "loopopt version".
func String() string {
	s := "loopopt " + Colored()
	if GitCommit != "" {
		s += fmt.Sprintf(" (%s)", GitCommit)
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
