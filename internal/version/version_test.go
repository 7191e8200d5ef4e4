package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestString(t *testing.T) {
	defer func(v, c, d string, nc bool) {
		Version, GitCommit, BuildDate, color.NoColor = v, c, d, nc
	}(Version, GitCommit, BuildDate, color.NoColor)
	color.NoColor = true

	tests := []struct {
		version, commit, date string
		want                  string
	}{
		{"0.1.0-dev", "", "", "loopopt 0.1.0-dev"},
		{"1.2.3", "abc123", "", "loopopt 1.2.3 (abc123)"},
		{"1.2.3-rc.1", "abc123", "2026-01-15", "loopopt 1.2.3-rc.1 (abc123) built 2026-01-15"},
		{"nightly", "", "", "loopopt nightly"},
	}
	for _, tt := range tests {
		Version, GitCommit, BuildDate = tt.version, tt.commit, tt.date
		if got := String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
