package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"loopopt/internal/demo"
	"loopopt/internal/irio"
	"loopopt/internal/observ"
	"loopopt/internal/testkit"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--color", "off"))
	err := rootCmd.Execute()
	finishCommand(rootCmd)
	if err != nil {
		t.Fatalf("loopopt %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestEmitThenOptimize(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	out := execute(t, "demo", "--emit", src)
	if got := strings.Count(out, "wrote"); got != len(demo.All()) {
		t.Fatalf("wrote %d files, want %d:\n%s", got, len(demo.All()), out)
	}

	files, err := filepath.Glob(filepath.Join(src, "*.lir"))
	if err != nil || len(files) != len(demo.All()) {
		t.Fatalf("emitted files %v, err %v", files, err)
	}
	out = execute(t, append([]string{"opt", "--verify", "2", "--jobs", "2", "-o", dst}, files...)...)
	if got := strings.Count(out, "ok "); got != len(files) {
		t.Errorf("%d programs optimized, want %d:\n%s", got, len(files), out)
	}

	f, err := irio.ReadFile(filepath.Join(dst, "window.lir"))
	if err != nil {
		t.Fatalf("reading optimized window: %v", err)
	}
	if n := len(testkit.Loops(f.Program)); n != 1 {
		t.Errorf("optimized window has %d loops, want 1:\n%s", n, f.Program)
	}
	if f.Buffers["f"] != 100 {
		t.Errorf("buffers %v not carried over", f.Buffers)
	}

	out = execute(t, "dump", filepath.Join(dst, "window.lir"))
	if !strings.Contains(out, "for (x, ") || !strings.Contains(out, "[100]") {
		t.Errorf("dump output:\n%s", out)
	}
}

func TestApplyColorMode(t *testing.T) {
	defer func(old bool) { color.NoColor = old }(color.NoColor)

	if err := applyColorMode("on"); err != nil || color.NoColor {
		t.Errorf("on: NoColor=%v err=%v", color.NoColor, err)
	}
	if err := applyColorMode("OFF"); err != nil || !color.NoColor {
		t.Errorf("off: NoColor=%v err=%v", color.NoColor, err)
	}
	if err := applyColorMode("sometimes"); err == nil {
		t.Errorf("invalid mode accepted")
	}
}

func TestFitName(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"window.lir", 20, "window.lir"},
		{"window.lir", 0, "window.lir"},
		{"a/very/long/path.lir", 10, "a/very/..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := fitName(tt.in, tt.width); got != tt.want {
			t.Errorf("fitName(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestPrintTimings(t *testing.T) {
	defer func(old bool) { color.NoColor = old }(color.NoColor)
	color.NoColor = true

	var buf bytes.Buffer
	printTimings(&buf, "window", observ.Report{
		TotalMS: 3,
		Phases: []observ.PhaseReport{
			{Name: "partition", DurationMS: 1, Note: "loops=3"},
			{Name: "simplify", DurationMS: 2},
		},
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "partition") || !strings.Contains(lines[1], "1.00 ms") || !strings.Contains(lines[1], "loops=3") {
		t.Errorf("phase line %q", lines[1])
	}
	if !strings.Contains(lines[3], "total") || !strings.Contains(lines[3], "3.00 ms") {
		t.Errorf("total line %q", lines[3])
	}
}
