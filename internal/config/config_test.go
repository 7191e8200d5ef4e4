package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"loopopt/internal/config"
	"loopopt/internal/pipeline"
	"loopopt/internal/trace"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := writeConfig(t, root, "")

	got, ok, err := config.Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("found %s, want %s", got, want)
	}
}

func TestDiscoverWithoutFile(t *testing.T) {
	// TempDir is normally outside any project, but a stray loopopt.toml
	// above it would change the answer.
	dir := t.TempDir()
	if _, ok, _ := config.Find(dir); ok {
		t.Skip("loopopt.toml found above the temporary directory")
	}
	cfg, err := config.Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !slices.Equal(cfg.Pipeline.Passes, pipeline.DefaultPasses) || cfg.Path != "" {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[pipeline]
passes = ["partition", "simplify"]
verify = 8
jobs = 2

[trace]
level = "detail"
output = "trace.ndjson"

[buffers]
f = 100
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(cfg.Pipeline.Passes, []string{"partition", "simplify"}) {
		t.Errorf("passes %v", cfg.Pipeline.Passes)
	}
	if cfg.Pipeline.Verify != 8 || cfg.Pipeline.Jobs != 2 || cfg.Pipeline.Seed != 1 {
		t.Errorf("pipeline %+v", cfg.Pipeline)
	}
	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatalf("TraceConfig: %v", err)
	}
	if tc.Level != trace.LevelDetail || tc.Mode != trace.ModeStream || tc.RingSize != trace.DefaultRingSize {
		t.Errorf("trace config %+v", tc)
	}

	opts := cfg.Options(map[string]int{"g": 4, "f": 50})
	if opts.Buffers["f"] != 50 || opts.Buffers["g"] != 4 || opts.Verify != 8 {
		t.Errorf("options %+v", opts)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[pipeline\n", "failed to parse TOML"},
		{"unknown key", "[pipeline]\nfuse = true\n", "unknown key"},
		{"unknown pass", "[pipeline]\npasses = [\"fuse\"]\n", `unknown pass "fuse"`},
		{"empty passes", "[pipeline]\npasses = []\n", "pipeline.passes is empty"},
		{"negative verify", "[pipeline]\nverify = -1\n", "pipeline.verify"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "invalid trace level"},
		{"bad mode", "[trace]\nmode = \"file\"\n", "invalid trace mode"},
		{"negative buffer", "[buffers]\nf = -3\n", "buffers: invalid entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error %v, want %q", err, tt.want)
			}
		})
	}

	path := writeConfig(t, t.TempDir(), "[trace]\nsize = 3\n")
	if _, err := config.Load(path); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("got %v, want ErrUnknownKey", err)
	}
}
