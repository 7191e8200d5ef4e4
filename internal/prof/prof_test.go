package prof_test

import (
	"os"
	"path/filepath"
	"testing"

	"loopopt/internal/prof"
)

func TestSessionWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cfg := prof.Config{
		CPU:   filepath.Join(dir, "cpu.pprof"),
		Mem:   filepath.Join(dir, "mem.pprof"),
		Trace: filepath.Join(dir, "exec.trace"),
	}
	s, err := prof.Start(cfg)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, path := range []string{cfg.CPU, cfg.Mem, cfg.Trace} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("%s: %v", path, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", path)
		}
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSessionNoop(t *testing.T) {
	s, err := prof.Start(prof.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	var nilSession *prof.Session
	if err := nilSession.Stop(); err != nil {
		t.Errorf("nil Stop: %v", err)
	}
}

func TestStartReportsBadPath(t *testing.T) {
	_, err := prof.Start(prof.Config{CPU: filepath.Join(t.TempDir(), "missing", "cpu.pprof")})
	if err == nil {
		t.Fatal("Start succeeded with an unwritable path")
	}
}
