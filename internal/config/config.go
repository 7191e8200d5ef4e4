// Package config loads loopopt.toml, the optional per-project settings
// file. Command-line flags override anything set here.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"loopopt/internal/pipeline"
	"loopopt/internal/trace"
)

// FileName is the settings file looked up by Find.
const FileName = "loopopt.toml"

// ErrUnknownKey is returned for keys Load does not understand.
var ErrUnknownKey = errors.New("unknown key")

// Pipeline holds the [pipeline] section.
type Pipeline struct {
	Passes []string `toml:"passes"`
	Verify int      `toml:"verify"`
	Seed   uint64   `toml:"seed"`
	Jobs   int      `toml:"jobs"`
}

// Trace holds the [trace] section.
type Trace struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Format   string `toml:"format"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring_size"`
}

// Config is the decoded file. Buffers gives default buffer sizes for
// programs that do not carry their own.
type Config struct {
	Path     string         `toml:"-"`
	Pipeline Pipeline       `toml:"pipeline"`
	Trace    Trace          `toml:"trace"`
	Buffers  map[string]int `toml:"buffers"`
}

// Default returns the settings used when no file is found.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			Passes: append([]string(nil), pipeline.DefaultPasses...),
			Seed:   1,
		},
		Trace: Trace{
			Level:    "off",
			Mode:     "stream",
			Format:   "auto",
			Output:   "-",
			RingSize: trace.DefaultRingSize,
		},
	}
}

// Find walks up from startDir to locate loopopt.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path

	var errs []error
	for _, key := range meta.Undecoded() {
		errs = append(errs, fmt.Errorf("%w %q", ErrUnknownKey, key.String()))
	}
	if meta.IsDefined("pipeline", "passes") && len(cfg.Pipeline.Passes) == 0 {
		errs = append(errs, errors.New("pipeline.passes is empty"))
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest loopopt.toml above startDir, or returns the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges and names.
func (c Config) Validate() error {
	var errs []error
	if err := pipeline.ValidatePasses(c.Pipeline.Passes); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.Verify < 0 {
		errs = append(errs, fmt.Errorf("pipeline.verify must be non-negative, got %d", c.Pipeline.Verify))
	}
	if c.Pipeline.Jobs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.jobs must be non-negative, got %d", c.Pipeline.Jobs))
	}
	if _, err := c.TraceConfig(); err != nil {
		errs = append(errs, err)
	}
	for name, size := range c.Buffers {
		if strings.TrimSpace(name) == "" || size < 0 {
			errs = append(errs, fmt.Errorf("buffers: invalid entry %q = %d", name, size))
		}
	}
	return errors.Join(errs...)
}

// TraceConfig converts the [trace] section for trace.New.
func (c Config) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	if c.Trace.RingSize < 0 {
		return trace.Config{}, fmt.Errorf("trace.ring_size must be non-negative, got %d", c.Trace.RingSize)
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
	}, nil
}

// Options returns pipeline options for a program. File buffer sizes win
// over the configured defaults.
func (c Config) Options(buffers map[string]int) pipeline.Options {
	merged := make(map[string]int, len(c.Buffers)+len(buffers))
	maps.Copy(merged, c.Buffers)
	maps.Copy(merged, buffers)
	return pipeline.Options{
		Passes:  c.Pipeline.Passes,
		Verify:  c.Pipeline.Verify,
		Buffers: merged,
		Seed:    c.Pipeline.Seed,
		Jobs:    c.Pipeline.Jobs,
	}
}
