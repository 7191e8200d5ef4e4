package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loopopt/internal/config"
	"loopopt/internal/prof"
	"loopopt/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "loopopt",
	Short: "Loop partitioning and trimming for loop-nest IR",
	Long: `loopopt splits loops around their likely branches into prologue, steady
state and epilogue, removes iterations that provably do nothing, and checks
every rewrite against a reference interpreter.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupCommand,
}

// settings is the merged view of loopopt.toml and the command line,
// filled in by setupCommand.
var settings config.Config

func init() {
	rootCmd.AddCommand(optCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to loopopt.toml (default: search upward from the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("trace", "", "trace output file (- for stderr, *.ndjson for NDJSON)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	flags.Int("trace-ring-size", 0, "ring buffer capacity for --trace-mode ring|both")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")
	flags.String("cpuprofile", "", "write a CPU profile to this file")
	flags.String("memprofile", "", "write a heap profile to this file on exit")
	flags.String("exec-trace", "", "write a Go runtime execution trace to this file")
}

// main runs the root command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	err := rootCmd.Execute()
	finishCommand(rootCmd)
	if err != nil {
		os.Exit(1)
	}
}

// setupCommand loads the configuration and starts tracing before any
// subcommand runs.
func setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()

	colorMode, err := flags.GetString("color")
	if err != nil {
		return err
	}
	if err := applyColorMode(colorMode); err != nil {
		return err
	}

	configPath, err := flags.GetString("config")
	if err != nil {
		return err
	}
	if configPath != "" {
		settings, err = config.Load(configPath)
	} else {
		settings, err = config.Discover(".")
	}
	if err != nil {
		return err
	}

	cleanup, err := setupTracing(cmd, settings)
	if err != nil {
		return err
	}
	traceCleanup = cleanup

	var pcfg prof.Config
	for flag, dst := range map[string]*string{"cpuprofile": &pcfg.CPU, "memprofile": &pcfg.Mem, "exec-trace": &pcfg.Trace} {
		if *dst, err = flags.GetString(flag); err != nil {
			return fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
	}
	profiles, err = prof.Start(pcfg)
	return err
}

var (
	// traceCleanup flushes the tracer.
	traceCleanup func()
	profiles     *prof.Session
)

// finishCommand flushes tracing and profiles. It runs after the command
// even when the command fails.
func finishCommand(cmd *cobra.Command) {
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if err := profiles.Stop(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", err)
	}
	profiles = nil
}
