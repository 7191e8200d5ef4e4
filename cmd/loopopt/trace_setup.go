package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"loopopt/internal/config"
	"loopopt/internal/trace"
)

// activeTracer is the tracer installed by setupTracing, kept for
// dumpTraceOnPanic.
var activeTracer trace.Tracer = trace.Nop

// setupTracing merges the trace flags over the [trace] section of cfg and
// installs the tracer in the command context. It returns a cleanup
// function that stops heartbeats and flushes the tracer.
func setupTracing(cmd *cobra.Command, cfg config.Config) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	if flags.Changed("trace") {
		out, err := flags.GetString("trace")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace flag: %w", err)
		}
		cfg.Trace.Output = out
		// Asking for output without a level means phase tracing.
		if cfg.Trace.Level == "off" && !flags.Changed("trace-level") {
			cfg.Trace.Level = trace.LevelPhase.String()
		}
	}
	if flags.Changed("trace-level") {
		level, err := flags.GetString("trace-level")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
		}
		cfg.Trace.Level = level
	}
	if flags.Changed("trace-mode") {
		mode, err := flags.GetString("trace-mode")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
		}
		cfg.Trace.Mode = mode
	}
	if flags.Changed("trace-ring-size") {
		size, err := flags.GetInt("trace-ring-size")
		if err != nil {
			return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
		}
		cfg.Trace.RingSize = size
	}
	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	tcfg, err := cfg.TraceConfig()
	if err != nil {
		return nil, err
	}
	tcfg.Heartbeat = heartbeatInterval

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if tcfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(ctx, trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer
	cmd.SetContext(trace.WithTracer(ctx, tracer))

	heartbeat := trace.StartHeartbeat(tracer, heartbeatInterval)

	cleanup := func() {
		heartbeat.Stop()
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
		activeTracer = trace.Nop
	}
	return cleanup, nil
}

// ringOf returns the ring buffer behind t, if it keeps one.
func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	}
	return nil
}

// dumpTrace writes the buffered events to stderr after a failure.
func dumpTrace() {
	ring := ringOf(activeTracer)
	if ring == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "trace: last events before failure:")
	if err := ring.Dump(os.Stderr, trace.FormatText); err != nil {
		fmt.Fprintf(os.Stderr, "trace: dump error: %v\n", err)
	}
}

// dumpTraceOnPanic dumps the ring buffer and re-panics. Use as a deferred
// call at the top of a command.
func dumpTraceOnPanic() {
	if r := recover(); r != nil {
		dumpTrace()
		panic(r)
	}
}
