// Package pipeline runs the loop optimization passes in order, times
// them, and optionally checks the result against the input program on
// random memories.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"loopopt/internal/ir"
	"loopopt/internal/observ"
	"loopopt/internal/partition"
	"loopopt/internal/simplify"
	"loopopt/internal/testkit"
	"loopopt/internal/trace"
	"loopopt/internal/trim"
)

// Pass names accepted in Options.Passes.
const (
	PassPartition = "partition"
	PassTrim      = "trim"
	PassSimplify  = "simplify"
)

// DefaultPasses is the order used when Options.Passes is empty.
var DefaultPasses = []string{PassPartition, PassSimplify, PassTrim, PassSimplify}

var passes = map[string]func(context.Context, *ir.Stmt) *ir.Stmt{
	PassPartition: partition.Loops,
	PassTrim:      trim.NoOps,
	PassSimplify:  func(_ context.Context, s *ir.Stmt) *ir.Stmt { return simplify.Stmt(s) },
}

// Options controls a run.
type Options struct {
	Passes []string

	// Verify is the number of random memories the result is checked on.
	// Buffers gives the size of every buffer the program touches.
	Verify  int
	Buffers map[string]int
	Seed    uint64
	// Jobs bounds the verification goroutines; 0 means GOMAXPROCS.
	Jobs int

	Timings bool
}

// Report summarizes a run.
type Report struct {
	LoopsBefore int
	LoopsAfter  int
	Verified    int // random memories the result was checked on
	Timings     observ.Report
}

// Result is the optimized program and its report.
type Result struct {
	Stmt   *ir.Stmt
	Report Report
}

// ValidatePasses reports unknown pass names.
func ValidatePasses(names []string) error {
	var errs []error
	for _, n := range names {
		if _, ok := passes[n]; !ok {
			errs = append(errs, fmt.Errorf("unknown pass %q", n))
		}
	}
	return errors.Join(errs...)
}

// Run optimizes s. An internal consistency failure inside a pass aborts
// the run and is returned as an *ir.InternalError.
func Run(ctx context.Context, s *ir.Stmt, opts Options) (res *Result, err error) {
	names := opts.Passes
	if len(names) == 0 {
		names = DefaultPasses
	}
	if err := ValidatePasses(names); err != nil {
		return nil, err
	}
	if err := ir.Validate(s); err != nil {
		return nil, fmt.Errorf("input program: %w", err)
	}

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "pipeline", trace.ParentID(ctx))
	defer func() {
		detail := "ok"
		if err != nil {
			detail = err.Error()
		}
		span.End(detail)
	}()
	ctx = trace.WithSpan(ctx, span)

	var timer *observ.Timer
	if opts.Timings {
		timer = observ.NewTimer()
	}
	report := Report{LoopsBefore: len(testkit.Loops(s))}

	out := s
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err = runPass(ctx, timer, name, out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := ir.Validate(out); err != nil {
		return nil, &ir.InternalError{Msg: fmt.Sprintf("pass output is invalid: %v", err)}
	}
	report.LoopsAfter = len(testkit.Loops(out))

	if opts.Verify > 0 {
		idx := begin(timer, "verify")
		err := Verify(ctx, s, out, opts)
		end(timer, idx, fmt.Sprintf("fills=%d", opts.Verify))
		if err != nil {
			return nil, err
		}
		report.Verified = opts.Verify
	}
	if timer != nil {
		report.Timings = timer.Report()
	}
	return &Result{Stmt: out, Report: report}, nil
}

func begin(timer *observ.Timer, name string) int {
	if timer == nil {
		return -1
	}
	return timer.Begin(name)
}

func end(timer *observ.Timer, idx int, note string) {
	if timer != nil {
		timer.End(idx, note)
	}
}

func runPass(ctx context.Context, timer *observ.Timer, name string, s *ir.Stmt) (out *ir.Stmt, err error) {
	defer ir.RecoverInternal(&err)
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, name, trace.ParentID(ctx))
	idx := begin(timer, name)
	out = passes[name](trace.WithSpan(ctx, span), s)
	note := fmt.Sprintf("loops=%d", len(testkit.Loops(out)))
	end(timer, idx, note)
	span.End(note)
	return out, nil
}

// Verify runs before and after on opts.Verify random memories in
// parallel and joins the differences found. Fill k uses seed
// opts.Seed+k, so results do not depend on scheduling.
func Verify(ctx context.Context, before, after *ir.Stmt, opts Options) error {
	if len(opts.Buffers) == 0 {
		return errors.New("verify: no buffer sizes given")
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, opts.Verify)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for k := range opts.Verify {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := opts.Seed + uint64(k)
			span := trace.Begin(trace.FromContext(ctx), trace.ScopeLoop, "verify", trace.ParentID(ctx))
			mem := testkit.Memory(opts.Buffers)
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			if err := testkit.Fill(mem, rng, testkit.DefaultSpan); err != nil {
				return err
			}
			if err := testkit.CheckEquivalent(before, after, mem); err != nil {
				errs[k] = fmt.Errorf("verify seed %d: %w", seed, err)
			}
			span.End(fmt.Sprintf("seed=%d", seed))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
