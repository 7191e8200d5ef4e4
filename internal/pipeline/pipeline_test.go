package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"loopopt/internal/demo"
	"loopopt/internal/ir"
	"loopopt/internal/pipeline"
	"loopopt/internal/testkit"
	"loopopt/internal/trace"
)

func TestRunDemos(t *testing.T) {
	for _, p := range demo.All() {
		t.Run(p.Name, func(t *testing.T) {
			res, err := pipeline.Run(context.Background(), p.Stmt, pipeline.Options{
				Verify:  4,
				Buffers: p.Buffers,
				Seed:    42,
				Jobs:    2,
				Timings: true,
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := testkit.CheckPassInvariants(res.Stmt); err != nil {
				t.Error(err)
			}
			if n := testkit.CountExpr(res.Stmt, ir.ExprLikely); n != 0 {
				t.Errorf("%d likely tags survive:\n%s", n, res.Stmt)
			}
			if res.Report.Verified != 4 {
				t.Errorf("verified %d fills, want 4", res.Report.Verified)
			}
			if got := len(res.Report.Timings.Phases); got != len(pipeline.DefaultPasses)+1 {
				t.Errorf("%d timed phases, want one per pass plus verify", got)
			}
		})
	}
}

func TestRunSplitsWindow(t *testing.T) {
	p, _ := demo.Lookup("window")
	res, err := pipeline.Run(context.Background(), p.Stmt, pipeline.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// The prologue and epilogue store f[x] back into itself and are
	// simplified away.
	if res.Report.LoopsBefore != 1 || res.Report.LoopsAfter != 1 {
		t.Fatalf("loops %d -> %d, want 1 -> 1\n%s", res.Report.LoopsBefore, res.Report.LoopsAfter, res.Stmt)
	}
	loop := testkit.Loops(res.Stmt)[0]
	if lo, _ := ir.AsInt(loop.Min); lo != 11 {
		t.Errorf("loop starts at %s, want 11", loop.Min)
	}
	if ext, _ := ir.AsInt(loop.Extent); ext != 9 {
		t.Errorf("loop extent %s, want 9", loop.Extent)
	}
	if n := testkit.CountExpr(res.Stmt, ir.ExprSelect); n != 0 {
		t.Errorf("%d selects left in\n%s", n, res.Stmt)
	}
}

func TestRunTracesPasses(t *testing.T) {
	var buf bytes.Buffer
	tr := trace.NewStreamTracer(&buf, trace.LevelDetail, trace.FormatText)
	ctx := trace.WithTracer(context.Background(), tr)
	p, _ := demo.Lookup("window")
	if _, err := pipeline.Run(ctx, p.Stmt, pipeline.Options{Passes: []string{pipeline.PassPartition}}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"→ pipeline", "→ partition", "• partition (x (serial)", "← pipeline (ok)"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace lacks %q:\n%s", want, out)
		}
	}
}

func TestRunRejectsUnknownPass(t *testing.T) {
	p, _ := demo.Lookup("window")
	_, err := pipeline.Run(context.Background(), p.Stmt, pipeline.Options{Passes: []string{"fuse"}})
	if err == nil || !strings.Contains(err.Error(), `"fuse"`) {
		t.Errorf("got %v, want an unknown pass error", err)
	}
}

func TestRunReportsInternalErrors(t *testing.T) {
	bx := ir.Var("bx", ir.I32)
	// Branches that start with different thread loops cannot be
	// renormalized.
	bad := ir.For("bx", ir.IntImm(0), ir.IntImm(4), ir.ForGPUBlock, ir.IfThenElse(ir.LT(bx, ir.IntImm(2)),
		ir.For("tx", ir.IntImm(0), ir.IntImm(8), ir.ForGPUThread, ir.Store("out", ir.IntImm(1), bx)),
		ir.For("ty", ir.IntImm(0), ir.IntImm(4), ir.ForGPUThread, ir.Store("out", ir.IntImm(2), bx))))
	_, err := pipeline.Run(context.Background(), bad, pipeline.Options{})
	var ie *ir.InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want an internal error", err)
	}
	if !strings.HasPrefix(err.Error(), "partition: ") {
		t.Errorf("error %q does not name the pass", err)
	}
}

func TestVerifyFindsDifferences(t *testing.T) {
	x := ir.Var("x", ir.I32)
	before := ir.For("x", ir.IntImm(0), ir.IntImm(8), ir.ForSerial, ir.Store("f", ir.Add(ir.Load(ir.I32, "f", x), ir.IntImm(1)), x))
	after := ir.For("x", ir.IntImm(0), ir.IntImm(7), ir.ForSerial, ir.Store("f", ir.Add(ir.Load(ir.I32, "f", x), ir.IntImm(1)), x))
	opts := pipeline.Options{Verify: 3, Buffers: map[string]int{"f": 8}}
	if err := pipeline.Verify(context.Background(), before, after, opts); err == nil {
		t.Error("Verify accepted a dropped iteration")
	}
	if err := pipeline.Verify(context.Background(), before, before, opts); err != nil {
		t.Error(err)
	}
	if err := pipeline.Verify(context.Background(), before, before, pipeline.Options{Verify: 1}); err == nil {
		t.Error("Verify ran without buffer sizes")
	}
}
