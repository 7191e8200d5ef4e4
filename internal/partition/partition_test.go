package partition_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"loopopt/internal/ir"
	"loopopt/internal/partition"
	"loopopt/internal/simplify"
	"loopopt/internal/testkit"
)

var (
	x = ir.Var("x", ir.I32)
	y = ir.Var("y", ir.I32)
)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func load(buf string, idx *ir.Expr) *ir.Expr { return ir.Load(ir.I32, buf, idx) }

// loopRanges returns [min, end) of every top-level loop of s after
// resolving the lets that bound them.
func loopRanges(t *testing.T, s *ir.Stmt) [][2]int64 {
	t.Helper()
	var out [][2]int64
	var walk func(*ir.Stmt)
	walk = func(s *ir.Stmt) {
		switch d := s.Data.(type) {
		case ir.LetStmtData:
			walk(ir.SubstituteStmt(d.Body, d.Name, d.Value))
		case ir.BlockData:
			for _, c := range d.Stmts {
				walk(c)
			}
		case ir.ForData:
			lo, ok1 := ir.AsInt(simplify.Expr(d.Min))
			ext, ok2 := ir.AsInt(simplify.Expr(d.Extent))
			if !ok1 || !ok2 {
				t.Fatalf("loop %s has non-constant bounds %s, %s", d.Name, d.Min, d.Extent)
			}
			out = append(out, [2]int64{lo, lo + ext})
		default:
			t.Fatalf("unexpected %s at top level", s.Kind)
		}
	}
	walk(s)
	return out
}

func TestPartitionScenario(t *testing.T) {
	// f(x) += select(x > 10 && x < 20, likely(1), 0)
	inside := ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))
	body := ir.Store("f", ir.Add(load("f", x), ir.Select(inside, ir.Likely(i(1)), i(0))), x)
	loop := ir.For("x", i(0), i(100), ir.ForSerial, body)

	out := partition.Loops(context.Background(), loop)

	want := [][2]int64{{0, 11}, {11, 20}, {20, 100}}
	if got := loopRanges(t, out); !slices.Equal(got, want) {
		t.Errorf("loops = %v, want %v\n%s", got, want, out)
	}
	if n := testkit.CountExpr(out, ir.ExprSelect); n != 0 {
		t.Errorf("%d selects left in\n%s", n, out)
	}
	if n := testkit.CountExpr(out, ir.ExprLikely); n != 0 {
		t.Errorf("%d likely tags left in\n%s", n, out)
	}
	if err := testkit.CheckPassInvariants(out); err != nil {
		t.Error(err)
	}
	if err := testkit.CheckRandomEquivalent(loop, out, map[string]int{"f": 100}, 3, 1); err != nil {
		t.Error(err)
	}
}

func TestPartitionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	inside := ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))
	loop := ir.For("x", i(0), i(100), ir.ForSerial,
		ir.Store("f", ir.Select(inside, ir.Likely(load("g", x)), i(0)), x))

	// Likely tags are still present between the two runs.
	once := partition.PartitionLoops(ctx, partition.ExpandSelects(partition.MarkClampedRampsAsLikely(loop)))
	if testkit.CountExpr(once, ir.ExprLikely) == 0 {
		t.Fatalf("likely tags gone after partitioning:\n%s", once)
	}
	twice := partition.PartitionLoops(ctx, once)
	if got, want := len(testkit.Loops(twice)), len(testkit.Loops(once)); got != want || want != 3 {
		t.Errorf("%d loops after two runs, %d after one, want 3", got, want)
	}
	if !ir.EqualStmt(once, twice) {
		t.Errorf("second run changed the program:\n%s\nbecame\n%s", once, twice)
	}
	if err := testkit.CheckRandomEquivalent(loop, twice, map[string]int{"f": 100, "g": 100}, 3, 5); err != nil {
		t.Error(err)
	}
}

func TestPartitionLikelyIf(t *testing.T) {
	loop := ir.For("x", i(0), i(100), ir.ForSerial,
		ir.IfThenElse(ir.Likely(ir.LT(x, i(50))),
			ir.Store("f", i(1), x),
			ir.Store("f", i(2), x)))
	out := partition.Loops(context.Background(), loop)
	want := [][2]int64{{0, 50}, {50, 100}}
	if got := loopRanges(t, out); !slices.Equal(got, want) {
		t.Errorf("loops = %v, want %v\n%s", got, want, out)
	}
	if n := testkit.CountStmt(simplify.Stmt(out), ir.StmtIf); n != 0 {
		t.Errorf("%d ifs survive simplification of\n%s", n, out)
	}
	if err := testkit.CheckRandomEquivalent(loop, out, map[string]int{"f": 100}, 3, 2); err != nil {
		t.Error(err)
	}
}

func TestPartitionRelaxesInnerLoops(t *testing.T) {
	// The condition holds for every x only while y < 3.
	inner := ir.For("x", i(0), i(8), ir.ForSerial,
		ir.Store("out", ir.Select(ir.LT(ir.Add(y, x), i(10)), ir.Likely(i(1)), i(0)), ir.Add(ir.Mul(y, i(8)), x)))
	loop := ir.For("y", i(0), i(20), ir.ForSerial, inner)
	out := partition.Loops(context.Background(), loop)
	want := [][2]int64{{0, 3}, {3, 20}}
	if got := loopRanges(t, out); !slices.Equal(got, want) {
		t.Errorf("loops = %v, want %v\n%s", got, want, out)
	}
	if err := testkit.CheckRandomEquivalent(loop, out, map[string]int{"out": 160}, 3, 3); err != nil {
		t.Error(err)
	}
}

func TestPartitionParallelLoopUsesIf(t *testing.T) {
	inside := ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))
	body := ir.Store("f", ir.Add(load("f", x), ir.Select(inside, ir.Likely(i(1)), i(0))), x)
	loop := ir.For("x", i(0), i(100), ir.ForParallel, body)
	out := partition.Loops(context.Background(), loop)
	if got := len(testkit.Loops(out)); got != 1 {
		t.Errorf("%d loops, want the parallel loop kept whole\n%s", got, out)
	}
	if got := testkit.CountStmt(out, ir.StmtIf); got != 1 {
		t.Errorf("%d ifs, want 1\n%s", got, out)
	}
	if n := testkit.CountExpr(out, ir.ExprSelect); n != 0 {
		t.Errorf("%d selects left in\n%s", n, out)
	}
	if err := testkit.CheckRandomEquivalent(loop, out, map[string]int{"f": 100}, 3, 4); err != nil {
		t.Error(err)
	}
}

func TestPartitionClampedRamp(t *testing.T) {
	// out[4x .. 4x+3] = in[min(4x+1 .. 4x+4, 39)]
	base := ir.Mul(x, i(4))
	clamped := ir.Min(ir.Ramp(ir.Add(base, i(1)), i(1), 4), ir.Broadcast(i(39), 4))
	loop := ir.For("x", i(0), i(10), ir.ForSerial,
		ir.Store("out", ir.Load(ir.I32, "in", clamped), ir.Ramp(base, i(1), 4)))
	out := partition.Loops(context.Background(), loop)
	loops := testkit.Loops(out)
	if len(loops) < 2 {
		t.Fatalf("clamp did not split the loop:\n%s", out)
	}
	if testkit.CountExpr(loops[0].Body, ir.ExprMin) != 0 {
		t.Errorf("steady state still clamps:\n%s", out)
	}
	sizes := map[string]int{"in": 40, "out": 40}
	if err := testkit.CheckRandomEquivalent(loop, out, sizes, 3, 5); err != nil {
		t.Error(err)
	}
}

func TestPartitionLeavesPlainLoops(t *testing.T) {
	loop := ir.For("x", i(0), i(10), ir.ForSerial,
		ir.Store("f", ir.Min(load("g", x), i(3)), x))
	if out := partition.Loops(context.Background(), loop); !ir.EqualStmt(out, loop) {
		t.Errorf("loop without likely tags changed:\n%s", out)
	}
}

func TestPartitionSkipsBarrierLoops(t *testing.T) {
	barrier := ir.Evaluate(ir.Call(ir.I32, partition.BarrierCall, false))
	inner := ir.For("x", i(0), i(100), ir.ForSerial, ir.Block(
		barrier,
		ir.Store("f", ir.Select(ir.LT(x, i(50)), ir.Likely(i(1)), i(0)), x),
	))
	kernel := ir.For("b", i(0), i(4), ir.ForGPUBlock, inner)
	out := partition.PartitionLoops(context.Background(), kernel)
	if !ir.EqualStmt(out, kernel) {
		t.Errorf("loop with a thread barrier was partitioned:\n%s", out)
	}
}

func TestExpandAndCollapseSelects(t *testing.T) {
	a, b := ir.LT(x, i(3)), ir.GT(y, i(5))
	heavy := ir.Add(load("g", x), i(1))
	tests := []struct {
		name   string
		value  *ir.Expr
		expand *ir.Expr
	}{
		{"or", ir.Select(ir.Or(a, b), i(1), i(0)),
			ir.Select(a, i(1), ir.Select(b, i(1), i(0)))},
		{"and", ir.Select(ir.And(a, b), i(1), i(0)),
			ir.Select(a, ir.Select(b, i(1), i(0)), i(0))},
		{"not", ir.Select(ir.Not(a), x, y), ir.Select(a, y, x)},
		{"shared value", ir.Select(ir.Or(a, b), heavy, i(0)),
			ir.Let("t", heavy, ir.Select(a, ir.Var("t", ir.I32), ir.Select(b, ir.Var("t", ir.I32), i(0))))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ir.Store("f", tt.value, x)
			got := partition.ExpandSelects(s)
			if want := ir.Store("f", tt.expand, x); !ir.EqualStmt(got, want) {
				t.Errorf("ExpandSelects = %s, want %s", got, want)
			}
			sizes := map[string]int{"f": 8, "g": 8}
			for _, p := range []*ir.Stmt{got, partition.CollapseSelects(got)} {
				prog := ir.For("x", i(0), i(8), ir.ForSerial, ir.LetStmt("y", ir.Sub(i(8), x), p))
				orig := ir.For("x", i(0), i(8), ir.ForSerial, ir.LetStmt("y", ir.Sub(i(8), x), s))
				if err := testkit.CheckRandomEquivalent(orig, prog, sizes, 3, 6); err != nil {
					t.Error(err)
				}
			}
		})
	}
	collapsed := partition.CollapseSelects(partition.ExpandSelects(ir.Store("f", tests[1].value, x)))
	if !ir.EqualStmt(collapsed, ir.Store("f", tests[1].value, x)) {
		t.Errorf("CollapseSelects did not restore %s: %s", tests[1].value, collapsed)
	}
}

func TestMarkClampedRampsAsLikely(t *testing.T) {
	r := ir.Ramp(x, i(1), 4)
	idx := ir.Max(ir.Broadcast(i(0), 4), r)
	s := ir.Store("out", ir.Load(ir.I32, "in", idx), r)
	got := partition.MarkClampedRampsAsLikely(s)
	want := ir.Store("out", ir.Load(ir.I32, "in", ir.Max(ir.Broadcast(i(0), 4), ir.Likely(r))), r)
	if !ir.EqualStmt(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
	value := ir.Store("out", ir.Min(r, ir.Broadcast(i(9), 4)), r)
	if got := partition.MarkClampedRampsAsLikely(value); !ir.EqualStmt(got, value) {
		t.Errorf("clamp outside an index was marked: %s", got)
	}
}

func TestRenormalizeGPULoops(t *testing.T) {
	bx, tx := ir.Var("bx", ir.I32), ir.Var("tx", ir.I32)
	k, c := ir.Var("k", ir.I32), ir.Var("c", ir.I32)
	store := ir.Store("out", ir.Add(ir.Add(k, tx), c), ir.Add(k, tx))
	thread := func(body *ir.Stmt) *ir.Stmt { return ir.For("tx", i(0), i(8), ir.ForGPUThread, body) }
	block := func(body *ir.Stmt) *ir.Stmt { return ir.For("bx", i(0), i(4), ir.ForGPUBlock, body) }

	tests := []struct {
		name string
		in   *ir.Stmt
		want *ir.Stmt
	}{
		{
			"lets move out and in",
			block(ir.LetStmt("k", ir.Mul(bx, i(8)), ir.LetStmt("c", i(3), thread(store)))),
			ir.LetStmt("c.1", i(3), block(thread(ir.LetStmt("k", ir.Mul(bx, i(8)),
				ir.SubstituteStmt(store, "c", ir.Var("c.1", ir.I32)))))),
		},
		{
			"if pushed into thread loop",
			block(ir.IfThenElse(ir.LT(bx, i(2)),
				thread(ir.Store("out", i(1), tx)),
				thread(ir.Store("out", i(2), tx)))),
			block(thread(ir.IfThenElse(ir.LT(bx, i(2)),
				ir.Store("out", i(1), tx),
				ir.Store("out", i(2), tx)))),
		},
		{
			"equal branches",
			block(ir.IfThenElse(ir.LT(bx, i(2)), thread(ir.Store("out", i(1), tx)), thread(ir.Store("out", i(1), tx)))),
			block(thread(ir.Store("out", i(1), tx))),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := partition.RenormalizeGPULoops(tt.in); !ir.EqualStmt(got, tt.want) {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestRenormalizeGPULoopsRenamesLiftedLets(t *testing.T) {
	b, a := ir.Var("b", ir.I32), ir.Var("a", ir.I32)
	in := ir.For("b", i(0), i(2), ir.ForGPUBlock, ir.Block(
		ir.LetStmt("a", i(1), ir.Store("f", a, b)),
		ir.LetStmt("a", i(2), ir.Store("g", a, b)),
	))
	out := partition.RenormalizeGPULoops(in)
	loops := testkit.Loops(out)
	if len(loops) != 1 || testkit.CountStmt(loops[0].Body, ir.StmtLet) != 0 {
		t.Fatalf("lets not lifted out of the block loop:\n%s", out)
	}
	if n := testkit.CountStmt(out, ir.StmtLet); n != 2 {
		t.Errorf("%d lets, want 2:\n%s", n, out)
	}
	if err := testkit.CheckRandomEquivalent(in, out, map[string]int{"f": 2, "g": 2}, 3, 3); err != nil {
		t.Error(err)
	}
}

func TestRenormalizeGPULoopsSplitsLets(t *testing.T) {
	bx, tx := ir.Var("bx", ir.I32), ir.Var("tx", ir.I32)
	k := ir.Var("k", ir.I32)
	thread := func(v int64) *ir.Stmt {
		return ir.For("tx", i(0), i(8), ir.ForGPUThread, ir.Store("out", ir.Add(k, i(v)), ir.Add(ir.Mul(bx, i(8)), tx)))
	}
	in := ir.For("bx", i(0), i(4), ir.ForGPUBlock, ir.IfThenElse(ir.LT(bx, i(2)),
		ir.LetStmt("k", ir.Mul(bx, i(2)), thread(1)),
		ir.LetStmt("k", ir.Mul(bx, i(3)), thread(2))))
	out := partition.RenormalizeGPULoops(in)
	loops := testkit.Loops(out)
	if len(loops) != 2 || loops[1].Kind != ir.ForGPUThread {
		t.Fatalf("thread loop is not directly inside the block loop:\n%s", out)
	}
	if d, ok := loops[0].Body.For(); !ok || d.Name != "tx" {
		t.Errorf("block loop body is not the thread loop:\n%s", out)
	}
	if err := testkit.CheckRandomEquivalent(in, out, map[string]int{"out": 32}, 2, 7); err != nil {
		t.Error(err)
	}
}

func TestRenormalizeGPULoopsRejectsMismatchedBranches(t *testing.T) {
	bx := ir.Var("bx", ir.I32)
	in := ir.For("bx", i(0), i(4), ir.ForGPUBlock, ir.IfThenElse(ir.LT(bx, i(2)),
		ir.For("tx", i(0), i(8), ir.ForGPUThread, ir.Store("out", i(1), bx)),
		ir.For("ty", i(0), i(4), ir.ForGPUThread, ir.Store("out", i(2), bx))))
	err := func() (err error) {
		defer ir.RecoverInternal(&err)
		partition.RenormalizeGPULoops(in)
		return nil
	}()
	var ie *ir.InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want an internal error", err)
	}
}
