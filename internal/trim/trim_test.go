package trim_test

import (
	"context"
	"testing"

	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
	"loopopt/internal/testkit"
	"loopopt/internal/trim"
)

var (
	x = ir.Var("x", ir.I32)
	y = ir.Var("y", ir.I32)
)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func f(idx *ir.Expr) *ir.Expr { return ir.Load(ir.I32, "f", idx) }

func loopX(body *ir.Stmt) *ir.Stmt { return ir.For("x", i(0), i(100), ir.ForSerial, body) }

// updates builds
//
//	f(x) = x
//	f(x) += select(x > 10 && x < 20, 1, 0)
//	f(x) += select(x < 10, 0, 1)
//	f(x) *= select(x > 20 && x < 30, 2, 1)
//	f(x) = select(x >= 60 && x <= 100, 100 - f(x), f(x))
//
// as five loops over [0, 100).
func updates() *ir.Stmt {
	return ir.Block(
		loopX(ir.Store("f", x, x)),
		loopX(ir.Store("f", ir.Add(f(x), ir.Select(ir.And(ir.GT(x, i(10)), ir.LT(x, i(20))), i(1), i(0))), x)),
		loopX(ir.Store("f", ir.Add(f(x), ir.Select(ir.LT(x, i(10)), i(0), i(1))), x)),
		loopX(ir.Store("f", ir.Mul(f(x), ir.Select(ir.And(ir.GT(x, i(20)), ir.LT(x, i(30))), i(2), i(1))), x)),
		loopX(ir.Store("f", ir.Select(ir.And(ir.GE(x, i(60)), ir.LE(x, i(100))), ir.Sub(i(100), f(x)), f(x)), x)),
	)
}

func TestTrimUpdates(t *testing.T) {
	prog := updates()
	out := simplify.Stmt(trim.NoOps(context.Background(), prog))

	if n := testkit.CountExpr(out, ir.ExprSelect); n != 0 {
		t.Errorf("%d selects left in\n%s", n, out)
	}
	want := [][2]int64{{0, 100}, {11, 20}, {10, 100}, {21, 30}, {60, 100}}
	loops := testkit.Loops(out)
	if len(loops) != len(want) {
		t.Fatalf("got %d loops, want %d\n%s", len(loops), len(want), out)
	}
	for k, l := range loops {
		lo, ok1 := ir.AsInt(l.Min)
		ext, ok2 := ir.AsInt(l.Extent)
		if !ok1 || !ok2 || lo != want[k][0] || lo+ext != want[k][1] {
			t.Errorf("loop %d covers [%s, %s + %s), want [%d, %d)", k, l.Min, l.Min, l.Extent, want[k][0], want[k][1])
		}
	}
	if err := testkit.CheckRandomEquivalent(prog, out, map[string]int{"f": 100}, 3, 11); err != nil {
		t.Error(err)
	}
}

func TestNoOpsRemovesUselessLoops(t *testing.T) {
	tests := []struct {
		name string
		in   *ir.Stmt
	}{
		{"copy onto itself", loopX(ir.Store("f", f(x), x))},
		{"likely copy", loopX(ir.Store("f", ir.Likely(f(x)), x))},
		{"adds zero", loopX(ir.Store("f", ir.Add(f(x), ir.Select(ir.LT(x, i(0)), i(1), i(0))), x))},
		{"dead branch", loopX(ir.IfThenElse(ir.GT(x, i(200)), ir.Store("f", i(1), x), nil))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := trim.NoOps(context.Background(), tt.in)
			if out != nil {
				t.Errorf("loop kept:\n%s", out)
			}
			if err := testkit.CheckRandomEquivalent(tt.in, out, map[string]int{"f": 100}, 3, 13); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestNoOpsRespectsShadowedLet(t *testing.T) {
	k := ir.Var("k", ir.I32)
	g := func(idx *ir.Expr) *ir.Expr { return ir.Load(ir.I32, "g", idx) }
	body := ir.Block(
		ir.Store("f", ir.Add(f(x), k), x),
		ir.LetStmt("k", i(0), ir.Store("g", ir.Add(g(x), k), x)),
	)
	prog := ir.LetStmt("k", i(3), ir.For("x", i(0), i(10), ir.ForSerial, body))

	if cond := trim.IsNoOp(body); !ir.UsesVar(cond, "k") {
		t.Errorf("condition %s lost the outer k", cond)
	}
	out := trim.NoOps(context.Background(), prog)
	if n := len(testkit.Loops(out)); n != 1 {
		t.Errorf("%d loops, want 1:\n%s", n, out)
	}
	if err := testkit.CheckRandomEquivalent(prog, out, map[string]int{"f": 10, "g": 10}, 3, 17); err != nil {
		t.Error(err)
	}
}

func TestNoOpsKeepsEffects(t *testing.T) {
	effect := ir.Evaluate(ir.Call(ir.I32, "print", false, x))
	tests := []struct {
		name string
		in   *ir.Stmt
	}{
		{"impure call", loopX(ir.Block(effect, ir.Store("f", f(x), x)))},
		{"plain store", loopX(ir.Store("f", ir.Add(f(x), i(1)), x))},
		{"gpu loop", ir.For("x", i(0), i(100), ir.ForGPUBlock,
			ir.Store("f", ir.Select(ir.LT(x, i(50)), i(1), f(x)), x))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := trim.NoOps(context.Background(), tt.in); !ir.EqualStmt(out, tt.in) {
				t.Errorf("loop changed:\n%s", out)
			}
		})
	}
}

func TestIsNoOp(t *testing.T) {
	tests := []struct {
		name string
		in   *ir.Stmt
		want *ir.Expr
	}{
		{"self copy", ir.Store("f", f(x), x), ir.True()},
		{"impure", ir.Evaluate(ir.Call(ir.I32, "print", false, x)), ir.False()},
		{"handle", ir.Store("h", ir.Var("p", ir.Handle()), x), ir.False()},
		{"empty loop", ir.For("y", i(0), i(0), ir.ForSerial, ir.Store("f", i(1), y)), ir.True()},
		{"guarded", ir.IfThenElse(ir.GT(x, i(5)), ir.Store("f", f(x), x), nil), ir.True()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := simplify.Expr(trim.IsNoOp(tt.in)); !ir.Equal(got, tt.want) {
				t.Errorf("IsNoOp = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSimplifyUsingBounds(t *testing.T) {
	// Inside x in [10, 19] and the triangular y in [0, x]:
	inner := ir.For("y", i(0), ir.Add(x, i(1)), ir.ForSerial, ir.Store("g",
		ir.Select(ir.LE(y, x), ir.Min(x, i(30)), ir.Max(y, i(-1))), ir.Add(ir.Mul(x, i(20)), y)))
	out := simplify.Stmt(trim.SimplifyUsingBounds(inner, "x", bounds.Between(i(10), i(19))))
	want := ir.For("y", i(0), ir.Add(x, i(1)), ir.ForSerial,
		ir.Store("g", x, ir.Add(ir.Mul(x, i(20)), y)))
	if !ir.EqualStmt(out, simplify.Stmt(want)) {
		t.Errorf("got\n%s\nwant\n%s", out, want)
	}
}
