package simplify_test

import (
	"testing"

	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

var (
	x = ir.Var("x", ir.I32)
	y = ir.Var("y", ir.I32)
	c = ir.Var("c", ir.Bool())
)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func check(t *testing.T, in, want *ir.Expr) {
	t.Helper()
	got := simplify.Expr(in)
	if !ir.Equal(got, want) {
		t.Errorf("simplify(%s) = %s, want %s", in, got, want)
	}
}

func TestConstantFolding(t *testing.T) {
	check(t, ir.Add(i(3), i(4)), i(7))
	check(t, ir.Div(i(-7), i(2)), i(-4))
	check(t, ir.Mod(i(-7), i(2)), i(1))
	check(t, ir.Div(i(7), i(-2)), i(-3))
	check(t, ir.Mod(i(7), i(-2)), i(1))
	check(t, ir.Div(i(5), i(0)), i(0))
	check(t, ir.Add(ir.Const(ir.Int(8), 127), ir.Const(ir.Int(8), 1)), ir.Const(ir.Int(8), -128))
	check(t, ir.Max(ir.Const(ir.UInt(8), 200), ir.Const(ir.UInt(8), 3)), ir.Const(ir.UInt(8), 200))
	check(t, ir.And(ir.LT(i(1), i(2)), ir.NE(i(3), i(3))), ir.False())
	check(t, ir.Cast(ir.Float(32), i(3)), ir.FloatConst(ir.Float(32), 3))
	check(t, ir.Cast(ir.I32, ir.FloatConst(ir.Float(32), -2.5)), i(-2))
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		in   *ir.Expr
		want *ir.Expr
	}{
		{"collect offsets", ir.Add(ir.Add(x, i(3)), i(4)), ir.Add(x, i(7))},
		{"subtract literal", ir.Sub(x, i(3)), ir.Add(x, i(-3))},
		{"literal moves right", ir.Add(i(2), x), ir.Add(x, i(2))},
		{"cancel", ir.Sub(ir.Add(x, i(2)), x), i(2)},
		{"cancel self", ir.Sub(ir.Add(x, y), ir.Add(x, y)), i(0)},
		{"scale", ir.Add(ir.Mul(x, i(3)), x), ir.Mul(x, i(4))},
		{"distribute", ir.Mul(ir.Add(x, i(2)), i(3)), ir.Add(ir.Mul(x, i(3)), i(6))},
		{"divide multiple", ir.Div(ir.Add(ir.Mul(x, i(4)), i(8)), i(4)), ir.Add(x, i(2))},
		{"mod multiple", ir.Mod(ir.Add(ir.Mul(x, i(4)), i(3)), i(4)), i(3)},
		{"mul by one", ir.Mul(x, i(1)), x},
		{"mul by zero", ir.Mul(x, i(0)), i(0)},
		{"ramp with zero stride", ir.Ramp(x, i(0), 4), ir.Broadcast(x, 4)},
		{"ramp plus broadcast", ir.Add(ir.Ramp(x, i(1), 4), ir.Broadcast(i(2), 4)), ir.Ramp(ir.Add(x, i(2)), i(1), 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { check(t, tt.in, tt.want) })
	}
}

func TestMinMax(t *testing.T) {
	check(t, ir.Min(x, ir.Add(x, i(1))), x)
	check(t, ir.Max(x, ir.Add(x, i(1))), ir.Add(x, i(1)))
	check(t, ir.Max(ir.Min(x, i(3)), i(5)), i(5))
	check(t, ir.Min(ir.Min(x, i(3)), i(5)), ir.Min(x, i(3)))
	check(t, ir.Min(x, ir.Max(x, y)), x)
	check(t, ir.Min(i(4), x), ir.Min(x, i(4)))
	check(t, ir.Min(x, ir.PosInf()), x)
	check(t, ir.Max(x, ir.PosInf()), ir.PosInf())
	check(t, ir.Sub(x, ir.Min(x, y)), ir.Max(ir.Sub(x, y), i(0)))
}

func TestComparisons(t *testing.T) {
	check(t, ir.LT(x, ir.Add(x, i(1))), ir.True())
	check(t, ir.GE(x, ir.Add(x, i(1))), ir.False())
	check(t, ir.LT(ir.Add(x, i(3)), i(10)), ir.LT(x, i(7)))
	check(t, ir.Not(ir.LT(x, i(3))), ir.GE(x, i(3)))
	check(t, ir.EQ(ir.Add(x, i(1)), i(5)), ir.EQ(x, i(4)))
	check(t, ir.NE(ir.Add(x, i(1)), i(5)), ir.NE(x, i(4)))
	check(t, ir.LT(ir.Min(x, i(5)), i(10)), ir.True())
	check(t, ir.LT(x, ir.NegInf()), ir.False())
	check(t, ir.LE(ir.Max(x, y), y), ir.LE(x, y))
	check(t, ir.LT(ir.Const(ir.UInt(8), 0), ir.Var("u", ir.UInt(8))), ir.LT(ir.Const(ir.UInt(8), 0), ir.Var("u", ir.UInt(8))))
	check(t, ir.GE(ir.Var("u", ir.UInt(8)), ir.Const(ir.UInt(8), 0)), ir.True())
}

func TestBooleanLogic(t *testing.T) {
	check(t, ir.Select(c, ir.True(), ir.False()), c)
	check(t, ir.Select(c, x, x), x)
	check(t, ir.Select(ir.Not(c), x, y), ir.Select(c, y, x))
	check(t, ir.And(c, ir.Not(c)), ir.False())
	check(t, ir.Or(c, ir.Not(c)), ir.True())
	check(t, ir.And(ir.LT(x, i(5)), ir.LT(x, i(3))), ir.LE(x, i(2)))
	check(t, ir.Or(ir.LE(x, i(10)), ir.GE(x, i(11))), ir.True())
	check(t, ir.And(ir.LT(x, i(3)), ir.GT(x, i(5))), ir.False())
	check(t, ir.Not(ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))),
		ir.Or(ir.LE(x, i(10)), ir.GE(x, i(20))))
	check(t, ir.Select(c, ir.False(), ir.True()), ir.Not(c))
}

func TestEqualityThroughSelect(t *testing.T) {
	f := ir.Load(ir.I32, "f", x)
	inside := ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))

	// Adding a select that is zero outside [11, 19] is a no-op there.
	noop := ir.EQ(f, ir.Add(f, ir.Select(inside, i(1), i(0))))
	check(t, noop, ir.Or(ir.LE(x, i(10)), ir.GE(x, i(20))))

	// Multiplying by a select that is one outside (20, 30).
	scale := ir.And(ir.GT(x, i(20)), ir.LT(x, i(30)))
	got := simplify.Expr(ir.EQ(f, ir.Mul(f, ir.Select(scale, i(2), i(1)))))
	if got.Kind != ir.ExprOr || ir.ContainsKind(got, ir.ExprSelect) {
		t.Errorf("select not distributed: %s", got)
	}
}

func TestLet(t *testing.T) {
	check(t, ir.Let("y", i(3), ir.Add(x, y)), ir.Add(x, i(3)))
	check(t, ir.Let("z", ir.Load(ir.I32, "f", x), x), x)
	keep := ir.Let("z", ir.Load(ir.I32, "f", x), ir.Mul(ir.Var("z", ir.I32), ir.Var("z", ir.I32)))
	check(t, keep, keep)
}

func TestCanProve(t *testing.T) {
	tests := []struct {
		e    *ir.Expr
		want bool
	}{
		{ir.GT(ir.Add(x, i(1)), x), true},
		{ir.LE(ir.Min(x, y), x), true},
		{ir.GE(ir.Max(x, y), y), true},
		{ir.GE(ir.Mul(x, x), i(0)), false},
		{ir.LT(ir.Mod(x, i(8)), i(8)), true},
		{ir.GE(ir.Mod(x, i(8)), i(0)), true},
	}
	for _, tt := range tests {
		if got := simplify.CanProve(tt.e); got != tt.want {
			t.Errorf("CanProve(%s) = %v, want %v", tt.e, got, tt.want)
		}
	}
}

func TestBoundVariables(t *testing.T) {
	s := simplify.New()
	s.Bind("x", simplify.Between(0, 9))
	if got := s.Expr(ir.LT(x, i(10))); !ir.IsTrue(got) {
		t.Errorf("x < 10 with x in [0, 9] = %s", got)
	}
	if got := s.Expr(ir.Div(x, i(16))); !ir.Equal(got, i(0)) {
		t.Errorf("x / 16 with x in [0, 9] = %s", got)
	}
	if got := s.Expr(ir.Mod(x, i(10))); !ir.Equal(got, x) {
		t.Errorf("x %% 10 with x in [0, 9] = %s", got)
	}
	s.Unbind("x")
	if got := s.Expr(ir.LT(x, i(10))); ir.IsConst(got) {
		t.Errorf("x < 10 decided after unbinding: %s", got)
	}
}

func TestStmt(t *testing.T) {
	store := func(idx, v *ir.Expr) *ir.Stmt { return ir.Store("f", v, idx) }

	empty := ir.For("x", i(0), i(0), ir.ForSerial, store(x, x))
	if got := simplify.Stmt(empty); got != nil {
		t.Errorf("empty loop survived:\n%s", got)
	}

	single := ir.For("x", i(5), i(1), ir.ForSerial, store(x, x))
	if got := simplify.Stmt(single); !ir.EqualStmt(got, store(i(5), i(5))) {
		t.Errorf("single-iteration loop:\n%s", got)
	}

	self := store(x, ir.Load(ir.I32, "f", x))
	if got := simplify.Stmt(self); got != nil {
		t.Errorf("self store survived:\n%s", got)
	}

	guarded := ir.For("x", i(0), i(10), ir.ForSerial,
		ir.IfThenElse(ir.LT(x, i(10)), store(x, i(1)), store(x, i(2))))
	want := ir.For("x", i(0), i(10), ir.ForSerial, store(x, i(1)))
	if got := simplify.Stmt(guarded); !ir.EqualStmt(got, want) {
		t.Errorf("loop bound not used:\n%s", got)
	}

	pure := ir.Block(ir.Evaluate(ir.Add(x, i(1))), store(x, i(0)))
	if got := simplify.Stmt(pure); !ir.EqualStmt(got, store(x, i(0))) {
		t.Errorf("pure evaluate survived:\n%s", got)
	}

	impure := ir.Evaluate(ir.Call(ir.I32, "print", false, x))
	if got := simplify.Stmt(impure); got != impure {
		t.Errorf("impure evaluate changed:\n%s", got)
	}

	gpu := ir.For("t", i(0), i(1), ir.ForGPUThread, store(ir.Var("t", ir.I32), i(0)))
	if got := simplify.Stmt(gpu); got == nil || got.Kind != ir.StmtFor {
		t.Errorf("device loop of extent one was removed:\n%s", got)
	}
}

func TestCSE(t *testing.T) {
	sum := ir.Add(x, y)
	e := ir.Mul(sum, ir.Add(ir.Var("x", ir.I32), ir.Var("y", ir.I32)))
	got := simplify.CSE(e)
	t0 := ir.Var("t0", ir.I32)
	want := ir.Let("t0", sum, ir.Mul(t0, t0))
	if !ir.Equal(got, want) {
		t.Errorf("CSE(%s) = %s, want %s", e, got, want)
	}

	// Arithmetic with a literal operand is not worth naming.
	cheap := ir.Mul(ir.Add(x, i(1)), ir.Add(x, i(1)))
	if got := simplify.CSE(cheap); got != cheap {
		t.Errorf("CSE extracted a trivial term: %s", got)
	}

	withLet := ir.Let("z", sum, ir.Mul(sum, sum))
	if got := simplify.CSE(withLet); got != withLet {
		t.Errorf("CSE rewrote an expression containing a let: %s", got)
	}
}
