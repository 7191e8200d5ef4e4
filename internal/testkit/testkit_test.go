package testkit_test

import (
	"math/rand/v2"
	"testing"

	"loopopt/internal/eval"
	"loopopt/internal/ir"
	"loopopt/internal/testkit"
)

var x = ir.Var("x", ir.I32)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func TestFillIsDeterministic(t *testing.T) {
	a := testkit.Memory(map[string]int{"f": 8, "g": 3})
	b := testkit.Memory(map[string]int{"f": 8, "g": 3})
	if err := testkit.Fill(a, rand.New(rand.NewPCG(1, 2)), 4); err != nil {
		t.Fatal(err)
	}
	if err := testkit.Fill(b, rand.New(rand.NewPCG(1, 2)), 4); err != nil {
		t.Fatal(err)
	}
	if err := eval.Diff(a, b); err != nil {
		t.Errorf("same seed, different memory: %v", err)
	}
	for k := range 8 {
		v, _ := a["f"].At(k).Scalar()
		if v < -4 || v > 4 {
			t.Errorf("f[%d] = %d outside [-4, 4]", k, v)
		}
	}
}

func TestCheckRandomEquivalent(t *testing.T) {
	sizes := map[string]int{"f": 10}
	double := ir.For("x", i(0), i(10), ir.ForSerial,
		ir.Store("f", ir.Mul(ir.Load(ir.I32, "f", x), i(2)), x))
	shifted := ir.For("x", i(0), i(10), ir.ForSerial,
		ir.Store("f", ir.Add(ir.Load(ir.I32, "f", x), ir.Load(ir.I32, "f", x)), x))
	if err := testkit.CheckRandomEquivalent(double, shifted, sizes, 5, 7); err != nil {
		t.Errorf("equivalent programs reported different: %v", err)
	}
	partial := ir.For("x", i(1), i(9), ir.ForSerial,
		ir.Store("f", ir.Mul(ir.Load(ir.I32, "f", x), i(2)), x))
	if err := testkit.CheckRandomEquivalent(double, partial, sizes, 20, 7); err == nil {
		t.Error("dropped iterations went unnoticed")
	}
}

func TestCheckPassInvariants(t *testing.T) {
	tests := []struct {
		name string
		s    *ir.Stmt
		ok   bool
	}{
		{"plain", ir.For("x", i(0), i(4), ir.ForSerial, ir.Store("f", x, x)), true},
		{"sibling loops reuse a name", ir.Block(
			ir.For("x", i(0), i(4), ir.ForSerial, ir.Store("f", x, x)),
			ir.For("x", i(4), i(4), ir.ForSerial, ir.Store("f", x, x)),
		), true},
		{"infinity", ir.Store("f", ir.Min(x, ir.PosInf()), i(0)), false},
		{"nested reuse", ir.For("x", i(0), i(4), ir.ForSerial,
			ir.For("x", i(0), i(4), ir.ForSerial, ir.Store("f", x, x))), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testkit.CheckPassInvariants(tt.s)
			if (err == nil) != tt.ok {
				t.Errorf("CheckPassInvariants = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestShapeQueries(t *testing.T) {
	s := ir.For("y", i(0), i(2), ir.ForSerial, ir.Block(
		ir.For("x", i(0), i(4), ir.ForSerial, ir.Store("f", ir.Select(ir.LT(x, i(2)), x, i(0)), x)),
		ir.Store("f", ir.Select(ir.GT(x, i(2)), x, i(1)), i(0)),
	))
	if got := len(testkit.Loops(s)); got != 2 {
		t.Errorf("Loops = %d, want 2", got)
	}
	if got := testkit.CountExpr(s, ir.ExprSelect); got != 2 {
		t.Errorf("CountExpr(Select) = %d, want 2", got)
	}
	if got := testkit.CountStmt(s, ir.StmtStore); got != 2 {
		t.Errorf("CountStmt(Store) = %d, want 2", got)
	}
}
