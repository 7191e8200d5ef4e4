package relax_test

import (
	"fmt"
	"testing"

	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/relax"
	"loopopt/internal/simplify"
)

var (
	x = ir.Var("x", ir.I32)
	y = ir.Var("y", ir.I32)
)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func over(name string, lo, hi *ir.Expr) *ir.Scope[bounds.Interval] {
	s := ir.NewScope[bounds.Interval]()
	s.Push(name, bounds.Between(lo, hi))
	return s
}

func TestAndOverDomain(t *testing.T) {
	tests := []struct {
		name  string
		cond  *ir.Expr
		scope *ir.Scope[bounds.Interval]
		want  *ir.Expr
		tight bool
	}{
		{"holds everywhere", ir.LT(x, i(10)), over("x", i(0), i(9)), ir.True(), false},
		{"fails at the top", ir.LT(x, i(10)), over("x", i(0), i(20)), ir.False(), false},
		{"unbounded", ir.LT(x, i(10)), over("x", i(0), ir.PosInf()), ir.False(), false},
		{"negated", ir.Not(ir.LT(x, i(3))), over("x", i(5), i(10)), ir.True(), false},
		{"single point", ir.EQ(x, i(3)), over("x", i(3), i(3)), ir.True(), true},
		{"equality over a range", ir.EQ(x, i(3)), over("x", i(0), i(5)), ir.False(), false},
		{"separated", ir.NE(x, i(20)), over("x", i(0), i(9)), ir.True(), false},
		{"overlapping", ir.NE(x, i(5)), over("x", i(0), i(9)), ir.False(), false},
		{"unscoped", ir.LT(y, i(4)), over("x", i(0), i(9)), ir.LT(y, i(4)), true},
		{"symbolic", ir.LT(x, y), over("x", i(0), i(9)), ir.LT(i(9), y), false},
		{"varying let", ir.Let("t", ir.Mul(x, i(2)), ir.LT(ir.Var("t", ir.I32), i(10))),
			over("x", i(0), i(4)), ir.True(), false},
		{"boolean select", ir.Select(ir.GT(x, i(5)), ir.LT(x, i(20)), ir.GE(x, i(0))),
			over("x", i(0), i(9)), ir.True(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tight := relax.AndOverDomain(tt.cond, tt.scope)
			if want := simplify.Expr(tt.want); !ir.Equal(got, want) {
				t.Errorf("AndOverDomain(%s) = %s, want %s", tt.cond, got, want)
			}
			if tight != tt.tight {
				t.Errorf("AndOverDomain(%s) tight = %v, want %v", tt.cond, tight, tt.tight)
			}
		})
	}
}

func TestOrOverDomain(t *testing.T) {
	got, _ := relax.OrOverDomain(ir.GT(x, i(5)), over("x", i(0), i(10)))
	if !ir.IsTrue(got) {
		t.Errorf("x > 5 holds somewhere in [0, 10], got %s", got)
	}
	got, _ = relax.OrOverDomain(ir.GT(x, i(50)), over("x", i(0), i(10)))
	if !ir.IsFalse(got) {
		t.Errorf("x > 50 holds nowhere in [0, 10], got %s", got)
	}
}

func TestDevectorize(t *testing.T) {
	cond := ir.LT(ir.Ramp(x, i(1), 4), ir.Broadcast(i(10), 4))
	got, tight := relax.AndOverDomain(cond, nil)
	if want := ir.LT(x, i(7)); !ir.Equal(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
	if tight {
		t.Error("a condition over several lanes cannot be tight")
	}
	if !got.Type.IsScalar() {
		t.Errorf("result has type %s", got.Type)
	}
}

// Every relaxation must imply the original condition at each point of
// the domain, and the dual must be implied by it.
func TestRelaxSoundness(t *testing.T) {
	conds := []*ir.Expr{
		ir.And(ir.GT(ir.Mul(x, i(3)), i(7)), ir.LT(x, i(40))),
		ir.Or(ir.Not(ir.LT(x, i(5))), ir.GT(x, i(100))),
		ir.NE(ir.Mod(x, i(4)), i(1)),
		ir.GE(ir.Min(x, i(20)), i(10)),
		ir.Select(ir.GT(x, i(5)), ir.LT(x, i(8)), ir.GT(x, i(2))),
		ir.Not(ir.EQ(ir.Div(x, i(3)), i(2))),
		ir.Let("t", ir.Sub(i(6), x), ir.LE(ir.Mul(ir.Var("t", ir.I32), i(2)), i(9))),
	}
	for n, cond := range conds {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			for lo := int64(-10); lo <= 10; lo++ {
				for hi := lo; hi <= lo+12; hi++ {
					scope := over("x", i(lo), i(hi))
					all, _ := relax.AndOverDomain(cond, scope)
					some, _ := relax.OrOverDomain(cond, scope)
					if ir.UsesVar(all, "x") || ir.UsesVar(some, "x") {
						t.Fatalf("relaxing %s over [%d, %d] kept x: %s, %s", cond, lo, hi, all, some)
					}
					for xv := lo; xv <= hi; xv++ {
						holds := ir.IsTrue(simplify.Expr(ir.Substitute(cond, "x", i(xv))))
						if ir.IsTrue(all) && !holds {
							t.Fatalf("%s over [%d, %d] relaxed to true but fails at %d", cond, lo, hi, xv)
						}
						if ir.IsFalse(some) && holds {
							t.Fatalf("%s over [%d, %d] relaxed to false but holds at %d", cond, lo, hi, xv)
						}
					}
				}
			}
		})
	}
}
