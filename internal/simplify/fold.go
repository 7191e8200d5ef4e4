package simplify

import (
	"math"

	"loopopt/internal/ir"
)

// intConst returns the value of an integer or boolean literal, looking
// through a broadcast.
func intConst(e *ir.Expr) (int64, bool) {
	c := ir.ScalarConst(e)
	if c == nil || c.Type.IsFloat() {
		return 0, false
	}
	return c.Data.(ir.ConstData).Int, true
}

// DivEuclid is integer division rounding so that the remainder is
// non-negative. Division by zero yields zero.
func DivEuclid(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q, r := a/b, a%b
	if r < 0 {
		if b > 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// ModEuclid is the remainder matching DivEuclid, always in [0, |b|).
// The remainder of division by zero is zero.
func ModEuclid(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	r := a % b
	if r < 0 {
		if b > 0 {
			r += b
		} else {
			r -= b
		}
	}
	return r
}

// FloatMod is the floored float remainder a - b*floor(a/b).
func FloatMod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// fold evaluates a binary node whose operands are both literals. It
// returns nil when either operand is not a literal.
func fold(k ir.ExprKind, a, b *ir.Expr) *ir.Expr {
	ca, cb := ir.ScalarConst(a), ir.ScalarConst(b)
	if ca == nil || cb == nil || a.Type.Lanes != b.Type.Lanes {
		return nil
	}
	t := a.Type
	et := ca.Type
	x, y := ca.Data.(ir.ConstData), cb.Data.(ir.ConstData)
	if et.IsFloat() {
		return foldFloat(k, t, x.Float, y.Float)
	}
	if et.IsUInt() && et.Bits == 64 {
		return foldUint64(k, t, uint64(x.Int), uint64(y.Int))
	}
	return foldInt(k, t, x.Int, y.Int)
}

func boolResult(t ir.Type, b bool) *ir.Expr {
	return ir.BoolConst(t, b)
}

func foldInt(k ir.ExprKind, t ir.Type, x, y int64) *ir.Expr {
	switch k {
	case ir.ExprAdd:
		return ir.Const(t, x+y)
	case ir.ExprSub:
		return ir.Const(t, x-y)
	case ir.ExprMul:
		return ir.Const(t, x*y)
	case ir.ExprDiv:
		return ir.Const(t, DivEuclid(x, y))
	case ir.ExprMod:
		return ir.Const(t, ModEuclid(x, y))
	case ir.ExprMin:
		return ir.Const(t, min(x, y))
	case ir.ExprMax:
		return ir.Const(t, max(x, y))
	case ir.ExprEQ:
		return boolResult(t, x == y)
	case ir.ExprNE:
		return boolResult(t, x != y)
	case ir.ExprLT:
		return boolResult(t, x < y)
	case ir.ExprLE:
		return boolResult(t, x <= y)
	case ir.ExprGT:
		return boolResult(t, x > y)
	case ir.ExprGE:
		return boolResult(t, x >= y)
	case ir.ExprAnd:
		return boolResult(t, x != 0 && y != 0)
	case ir.ExprOr:
		return boolResult(t, x != 0 || y != 0)
	}
	return nil
}

func foldUint64(k ir.ExprKind, t ir.Type, x, y uint64) *ir.Expr {
	switch k {
	case ir.ExprAdd:
		return ir.Const(t, int64(x+y))
	case ir.ExprSub:
		return ir.Const(t, int64(x-y))
	case ir.ExprMul:
		return ir.Const(t, int64(x*y))
	case ir.ExprDiv:
		if y == 0 {
			return ir.Zero(t)
		}
		return ir.Const(t, int64(x/y))
	case ir.ExprMod:
		if y == 0 {
			return ir.Zero(t)
		}
		return ir.Const(t, int64(x%y))
	case ir.ExprMin:
		return ir.Const(t, int64(min(x, y)))
	case ir.ExprMax:
		return ir.Const(t, int64(max(x, y)))
	case ir.ExprEQ:
		return boolResult(t, x == y)
	case ir.ExprNE:
		return boolResult(t, x != y)
	case ir.ExprLT:
		return boolResult(t, x < y)
	case ir.ExprLE:
		return boolResult(t, x <= y)
	case ir.ExprGT:
		return boolResult(t, x > y)
	case ir.ExprGE:
		return boolResult(t, x >= y)
	}
	return nil
}

func foldFloat(k ir.ExprKind, t ir.Type, x, y float64) *ir.Expr {
	switch k {
	case ir.ExprAdd:
		return ir.FloatConst(t, x+y)
	case ir.ExprSub:
		return ir.FloatConst(t, x-y)
	case ir.ExprMul:
		return ir.FloatConst(t, x*y)
	case ir.ExprDiv:
		return ir.FloatConst(t, x/y)
	case ir.ExprMod:
		return ir.FloatConst(t, FloatMod(x, y))
	case ir.ExprMin:
		return ir.FloatConst(t, math.Min(x, y))
	case ir.ExprMax:
		return ir.FloatConst(t, math.Max(x, y))
	case ir.ExprEQ:
		return boolResult(t, x == y)
	case ir.ExprNE:
		return boolResult(t, x != y)
	case ir.ExprLT:
		return boolResult(t, x < y)
	case ir.ExprLE:
		return boolResult(t, x <= y)
	case ir.ExprGT:
		return boolResult(t, x > y)
	case ir.ExprGE:
		return boolResult(t, x >= y)
	}
	return nil
}

// foldCast converts a literal to type t.
func foldCast(t ir.Type, v *ir.Expr) *ir.Expr {
	c := ir.ScalarConst(v)
	if c == nil {
		return nil
	}
	d := c.Data.(ir.ConstData)
	switch {
	case t.IsBool():
		if c.Type.IsFloat() {
			return ir.BoolConst(t, d.Float != 0)
		}
		return ir.BoolConst(t, d.Int != 0)
	case t.IsFloat() && c.Type.IsFloat():
		return ir.FloatConst(t, d.Float)
	case t.IsFloat() && c.Type.IsUInt() && c.Type.Bits == 64:
		return ir.FloatConst(t, float64(uint64(d.Int)))
	case t.IsFloat():
		return ir.FloatConst(t, float64(d.Int))
	case t.IsIntLike() && c.Type.IsFloat():
		if math.IsNaN(d.Float) || math.IsInf(d.Float, 0) {
			return nil
		}
		f := math.Trunc(d.Float)
		if f >= math.MaxInt64 || f < math.MinInt64 {
			return nil
		}
		return ir.Const(t, int64(f))
	case t.IsIntLike():
		return ir.Const(t, d.Int)
	}
	return nil
}
