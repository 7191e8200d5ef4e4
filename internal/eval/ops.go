package eval

import (
	"math"

	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// binary applies k lane by lane. t is the result type.
func binary(k ir.ExprKind, t ir.Type, a, b Value) Value {
	n := max(a.Lanes(), b.Lanes())
	a, b = a.broadcast(n), b.broadcast(n)
	out := newValue(t, n)
	et := a.Type.Element()
	for i := range n {
		switch {
		case et.IsFloat():
			floatLane(k, et, out, i, a.Floats[i], b.Floats[i])
		case et.IsUInt() && et.Bits == 64:
			uintLane(k, et, out, i, uint64(a.Ints[i]), uint64(b.Ints[i]))
		default:
			intLane(k, et, out, i, a.Ints[i], b.Ints[i])
		}
	}
	return out
}

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func intLane(k ir.ExprKind, et ir.Type, out Value, i int, x, y int64) {
	var r int64
	switch k {
	case ir.ExprAdd:
		r = x + y
	case ir.ExprSub:
		r = x - y
	case ir.ExprMul:
		r = x * y
	case ir.ExprDiv:
		r = simplify.DivEuclid(x, y)
	case ir.ExprMod:
		r = simplify.ModEuclid(x, y)
	case ir.ExprMin:
		r = min(x, y)
	case ir.ExprMax:
		r = max(x, y)
	case ir.ExprEQ:
		r = truth(x == y)
	case ir.ExprNE:
		r = truth(x != y)
	case ir.ExprLT:
		r = truth(x < y)
	case ir.ExprLE:
		r = truth(x <= y)
	case ir.ExprGT:
		r = truth(x > y)
	case ir.ExprGE:
		r = truth(x >= y)
	case ir.ExprAnd:
		r = truth(x != 0 && y != 0)
	case ir.ExprOr:
		r = truth(x != 0 || y != 0)
	}
	if k.IsArith() || k == ir.ExprMin || k == ir.ExprMax {
		r = ir.WrapInt(et, r)
	}
	out.Ints[i] = r
}

func uintLane(k ir.ExprKind, et ir.Type, out Value, i int, x, y uint64) {
	var r uint64
	switch k {
	case ir.ExprAdd:
		r = x + y
	case ir.ExprSub:
		r = x - y
	case ir.ExprMul:
		r = x * y
	case ir.ExprDiv:
		if y != 0 {
			r = x / y
		}
	case ir.ExprMod:
		if y != 0 {
			r = x % y
		}
	case ir.ExprMin:
		r = min(x, y)
	case ir.ExprMax:
		r = max(x, y)
	default:
		out.Ints[i] = compareUint(k, x, y)
		return
	}
	out.Ints[i] = int64(r)
}

func compareUint(k ir.ExprKind, x, y uint64) int64 {
	switch k {
	case ir.ExprEQ:
		return truth(x == y)
	case ir.ExprNE:
		return truth(x != y)
	case ir.ExprLT:
		return truth(x < y)
	case ir.ExprLE:
		return truth(x <= y)
	case ir.ExprGT:
		return truth(x > y)
	case ir.ExprGE:
		return truth(x >= y)
	}
	return 0
}

func floatLane(k ir.ExprKind, et ir.Type, out Value, i int, x, y float64) {
	var r float64
	switch k {
	case ir.ExprAdd:
		r = x + y
	case ir.ExprSub:
		r = x - y
	case ir.ExprMul:
		r = x * y
	case ir.ExprDiv:
		r = x / y
	case ir.ExprMod:
		r = simplify.FloatMod(x, y)
	case ir.ExprMin:
		r = math.Min(x, y)
	case ir.ExprMax:
		r = math.Max(x, y)
	case ir.ExprEQ:
		out.Ints[i] = truth(x == y)
		return
	case ir.ExprNE:
		out.Ints[i] = truth(x != y)
		return
	case ir.ExprLT:
		out.Ints[i] = truth(x < y)
		return
	case ir.ExprLE:
		out.Ints[i] = truth(x <= y)
		return
	case ir.ExprGT:
		out.Ints[i] = truth(x > y)
		return
	case ir.ExprGE:
		out.Ints[i] = truth(x >= y)
		return
	}
	out.Floats[i] = round(et, r)
}

func ramp(t ir.Type, base, stride Value, lanes int) Value {
	out := newValue(t, lanes)
	et := t.Element()
	for i := range lanes {
		if et.IsFloat() {
			out.Floats[i] = round(et, base.Floats[0]+float64(i)*stride.Floats[0])
		} else {
			out.Ints[i] = ir.WrapInt(et, base.Ints[0]+int64(i)*stride.Ints[0])
		}
	}
	return out
}

// cast converts every lane of v to the element type t.
func cast(t ir.Type, v Value) Value {
	t = t.Element()
	from := v.Type.Element()
	if from == t {
		return v
	}
	n := v.Lanes()
	out := newValue(t, n)
	for i := range n {
		switch {
		case t.IsFloat() && from.IsFloat():
			out.Floats[i] = round(t, v.Floats[i])
		case t.IsFloat() && from.IsUInt() && from.Bits == 64:
			out.Floats[i] = round(t, float64(uint64(v.Ints[i])))
		case t.IsFloat():
			out.Floats[i] = round(t, float64(v.Ints[i]))
		case t.IsBool() && from.IsFloat():
			out.Ints[i] = truth(v.Floats[i] != 0)
		case t.IsBool():
			out.Ints[i] = truth(v.Ints[i] != 0)
		case from.IsFloat():
			f := math.Trunc(v.Floats[i])
			if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
				f = 0
			}
			out.Ints[i] = ir.WrapInt(t, int64(f))
		default:
			out.Ints[i] = ir.WrapInt(t, v.Ints[i])
		}
	}
	return out
}
