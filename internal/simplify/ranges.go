package simplify

import (
	"math"

	"loopopt/internal/ir"
)

// Range is a constant bound on the values of an integer expression.
// A side whose Has flag is false is unbounded.
type Range struct {
	Lo, Hi       int64
	HasLo, HasHi bool
}

// Point returns the range holding exactly v.
func Point(v int64) Range { return Range{Lo: v, Hi: v, HasLo: true, HasHi: true} }

// Between returns the range [lo, hi].
func Between(lo, hi int64) Range { return Range{Lo: lo, Hi: hi, HasLo: true, HasHi: true} }

// IsPoint reports whether the range holds a single value.
func (r Range) IsPoint() bool { return r.HasLo && r.HasHi && r.Lo == r.Hi }

func typeRange(t ir.Type) Range {
	switch {
	case t.IsBool():
		return Between(0, 1)
	case t.IsInt() && t.Bits < 64 && t.Bits > 0:
		return Between(-(int64(1) << (t.Bits - 1)), int64(1)<<(t.Bits-1)-1)
	case t.IsUInt() && t.Bits < 64 && t.Bits > 0:
		return Between(0, int64(1)<<t.Bits-1)
	case t.IsUInt():
		return Range{Lo: 0, HasLo: true}
	}
	return Range{}
}

// noOverflow reports whether arithmetic in t is treated as exact.
// Narrow and unsigned integers wrap, so their arithmetic results only
// get the bounds of the type.
func noOverflow(t ir.Type) bool {
	return t.IsInt() && t.Bits >= 32
}

func addOK(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func subOK(a, b int64) (int64, bool) {
	if b == math.MinInt64 {
		return 0, false
	}
	return addOK(a, -b)
}

func mulOK(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func rangeUnion(a, b Range) Range {
	var r Range
	if a.HasLo && b.HasLo {
		r.Lo, r.HasLo = min(a.Lo, b.Lo), true
	}
	if a.HasHi && b.HasHi {
		r.Hi, r.HasHi = max(a.Hi, b.Hi), true
	}
	return r
}

func rangeIntersect(a, b Range) Range {
	r := a
	if b.HasLo && (!r.HasLo || b.Lo > r.Lo) {
		r.Lo, r.HasLo = b.Lo, true
	}
	if b.HasHi && (!r.HasHi || b.Hi < r.Hi) {
		r.Hi, r.HasHi = b.Hi, true
	}
	return r
}

func rangeAdd(a, b Range) Range {
	var r Range
	if a.HasLo && b.HasLo {
		r.Lo, r.HasLo = addOK(a.Lo, b.Lo)
	}
	if a.HasHi && b.HasHi {
		r.Hi, r.HasHi = addOK(a.Hi, b.Hi)
	}
	return r
}

func rangeSub(a, b Range) Range {
	var r Range
	if a.HasLo && b.HasHi {
		r.Lo, r.HasLo = subOK(a.Lo, b.Hi)
	}
	if a.HasHi && b.HasLo {
		r.Hi, r.HasHi = subOK(a.Hi, b.Lo)
	}
	return r
}

func rangeMul(a, b Range) Range {
	if b.IsPoint() {
		a, b = b, a
	}
	if a.IsPoint() {
		k := a.Lo
		var r Range
		lo, hi, hasLo, hasHi := b.Lo, b.Hi, b.HasLo, b.HasHi
		if k < 0 {
			lo, hi, hasLo, hasHi = b.Hi, b.Lo, b.HasHi, b.HasLo
		}
		if k == 0 {
			return Point(0)
		}
		if hasLo {
			r.Lo, r.HasLo = mulOK(lo, k)
		}
		if hasHi {
			r.Hi, r.HasHi = mulOK(hi, k)
		}
		return r
	}
	if !(a.HasLo && a.HasHi && b.HasLo && b.HasHi) {
		return Range{}
	}
	r := Range{Lo: math.MaxInt64, Hi: math.MinInt64, HasLo: true, HasHi: true}
	for _, x := range [2]int64{a.Lo, a.Hi} {
		for _, y := range [2]int64{b.Lo, b.Hi} {
			p, ok := mulOK(x, y)
			if !ok {
				return Range{}
			}
			r.Lo, r.Hi = min(r.Lo, p), max(r.Hi, p)
		}
	}
	return r
}

func rangeDivConst(a Range, k int64) Range {
	var r Range
	switch {
	case k > 0:
		if a.HasLo {
			r.Lo, r.HasLo = DivEuclid(a.Lo, k), true
		}
		if a.HasHi {
			r.Hi, r.HasHi = DivEuclid(a.Hi, k), true
		}
	case k < 0 && k != math.MinInt64:
		// Euclidean division by a negative divisor negates the floored
		// quotient by its magnitude.
		if a.HasHi {
			r.Lo, r.HasLo = -DivEuclid(a.Hi, -k), true
		}
		if a.HasLo {
			r.Hi, r.HasHi = -DivEuclid(a.Lo, -k), true
		}
	}
	return r
}

func rangeModConst(a Range, k int64) Range {
	if k == 0 {
		return Point(0)
	}
	if k == math.MinInt64 {
		return Range{Lo: 0, HasLo: true}
	}
	m := max(k, -k)
	if a.HasLo && a.HasHi && a.Lo >= 0 && a.Hi < m {
		return a
	}
	return Between(0, m-1)
}

func rangeMin(a, b Range) Range {
	var r Range
	if a.HasLo && b.HasLo {
		r.Lo, r.HasLo = min(a.Lo, b.Lo), true
	}
	switch {
	case a.HasHi && b.HasHi:
		r.Hi, r.HasHi = min(a.Hi, b.Hi), true
	case a.HasHi:
		r.Hi, r.HasHi = a.Hi, true
	case b.HasHi:
		r.Hi, r.HasHi = b.Hi, true
	}
	return r
}

func rangeMax(a, b Range) Range {
	var r Range
	if a.HasHi && b.HasHi {
		r.Hi, r.HasHi = max(a.Hi, b.Hi), true
	}
	switch {
	case a.HasLo && b.HasLo:
		r.Lo, r.HasLo = max(a.Lo, b.Lo), true
	case a.HasLo:
		r.Lo, r.HasLo = a.Lo, true
	case b.HasLo:
		r.Lo, r.HasLo = b.Lo, true
	}
	return r
}

// rangeOf computes constant bounds of an integer expression using the
// known ranges of free variables. Non-integer expressions are unbounded.
func (s *Simplifier) rangeOf(e *ir.Expr) Range {
	if e == nil || !(e.Type.IsIntLike() || e.Type.IsBool()) {
		return Range{}
	}
	f := s.top()
	if r, ok := f.ranges[e]; ok {
		return r
	}
	r := s.computeRange(e)
	if tr := typeRange(e.Type); e.Kind != ir.ExprInf {
		r = rangeIntersect(r, tr)
	}
	f.ranges[e] = r
	return r
}

func (s *Simplifier) computeRange(e *ir.Expr) Range {
	exact := noOverflow(e.Type)
	switch d := e.Data.(type) {
	case ir.ConstData:
		if e.Type.IsUInt() && d.Int < 0 {
			return typeRange(e.Type)
		}
		return Point(d.Int)
	case ir.InfData:
		return Range{}
	case ir.VarData:
		if r, ok := s.bounds.Get(d.Name); ok {
			return r
		}
		return typeRange(e.Type)
	case ir.BinaryData:
		a, b := s.rangeOf(d.A), s.rangeOf(d.B)
		switch e.Kind {
		case ir.ExprAdd:
			if exact {
				return rangeAdd(a, b)
			}
		case ir.ExprSub:
			if exact {
				return rangeSub(a, b)
			}
		case ir.ExprMul:
			if exact {
				return rangeMul(a, b)
			}
		case ir.ExprDiv:
			if k, ok := intConst(d.B); ok && (exact || k > 0) {
				return rangeDivConst(a, k)
			}
		case ir.ExprMod:
			if k, ok := intConst(d.B); ok {
				return rangeModConst(a, k)
			}
			if b.HasHi && b.HasLo && b.Lo > 0 {
				return Between(0, b.Hi-1)
			}
		case ir.ExprMin:
			return rangeMin(a, b)
		case ir.ExprMax:
			return rangeMax(a, b)
		}
		return typeRange(e.Type)
	case ir.SelectData:
		return rangeUnion(s.rangeOf(d.True), s.rangeOf(d.False))
	case ir.UnaryData:
		if e.Kind == ir.ExprLikely {
			return s.rangeOf(d.A)
		}
	case ir.LetData:
		s.bounds.Push(d.Name, s.rangeOf(d.Value))
		s.pushFrame()
		r := s.rangeOf(d.Body)
		s.popFrame()
		s.bounds.Pop(d.Name)
		return r
	case ir.BroadcastData:
		return s.rangeOf(d.Value)
	case ir.RampData:
		if exact {
			base := s.rangeOf(d.Base)
			last := rangeMul(s.rangeOf(d.Stride), Point(int64(d.Lanes-1)))
			return rangeAdd(base, rangeUnion(Point(0), last))
		}
	case ir.CastData:
		if d.Value.Type.IsIntLike() || d.Value.Type.IsBool() {
			r := s.rangeOf(d.Value)
			tr := typeRange(e.Type)
			if fits(r, tr) {
				return r
			}
		}
	}
	return typeRange(e.Type)
}

// fits reports whether every value of r lies within t. An unbounded t
// side accepts anything.
func fits(r, t Range) bool {
	if t.HasLo && (!r.HasLo || r.Lo < t.Lo) {
		return false
	}
	if t.HasHi && (!r.HasHi || r.Hi > t.Hi) {
		return false
	}
	return true
}
