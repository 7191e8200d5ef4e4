package bounds

import (
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// Of returns an interval containing every value e takes when each
// variable bound in scope ranges over its interval. Subexpressions that
// use no scoped variable are their own single point. Vector expressions
// are bounded over all of their lanes. The ends are simplified.
func Of(e *ir.Expr, scope *ir.Scope[Interval]) Interval {
	b := inferrer{scope: scope}
	return b.of(e).Simplified()
}

type inferrer struct {
	scope *ir.Scope[Interval]
}

func (b *inferrer) of(e *ir.Expr) Interval {
	if !ir.UsesScope(e, b.scope) {
		return Single(e)
	}
	switch d := e.Data.(type) {
	case ir.VarData:
		if i, ok := b.scope.Get(d.Name); ok {
			return i
		}
		return Single(e)
	case ir.UnaryData:
		if e.Kind == ir.ExprLikely {
			return b.of(d.A)
		}
		return b.boolRange(e)
	case ir.BinaryData:
		return b.binary(e, d)
	case ir.SelectData:
		return Union(b.of(d.True), b.of(d.False))
	case ir.LetData:
		b.scope.Push(d.Name, b.of(d.Value))
		r := b.of(d.Body)
		b.scope.Pop(d.Name)
		return r
	case ir.BroadcastData:
		return b.of(d.Value)
	case ir.RampData:
		base := b.of(d.Base)
		last := b.of(ir.Mul(d.Stride, ir.Const(d.Stride.Type, int64(d.Lanes-1))))
		zero := ir.Zero(d.Base.Type)
		return Interval{
			Min: add(base.Min, MinOf(last.Min, zero), true),
			Max: add(base.Max, MaxOf(last.Max, zero), false),
		}
	case ir.CastData:
		if !castPreservesOrder(d.Value.Type, e.Type) {
			return Everything()
		}
		v := b.of(d.Value)
		return Interval{Min: castEnd(e.Type, v.Min), Max: castEnd(e.Type, v.Max)}
	}
	if e.Type.IsBool() {
		return b.boolRange(e)
	}
	return Everything()
}

func (b *inferrer) boolRange(e *ir.Expr) Interval {
	return Between(ir.BoolConst(e.Type.Element(), false), ir.BoolConst(e.Type.Element(), true))
}

func (b *inferrer) binary(e *ir.Expr, d ir.BinaryData) Interval {
	if e.Type.IsBool() {
		return b.boolRange(e)
	}
	ia, ib := b.of(d.A), b.of(d.B)
	switch e.Kind {
	case ir.ExprAdd:
		return Interval{Min: add(ia.Min, ib.Min, true), Max: add(ia.Max, ib.Max, false)}
	case ir.ExprSub:
		return Interval{Min: sub(ia.Min, ib.Max, true), Max: sub(ia.Max, ib.Min, false)}
	case ir.ExprMul:
		return mul(ia, ib)
	case ir.ExprDiv:
		return div(ia, ib)
	case ir.ExprMod:
		return mod(e.Type, ib)
	case ir.ExprMin:
		return Interval{Min: MinOf(ia.Min, ib.Min), Max: MinOf(ia.Max, ib.Max)}
	case ir.ExprMax:
		return Interval{Min: MaxOf(ia.Min, ib.Min), Max: MaxOf(ia.Max, ib.Max)}
	}
	return Everything()
}

func unbounded(lower bool) *ir.Expr {
	if lower {
		return ir.NegInf()
	}
	return ir.PosInf()
}

func add(a, b *ir.Expr, lower bool) *ir.Expr {
	if ir.IsInf(a) || ir.IsInf(b) {
		return unbounded(lower)
	}
	return ir.Add(a, b)
}

func sub(a, b *ir.Expr, lower bool) *ir.Expr {
	if ir.IsInf(a) || ir.IsInf(b) {
		return unbounded(lower)
	}
	return ir.Sub(a, b)
}

func mul(ia, ib Interval) Interval {
	if ia.IsSinglePoint() && !ib.IsSinglePoint() {
		ia, ib = ib, ia
	}
	if ib.IsSinglePoint() {
		c := ib.Min
		switch {
		case ir.IsZero(c):
			return Single(c)
		case ir.IsPositiveConst(c):
			return Interval{Min: scale(ia.Min, c, true), Max: scale(ia.Max, c, false)}
		case ir.IsNegativeConst(c):
			return Interval{Min: scale(ia.Max, c, true), Max: scale(ia.Min, c, false)}
		}
	}
	if !ia.IsBounded() || !ib.IsBounded() {
		return Everything()
	}
	p := []*ir.Expr{
		ir.Mul(ia.Min, ib.Min), ir.Mul(ia.Min, ib.Max),
		ir.Mul(ia.Max, ib.Min), ir.Mul(ia.Max, ib.Max),
	}
	return Interval{
		Min: ir.Min(ir.Min(p[0], p[1]), ir.Min(p[2], p[3])),
		Max: ir.Max(ir.Max(p[0], p[1]), ir.Max(p[2], p[3])),
	}
}

func scale(e, c *ir.Expr, lower bool) *ir.Expr {
	if ir.IsInf(e) {
		return unbounded(lower)
	}
	return ir.Mul(e, c)
}

// div bounds euclidean division by a literal, which is monotone in the
// dividend: non-decreasing for a positive divisor, non-increasing for a
// negative one.
func div(ia, ib Interval) Interval {
	if !ib.IsSinglePoint() {
		return Everything()
	}
	c := ib.Min
	quo := func(e *ir.Expr, lower bool) *ir.Expr {
		if ir.IsInf(e) {
			return unbounded(lower)
		}
		return ir.Div(e, c)
	}
	switch {
	case ir.IsPositiveConst(c):
		return Interval{Min: quo(ia.Min, true), Max: quo(ia.Max, false)}
	case ir.IsNegativeConst(c):
		return Interval{Min: quo(ia.Max, true), Max: quo(ia.Min, false)}
	case ir.IsZero(c):
		return Single(c)
	}
	return Everything()
}

// mod bounds the euclidean remainder, which lies in [0, |b| - 1].
func mod(t ir.Type, ib Interval) Interval {
	if !t.Element().IsIntLike() {
		return Everything()
	}
	zero := ir.Zero(t.Element())
	if ib.IsSinglePoint() {
		if c, ok := ir.AsInt(ib.Min); ok {
			if c < 0 {
				c = -c
			}
			return Between(zero, ir.Const(t.Element(), max(c-1, 0)))
		}
	}
	if ib.IsBounded() && simplify.CanProve(ir.GE(ib.Min, zero)) {
		return Between(zero, ir.Max(ir.Sub(ib.Max, ir.One(t.Element())), zero))
	}
	return Interval{Min: zero, Max: ir.PosInf()}
}

// castPreservesOrder reports whether every value of from converts to to
// without wrapping.
func castPreservesOrder(from, to ir.Type) bool {
	f, t := from.Element(), to.Element()
	switch {
	case t.IsFloat():
		return !f.IsBool()
	case f.IsInt() && t.IsInt(), f.IsUInt() && t.IsUInt():
		return t.Bits >= f.Bits
	case f.IsUInt() && t.IsInt():
		return t.Bits > f.Bits
	}
	return false
}

func castEnd(t ir.Type, e *ir.Expr) *ir.Expr {
	if ir.IsInf(e) {
		return e
	}
	return ir.Cast(t.Element(), e)
}
