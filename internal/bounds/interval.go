// Package bounds provides closed symbolic intervals and bounds inference
// for expressions whose free variables range over known intervals.
package bounds

import (
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// Interval is a closed range [Min, Max]. An unbounded side holds an
// infinity sentinel. The interval is empty when Min is +inf or Max is
// -inf.
type Interval struct {
	Min, Max *ir.Expr
}

// Everything returns (-inf, +inf).
func Everything() Interval { return Interval{Min: ir.NegInf(), Max: ir.PosInf()} }

// Nothing returns the canonical empty interval.
func Nothing() Interval { return Interval{Min: ir.PosInf(), Max: ir.NegInf()} }

// Single returns [e, e].
func Single(e *ir.Expr) Interval { return Interval{Min: e, Max: e} }

// Between returns [lo, hi].
func Between(lo, hi *ir.Expr) Interval { return Interval{Min: lo, Max: hi} }

func (i Interval) HasLowerBound() bool { return !ir.IsNegInf(i.Min) }

func (i Interval) HasUpperBound() bool { return !ir.IsPosInf(i.Max) }

func (i Interval) IsBounded() bool { return i.HasLowerBound() && i.HasUpperBound() }

func (i Interval) IsEmpty() bool { return ir.IsPosInf(i.Min) || ir.IsNegInf(i.Max) }

func (i Interval) IsEverything() bool { return ir.IsNegInf(i.Min) && ir.IsPosInf(i.Max) }

// IsSinglePoint reports whether both ends are the same finite expression.
func (i Interval) IsSinglePoint() bool {
	return !ir.IsInf(i.Min) && ir.Equal(i.Min, i.Max)
}

// Equal compares both ends structurally.
func (i Interval) Equal(o Interval) bool {
	return ir.Equal(i.Min, o.Min) && ir.Equal(i.Max, o.Max)
}

func (i Interval) String() string {
	return "[" + ir.FormatExpr(i.Min) + ", " + ir.FormatExpr(i.Max) + "]"
}

// Simplified returns the interval with both finite ends simplified.
func (i Interval) Simplified() Interval {
	return Interval{Min: simplifyEnd(i.Min), Max: simplifyEnd(i.Max)}
}

func simplifyEnd(e *ir.Expr) *ir.Expr {
	if e == nil || ir.IsInf(e) {
		return e
	}
	return simplify.Expr(e)
}

// MaxOf is max(a, b) over the extended integers.
func MaxOf(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsPosInf(a), ir.IsPosInf(b):
		return ir.PosInf()
	case ir.IsNegInf(a):
		return b
	case ir.IsNegInf(b):
		return a
	case ir.Equal(a, b):
		return a
	}
	return ir.Max(a, b)
}

// MinOf is min(a, b) over the extended integers.
func MinOf(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsNegInf(a), ir.IsNegInf(b):
		return ir.NegInf()
	case ir.IsPosInf(a):
		return b
	case ir.IsPosInf(b):
		return a
	case ir.Equal(a, b):
		return a
	}
	return ir.Min(a, b)
}

// Intersect returns the values in both a and b.
func Intersect(a, b Interval) Interval {
	return Interval{Min: MaxOf(a.Min, b.Min), Max: MinOf(a.Max, b.Max)}
}

// Union returns the smallest interval containing a and b. Empty operands
// contribute nothing.
func Union(a, b Interval) Interval {
	switch {
	case a.IsEmpty():
		return b
	case b.IsEmpty():
		return a
	}
	return Interval{Min: MinOf(a.Min, b.Min), Max: MaxOf(a.Max, b.Max)}
}
