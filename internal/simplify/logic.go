package simplify

import (
	"math"

	"loopopt/internal/ir"
)

// decide returns the literal value of "a k b" given constant bounds on
// both sides, or nil when the bounds overlap.
func decide(k ir.ExprKind, t ir.Type, ra, rb Range) *ir.Expr {
	lt := ra.HasHi && rb.HasLo && ra.Hi < rb.Lo  // a < b always
	le := ra.HasHi && rb.HasLo && ra.Hi <= rb.Lo // a <= b always
	gt := rb.HasHi && ra.HasLo && rb.Hi < ra.Lo  // a > b always
	ge := rb.HasHi && ra.HasLo && rb.Hi <= ra.Lo // a >= b always
	var yes, no bool
	switch k {
	case ir.ExprLT:
		yes, no = lt, ge
	case ir.ExprLE:
		yes, no = le, gt
	case ir.ExprGT:
		yes, no = gt, le
	case ir.ExprGE:
		yes, no = ge, lt
	case ir.ExprEQ:
		yes, no = ra.IsPoint() && rb.IsPoint() && ra.Lo == rb.Lo, lt || gt
	case ir.ExprNE:
		yes, no = lt || gt, ra.IsPoint() && rb.IsPoint() && ra.Lo == rb.Lo
	}
	switch {
	case yes:
		return ir.BoolConst(t, true)
	case no:
		return ir.BoolConst(t, false)
	}
	return nil
}

func (s *Simplifier) compare(k ir.ExprKind, a, b *ir.Expr) *ir.Expr {
	bt := ir.Bool().WithLanes(int(max(a.Type.Lanes, b.Type.Lanes)))
	if ir.IsInf(a) || ir.IsInf(b) {
		ra, rb := Point(int64(infSign(a))), Point(int64(infSign(b)))
		if ra.Lo != rb.Lo || infSign(a) != 0 {
			return decide(k, bt, ra, rb)
		}
	}
	if r := fold(k, a, b); r != nil {
		return r
	}
	if ir.Equal(a, b) {
		return ir.BoolConst(bt, k == ir.ExprLE || k == ir.ExprGE)
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.compare(k, ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	if !isIntArith(a.Type) {
		return ir.Binary(k, a, b)
	}
	if r := decide(k, bt, s.rangeOf(a), s.rangeOf(b)); r != nil {
		return r
	}
	if !noOverflow(a.Type.Element()) {
		return ir.Binary(k, a, b)
	}
	if r := decide(k, bt, s.rangeOf(s.sub(a, b)), Point(0)); r != nil {
		return r
	}
	if x, c, ok := offset(a); ok {
		return s.compare(k, x, s.sub(b, c))
	}
	if ir.IsConst(a) {
		if y, c, ok := offset(b); ok {
			return s.compare(k, fold(ir.ExprSub, a, c), y)
		}
	}
	if r := s.compareMinMax(k, a, b); r != nil {
		return r
	}
	return ir.Binary(k, a, b)
}

// compareMinMax drops the operand of a min or max that a comparison
// against its other operand makes irrelevant:
//
//	max(x, y) <= y  ->  x <= y
//	min(x, y) >= y  ->  x >= y
//	y <= min(x, y)  ->  y <= x
//	y >= max(x, y)  ->  y >= x
func (s *Simplifier) compareMinMax(k ir.ExprKind, a, b *ir.Expr) *ir.Expr {
	other := func(mm *ir.Expr, kind ir.ExprKind, v *ir.Expr) *ir.Expr {
		if mm.Kind != kind {
			return nil
		}
		d := mm.Data.(ir.BinaryData)
		switch {
		case ir.Equal(d.B, v):
			return d.A
		case ir.Equal(d.A, v):
			return d.B
		}
		return nil
	}
	switch k {
	case ir.ExprLE:
		if x := other(a, ir.ExprMax, b); x != nil {
			return s.compare(k, x, b)
		}
		if x := other(b, ir.ExprMin, a); x != nil {
			return s.compare(k, a, x)
		}
	case ir.ExprGE:
		if x := other(a, ir.ExprMin, b); x != nil {
			return s.compare(k, x, b)
		}
		if x := other(b, ir.ExprMax, a); x != nil {
			return s.compare(k, a, x)
		}
	}
	return nil
}

func (s *Simplifier) eq(a, b *ir.Expr) *ir.Expr {
	bt := ir.Bool().WithLanes(int(max(a.Type.Lanes, b.Type.Lanes)))
	if ir.IsInf(a) || ir.IsInf(b) {
		return ir.BoolConst(bt, infSign(a) == infSign(b))
	}
	if r := fold(ir.ExprEQ, a, b); r != nil {
		return r
	}
	if ir.Equal(a, b) {
		return ir.BoolConst(bt, true)
	}
	if ir.IsConst(a) && !ir.IsConst(b) {
		a, b = b, a
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.eq(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	if a.Type.IsBool() && a.Type.Lanes == b.Type.Lanes {
		switch {
		case ir.IsTrue(b):
			return a
		case ir.IsFalse(b):
			return s.not(a)
		}
	}
	if isIntArith(a.Type) {
		if r := s.eqInt(a, b, bt); r != nil {
			return r
		}
	}
	if r := s.eqSelect(a, b); r != nil {
		return r
	}
	return ir.EQ(a, b)
}

// eqInt rearranges integer equalities. Every rewrite holds in wrapping
// arithmetic too.
func (s *Simplifier) eqInt(a, b *ir.Expr, bt ir.Type) *ir.Expr {
	if r := decide(ir.ExprEQ, bt, s.rangeOf(a), s.rangeOf(b)); r != nil {
		return r
	}
	if noOverflow(a.Type.Element()) {
		if r := decide(ir.ExprEQ, bt, s.rangeOf(s.sub(a, b)), Point(0)); r != nil {
			return r
		}
	}
	zero := ir.Zero(a.Type)
	if x, k, ok := offset(a); ok {
		return s.eq(x, s.sub(b, k))
	}
	if ir.IsConst(b) {
		if b.Kind == ir.ExprConst && ir.IsZero(b) && a.Kind == ir.ExprSub {
			d := a.Data.(ir.BinaryData)
			return s.eq(d.A, d.B)
		}
		return nil
	}
	// a == a + y  ->  y == 0
	if b.Kind == ir.ExprAdd {
		d := b.Data.(ir.BinaryData)
		if ir.Equal(d.A, a) {
			return s.eq(d.B, zero)
		}
		if ir.Equal(d.B, a) {
			return s.eq(d.A, zero)
		}
	}
	if a.Kind == ir.ExprAdd {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.A, b) {
			return s.eq(d.B, zero)
		}
		if ir.Equal(d.B, b) {
			return s.eq(d.A, zero)
		}
	}
	return nil
}

// eqSelect pushes an equality into a select when that decides at least
// one arm. A select with literal arms nested directly under arithmetic
// is lifted first.
func (s *Simplifier) eqSelect(a, b *ir.Expr) *ir.Expr {
	try := func(sel, other *ir.Expr) *ir.Expr {
		if sel == nil || sel.Kind != ir.ExprSelect {
			return nil
		}
		d := sel.Data.(ir.SelectData)
		et, ef := s.eq(d.True, other), s.eq(d.False, other)
		if !ir.IsConst(et) && !ir.IsConst(ef) {
			return nil
		}
		return s.selectExpr(d.Cond, et, ef)
	}
	if r := try(a, b); r != nil {
		return r
	}
	if r := try(b, a); r != nil {
		return r
	}
	if r := try(s.liftSelect(a), b); r != nil {
		return r
	}
	return try(s.liftSelect(b), a)
}

// liftSelect rewrites x op select(c, k1, k2) into
// select(c, x op k1, x op k2) for literal k1 and k2.
func (s *Simplifier) liftSelect(e *ir.Expr) *ir.Expr {
	if !e.Kind.IsArith() {
		return nil
	}
	d := e.Data.(ir.BinaryData)
	if sd, ok := constArmSelect(d.B); ok && sd.Cond.Type.Lanes == e.Type.Lanes {
		return s.selectExpr(sd.Cond, s.binary(e.Kind, d.A, sd.True), s.binary(e.Kind, d.A, sd.False))
	}
	if sd, ok := constArmSelect(d.A); ok && sd.Cond.Type.Lanes == e.Type.Lanes {
		return s.selectExpr(sd.Cond, s.binary(e.Kind, sd.True, d.B), s.binary(e.Kind, sd.False, d.B))
	}
	return nil
}

func (s *Simplifier) ne(a, b *ir.Expr) *ir.Expr {
	r := s.eq(a, b)
	switch {
	case ir.IsConst(r):
		return s.not(r)
	case r.Kind == ir.ExprEQ:
		d := r.Data.(ir.BinaryData)
		return ir.NE(d.A, d.B)
	}
	return s.not(r)
}

// negated maps a comparison kind to the kind of its negation.
var negated = map[ir.ExprKind]ir.ExprKind{
	ir.ExprLT: ir.ExprGE,
	ir.ExprLE: ir.ExprGT,
	ir.ExprGT: ir.ExprLE,
	ir.ExprGE: ir.ExprLT,
	ir.ExprEQ: ir.ExprNE,
	ir.ExprNE: ir.ExprEQ,
}

func (s *Simplifier) not(a *ir.Expr) *ir.Expr {
	if c := ir.ScalarConst(a); c != nil {
		return ir.BoolConst(a.Type, c.Data.(ir.ConstData).Int == 0)
	}
	switch d := a.Data.(type) {
	case ir.UnaryData:
		if a.Kind == ir.ExprNot {
			return d.A
		}
	case ir.BinaryData:
		if k, ok := negated[a.Kind]; ok {
			return ir.Binary(k, d.A, d.B)
		}
		switch a.Kind {
		case ir.ExprAnd:
			return s.or(s.not(d.A), s.not(d.B))
		case ir.ExprOr:
			return s.and(s.not(d.A), s.not(d.B))
		}
	case ir.BroadcastData:
		return ir.Broadcast(s.not(d.Value), d.Lanes)
	}
	return ir.Not(a)
}

// bound describes a comparison of an integer expression against a
// literal, normalized to x <= Hi or x >= Lo.
type bound struct {
	x     *ir.Expr
	v     int64
	upper bool
}

func asBound(e *ir.Expr) (bound, bool) {
	a, b, ok := e.Binary()
	if !ok || !e.Kind.IsCompare() || !noOverflow(a.Type) || a.Type.IsVector() {
		return bound{}, false
	}
	if c, ok := intConst(b); ok && !ir.IsConst(a) {
		switch e.Kind {
		case ir.ExprLT:
			if c > math.MinInt64 {
				return bound{a, c - 1, true}, true
			}
		case ir.ExprLE:
			return bound{a, c, true}, true
		case ir.ExprGT:
			if c < math.MaxInt64 {
				return bound{a, c + 1, false}, true
			}
		case ir.ExprGE:
			return bound{a, c, false}, true
		}
	}
	return bound{}, false
}

func (b bound) expr() *ir.Expr {
	c := ir.Const(b.x.Type, b.v)
	if b.upper {
		return ir.LE(b.x, c)
	}
	return ir.GE(b.x, c)
}

func (s *Simplifier) and(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsFalse(a):
		return a
	case ir.IsFalse(b):
		return b
	case ir.IsTrue(a):
		return b
	case ir.IsTrue(b):
		return a
	case ir.Equal(a, b):
		return a
	}
	if isNegation(a, b) {
		return ir.BoolConst(a.Type, false)
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.and(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	if ba, ok := asBound(a); ok {
		if bb, ok := asBound(b); ok && ir.Equal(ba.x, bb.x) {
			switch {
			case ba.upper && bb.upper:
				return bound{ba.x, min(ba.v, bb.v), true}.expr()
			case !ba.upper && !bb.upper:
				return bound{ba.x, max(ba.v, bb.v), false}.expr()
			}
			lo, hi := ba.v, bb.v
			if ba.upper {
				lo, hi = bb.v, ba.v
			}
			if lo > hi {
				return ir.BoolConst(a.Type, false)
			}
			if lo == hi {
				return s.eq(ba.x, ir.Const(ba.x.Type, lo))
			}
		}
	}
	return ir.And(a, b)
}

func (s *Simplifier) or(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsTrue(a):
		return a
	case ir.IsTrue(b):
		return b
	case ir.IsFalse(a):
		return b
	case ir.IsFalse(b):
		return a
	case ir.Equal(a, b):
		return a
	}
	if isNegation(a, b) {
		return ir.BoolConst(a.Type, true)
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.or(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	if ba, ok := asBound(a); ok {
		if bb, ok := asBound(b); ok && ir.Equal(ba.x, bb.x) {
			switch {
			case ba.upper && bb.upper:
				return bound{ba.x, max(ba.v, bb.v), true}.expr()
			case !ba.upper && !bb.upper:
				return bound{ba.x, min(ba.v, bb.v), false}.expr()
			}
			lo, hi := ba.v, bb.v
			if ba.upper {
				lo, hi = bb.v, ba.v
			}
			// x <= hi || x >= lo covers everything when lo <= hi + 1.
			if hi < math.MaxInt64 && lo <= hi+1 {
				return ir.BoolConst(a.Type, true)
			}
		}
	}
	return ir.Or(a, b)
}

// isNegation reports whether one operand is the logical negation of the
// other.
func isNegation(a, b *ir.Expr) bool {
	if a.Kind == ir.ExprNot && ir.Equal(a.Operand(), b) {
		return true
	}
	if b.Kind == ir.ExprNot && ir.Equal(b.Operand(), a) {
		return true
	}
	if k, ok := negated[a.Kind]; ok && b.Kind == k {
		a1, a2, _ := a.Binary()
		b1, b2, _ := b.Binary()
		return ir.Equal(a1, b1) && ir.Equal(a2, b2)
	}
	return false
}

func (s *Simplifier) selectExpr(c, t, f *ir.Expr) *ir.Expr {
	switch {
	case ir.IsTrue(c):
		return t
	case ir.IsFalse(c):
		return f
	case ir.Equal(t, f):
		return t
	}
	if c.Kind == ir.ExprNot {
		return s.selectExpr(c.Operand(), f, t)
	}
	if t.Kind == ir.ExprSelect {
		if d := t.Data.(ir.SelectData); ir.Equal(d.Cond, c) {
			return s.selectExpr(c, d.True, f)
		}
	}
	if f.Kind == ir.ExprSelect {
		if d := f.Data.(ir.SelectData); ir.Equal(d.Cond, c) {
			return s.selectExpr(c, t, d.False)
		}
	}
	if t.Type.IsBool() && c.Type.Lanes == t.Type.Lanes {
		switch {
		case ir.IsTrue(t) && ir.IsFalse(f):
			return c
		case ir.IsFalse(t) && ir.IsTrue(f):
			return s.not(c)
		case ir.IsFalse(f):
			return s.and(c, t)
		case ir.IsTrue(f):
			return s.or(s.not(c), t)
		case ir.IsTrue(t):
			return s.or(c, f)
		case ir.IsFalse(t):
			return s.and(s.not(c), f)
		}
	}
	return ir.Select(c, t, f)
}
