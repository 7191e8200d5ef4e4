package simplify

import (
	"loopopt/internal/ir"
)

// offset splits e = base + k for an integer literal k.
func offset(e *ir.Expr) (base *ir.Expr, k *ir.Expr, ok bool) {
	if e.Kind != ir.ExprAdd {
		return nil, nil, false
	}
	d := e.Data.(ir.BinaryData)
	if _, isConst := intConst(d.B); !isConst {
		return nil, nil, false
	}
	return d.A, d.B, true
}

// scaled splits e = base * k for an integer literal k. Expressions that
// are not a product by a literal are their own base with scale one.
func scaled(e *ir.Expr) (base *ir.Expr, k int64, isMul bool) {
	if e.Kind == ir.ExprMul {
		d := e.Data.(ir.BinaryData)
		if c, ok := intConst(d.B); ok {
			return d.A, c, true
		}
	}
	return e, 1, false
}

// constArmSelect returns e if it is a select between two literals.
func constArmSelect(e *ir.Expr) (ir.SelectData, bool) {
	if e.Kind != ir.ExprSelect {
		return ir.SelectData{}, false
	}
	d := e.Data.(ir.SelectData)
	return d, ir.IsConst(d.True) && ir.IsConst(d.False)
}

func isIntArith(t ir.Type) bool { return t.Element().IsIntLike() }

func negConst(c *ir.Expr) *ir.Expr { return fold(ir.ExprSub, ir.Zero(c.Type), c) }

func infSign(e *ir.Expr) int {
	switch {
	case ir.IsPosInf(e):
		return 1
	case ir.IsNegInf(e):
		return -1
	}
	return 0
}

func (s *Simplifier) neg(e *ir.Expr) *ir.Expr { return s.sub(ir.Zero(e.Type), e) }

func (s *Simplifier) add(a, b *ir.Expr) *ir.Expr {
	switch sa, sb := infSign(a), infSign(b); {
	case sa != 0 && sb != 0:
		if sa == sb {
			return a
		}
		return ir.Add(a, b)
	case sa != 0:
		return a
	case sb != 0:
		return b
	}
	if r := fold(ir.ExprAdd, a, b); r != nil {
		return r
	}
	if ir.IsConst(a) && !ir.IsConst(b) {
		a, b = b, a
	}
	if ir.IsZero(b) {
		return a
	}
	if r := s.vectorAdd(a, b); r != nil {
		return r
	}
	if !isIntArith(a.Type) {
		return ir.Add(a, b)
	}
	if ir.IsConst(b) {
		if x, k, ok := offset(a); ok {
			return s.add(x, fold(ir.ExprAdd, k, b))
		}
		if a.Kind == ir.ExprSub {
			d := a.Data.(ir.BinaryData)
			if ir.IsConst(d.A) {
				return s.sub(fold(ir.ExprAdd, d.A, b), d.B)
			}
		}
		if d, ok := constArmSelect(a); ok {
			return s.selectExpr(d.Cond, s.add(d.True, b), s.add(d.False, b))
		}
		return ir.Add(a, b)
	}
	if x, k, ok := offset(a); ok {
		return s.add(s.add(x, b), k)
	}
	if y, k, ok := offset(b); ok {
		return s.add(s.add(a, y), k)
	}
	if a.Kind == ir.ExprSub {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.B, b) {
			return d.A
		}
		if ir.IsConst(d.A) {
			return s.add(s.sub(b, d.B), d.A)
		}
	}
	if b.Kind == ir.ExprSub {
		d := b.Data.(ir.BinaryData)
		if ir.Equal(d.B, a) {
			return d.A
		}
	}
	if ir.Equal(a, b) {
		return s.mul(a, ir.Const(a.Type, 2))
	}
	ma, ka, amul := scaled(a)
	mb, kb, bmul := scaled(b)
	if (amul || bmul) && ir.Equal(ma, mb) {
		return s.mul(ma, ir.Const(a.Type, ka+kb))
	}
	return ir.Add(a, b)
}

func (s *Simplifier) vectorAdd(a, b *ir.Expr) *ir.Expr {
	switch {
	case a.Kind == ir.ExprRamp && b.Kind == ir.ExprRamp:
		ra, rb := a.Data.(ir.RampData), b.Data.(ir.RampData)
		return s.ramp(s.add(ra.Base, rb.Base), s.add(ra.Stride, rb.Stride), ra.Lanes)
	case a.Kind == ir.ExprRamp && b.Kind == ir.ExprBroadcast:
		ra := a.Data.(ir.RampData)
		return s.ramp(s.add(ra.Base, b.Data.(ir.BroadcastData).Value), ra.Stride, ra.Lanes)
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprRamp:
		return s.vectorAdd(b, a)
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast:
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.add(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	return nil
}

func (s *Simplifier) sub(a, b *ir.Expr) *ir.Expr {
	switch sa, sb := infSign(a), infSign(b); {
	case sa != 0 && sb != 0:
		if sa != sb {
			return a
		}
		return ir.Sub(a, b)
	case sa != 0:
		return a
	case sb != 0:
		return ir.Inf(a.Type, sb > 0)
	}
	if r := fold(ir.ExprSub, a, b); r != nil {
		return r
	}
	if ir.IsZero(b) {
		return a
	}
	if r := s.vectorSub(a, b); r != nil {
		return r
	}
	if !isIntArith(a.Type) {
		if ir.IsConst(b) {
			return s.add(a, negConst(b))
		}
		return ir.Sub(a, b)
	}
	if ir.Equal(a, b) {
		return ir.Zero(a.Type)
	}
	if ir.IsConst(b) {
		return s.add(a, negConst(b))
	}
	if a.Kind == ir.ExprAdd {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.A, b) {
			return d.B
		}
		if ir.Equal(d.B, b) {
			return d.A
		}
	}
	if b.Kind == ir.ExprAdd {
		d := b.Data.(ir.BinaryData)
		if ir.Equal(d.A, a) {
			return s.neg(d.B)
		}
		if ir.Equal(d.B, a) {
			return s.neg(d.A)
		}
	}
	if x, k, ok := offset(a); ok {
		return s.add(s.sub(x, b), k)
	}
	if y, k, ok := offset(b); ok {
		return s.add(s.sub(a, y), negConst(k))
	}
	if b.Kind == ir.ExprSub {
		d := b.Data.(ir.BinaryData)
		if ir.IsConst(a) && ir.IsConst(d.A) {
			return s.add(d.B, fold(ir.ExprSub, a, d.A))
		}
		if ir.Equal(d.A, a) {
			return d.B
		}
	}
	if a.Kind == ir.ExprSub {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.A, b) {
			return s.neg(d.B)
		}
	}
	if noOverflow(a.Type.Element()) {
		if r := s.subMinMax(a, b); r != nil {
			return r
		}
	}
	ma, ka, amul := scaled(a)
	mb, kb, bmul := scaled(b)
	if (amul || bmul) && ir.Equal(ma, mb) {
		return s.mul(ma, ir.Const(a.Type, ka-kb))
	}
	return ir.Sub(a, b)
}

// subMinMax cancels a term shared between a min or max and the other
// operand of a subtraction.
func (s *Simplifier) subMinMax(a, b *ir.Expr) *ir.Expr {
	zero := ir.Zero(a.Type)
	if b.Kind == ir.ExprMin || b.Kind == ir.ExprMax {
		d := b.Data.(ir.BinaryData)
		other := (*ir.Expr)(nil)
		switch {
		case ir.Equal(d.A, a):
			other = d.B
		case ir.Equal(d.B, a):
			other = d.A
		}
		if other != nil {
			// x - min(x, y) -> max(x - y, 0), x - max(x, y) -> min(x - y, 0)
			flip := ir.ExprMax
			if b.Kind == ir.ExprMax {
				flip = ir.ExprMin
			}
			return s.minmax(flip, s.sub(a, other), zero)
		}
	}
	if a.Kind == ir.ExprMin || a.Kind == ir.ExprMax {
		d := a.Data.(ir.BinaryData)
		other := (*ir.Expr)(nil)
		switch {
		case ir.Equal(d.A, b):
			other = d.B
		case ir.Equal(d.B, b):
			other = d.A
		}
		if other != nil {
			// min(x, y) - x -> min(y - x, 0)
			return s.minmax(a.Kind, s.sub(other, b), zero)
		}
	}
	return nil
}

func (s *Simplifier) vectorSub(a, b *ir.Expr) *ir.Expr {
	switch {
	case a.Kind == ir.ExprRamp && b.Kind == ir.ExprRamp:
		ra, rb := a.Data.(ir.RampData), b.Data.(ir.RampData)
		return s.ramp(s.sub(ra.Base, rb.Base), s.sub(ra.Stride, rb.Stride), ra.Lanes)
	case a.Kind == ir.ExprRamp && b.Kind == ir.ExprBroadcast:
		ra := a.Data.(ir.RampData)
		return s.ramp(s.sub(ra.Base, b.Data.(ir.BroadcastData).Value), ra.Stride, ra.Lanes)
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprRamp:
		rb := b.Data.(ir.RampData)
		return s.ramp(s.sub(a.Data.(ir.BroadcastData).Value, rb.Base), s.neg(rb.Stride), rb.Lanes)
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast:
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.sub(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	return nil
}

func (s *Simplifier) mul(a, b *ir.Expr) *ir.Expr {
	if ir.IsInf(a) && !ir.IsInf(b) {
		a, b = b, a
	}
	if ir.IsInf(b) {
		sign := infSign(b)
		switch {
		case ir.IsInf(a):
			sign *= infSign(a)
		case ir.IsPositiveConst(a):
		case ir.IsNegativeConst(a):
			sign = -sign
		case ir.IsZero(a):
			return a
		default:
			return ir.Mul(a, b)
		}
		return ir.Inf(b.Type, sign < 0)
	}
	if r := fold(ir.ExprMul, a, b); r != nil {
		return r
	}
	if ir.IsConst(a) && !ir.IsConst(b) {
		a, b = b, a
	}
	if ir.IsOne(b) {
		return a
	}
	if isIntArith(a.Type) && ir.IsZero(b) {
		return b
	}
	switch {
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast:
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.mul(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	case a.Kind == ir.ExprRamp && b.Kind == ir.ExprBroadcast:
		ra := a.Data.(ir.RampData)
		v := b.Data.(ir.BroadcastData).Value
		return s.ramp(s.mul(ra.Base, v), s.mul(ra.Stride, v), ra.Lanes)
	case a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprRamp:
		return s.mul(b, a)
	}
	if !isIntArith(a.Type) {
		return ir.Mul(a, b)
	}
	if ir.IsConst(b) {
		if x, k, ok := scaled(a); ok {
			return s.mul(x, fold(ir.ExprMul, ir.Const(a.Type, k), b))
		}
		if x, k, ok := offset(a); ok {
			return s.add(s.mul(x, b), fold(ir.ExprMul, k, b))
		}
		if a.Kind == ir.ExprSub {
			d := a.Data.(ir.BinaryData)
			if ir.IsConst(d.A) {
				return s.sub(fold(ir.ExprMul, d.A, b), s.mul(d.B, b))
			}
		}
		if d, ok := constArmSelect(a); ok {
			return s.selectExpr(d.Cond, s.mul(d.True, b), s.mul(d.False, b))
		}
		return ir.Mul(a, b)
	}
	if x, k, ok := scaled(a); ok {
		return s.mul(s.mul(x, b), ir.Const(a.Type, k))
	}
	if y, k, ok := scaled(b); ok {
		return s.mul(s.mul(a, y), ir.Const(a.Type, k))
	}
	return ir.Mul(a, b)
}

func (s *Simplifier) div(a, b *ir.Expr) *ir.Expr {
	if ir.IsInf(a) {
		switch {
		case ir.IsPositiveConst(b):
			return a
		case ir.IsNegativeConst(b):
			return ir.Inf(a.Type, !ir.IsNegInf(a))
		}
		return ir.Div(a, b)
	}
	if r := fold(ir.ExprDiv, a, b); r != nil {
		return r
	}
	if ir.IsOne(b) {
		return a
	}
	if !isIntArith(a.Type) {
		return ir.Div(a, b)
	}
	if ir.IsZero(a) {
		return a
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.div(ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	c, ok := intConst(b)
	if !ok || c == 0 {
		return ir.Div(a, b)
	}
	if c > 0 {
		r := s.rangeOf(a)
		if r.HasLo && r.HasHi && DivEuclid(r.Lo, c) == DivEuclid(r.Hi, c) {
			return ir.Const(a.Type, DivEuclid(r.Lo, c))
		}
	}
	if !noOverflow(a.Type.Element()) {
		return ir.Div(a, b)
	}
	if c == -1 {
		return s.neg(a)
	}
	divides := func(e *ir.Expr) (int64, bool) {
		k, ok := intConst(e)
		if !ok || k%c != 0 {
			return 0, false
		}
		return k / c, true
	}
	if x, k, ok := scaled(a); ok {
		if q, ok := divides(ir.Const(a.Type, k)); ok {
			return s.mul(x, ir.Const(a.Type, q))
		}
	}
	if x, k, ok := offset(a); ok {
		if q, ok := divides(k); ok {
			return s.add(s.div(x, b), ir.Const(a.Type, q))
		}
	}
	if a.Kind == ir.ExprAdd {
		d := a.Data.(ir.BinaryData)
		if x, k, ok := scaled(d.A); ok && k%c == 0 {
			return s.add(s.mul(x, ir.Const(a.Type, k/c)), s.div(d.B, b))
		}
		if x, k, ok := scaled(d.B); ok && k%c == 0 {
			return s.add(s.div(d.A, b), s.mul(x, ir.Const(a.Type, k/c)))
		}
	}
	if a.Kind == ir.ExprDiv && c > 0 {
		d := a.Data.(ir.BinaryData)
		if c1, ok := intConst(d.B); ok && c1 > 0 {
			if p, ok := mulOK(c1, c); ok && ir.WrapInt(a.Type.Element(), p) == p {
				return s.div(d.A, ir.Const(a.Type, p))
			}
		}
	}
	if a.Kind == ir.ExprRamp {
		d := a.Data.(ir.RampData)
		if k, ok := intConst(d.Stride); ok && k%c == 0 {
			return s.ramp(s.div(d.Base, ir.Const(d.Base.Type, c)), ir.Const(d.Base.Type, k/c), d.Lanes)
		}
	}
	return ir.Div(a, b)
}

func (s *Simplifier) mod(a, b *ir.Expr) *ir.Expr {
	if r := fold(ir.ExprMod, a, b); r != nil {
		return r
	}
	if !isIntArith(a.Type) {
		return ir.Mod(a, b)
	}
	c, ok := intConst(b)
	if !ok {
		return ir.Mod(a, b)
	}
	if c == 1 || c == -1 || c == 0 {
		return ir.Zero(a.Type)
	}
	m := max(c, -c)
	if r := s.rangeOf(a); r.HasLo && r.HasHi && m > 0 {
		if r.Lo >= 0 && r.Hi < m {
			return a
		}
	}
	if !noOverflow(a.Type.Element()) {
		return ir.Mod(a, b)
	}
	if _, k, ok := scaled(a); ok && k%c == 0 {
		return ir.Zero(a.Type)
	}
	if x, k, ok := offset(a); ok {
		if kv, _ := intConst(k); kv%c == 0 {
			return s.mod(x, b)
		}
	}
	if a.Kind == ir.ExprAdd {
		d := a.Data.(ir.BinaryData)
		if _, k, ok := scaled(d.A); ok && k%c == 0 {
			return s.mod(d.B, b)
		}
		if _, k, ok := scaled(d.B); ok && k%c == 0 {
			return s.mod(d.A, b)
		}
	}
	if a.Kind == ir.ExprMod {
		d := a.Data.(ir.BinaryData)
		if c1, ok := intConst(d.B); ok && c1%c == 0 {
			return s.mod(d.A, b)
		}
	}
	return ir.Mod(a, b)
}

func (s *Simplifier) minmax(k ir.ExprKind, a, b *ir.Expr) *ir.Expr {
	isMax := k == ir.ExprMax
	// The infinity that absorbs everything for this kind.
	absorb, identity := ir.IsNegInf, ir.IsPosInf
	if isMax {
		absorb, identity = ir.IsPosInf, ir.IsNegInf
	}
	switch {
	case absorb(a):
		return a
	case absorb(b):
		return b
	case identity(a):
		return b
	case identity(b):
		return a
	}
	if r := fold(k, a, b); r != nil {
		return r
	}
	if ir.IsConst(a) && !ir.IsConst(b) {
		a, b = b, a
	}
	if ir.Equal(a, b) {
		return a
	}
	if a.Kind == ir.ExprBroadcast && b.Kind == ir.ExprBroadcast {
		ba := a.Data.(ir.BroadcastData)
		return ir.Broadcast(s.minmax(k, ba.Value, b.Data.(ir.BroadcastData).Value), ba.Lanes)
	}
	// pick returns the operand a min (or max) selects when a <= b.
	pick := func(aLE bool) *ir.Expr {
		if aLE != isMax {
			return a
		}
		return b
	}
	if isIntArith(a.Type) {
		ra, rb := s.rangeOf(a), s.rangeOf(b)
		if ra.HasHi && rb.HasLo && ra.Hi <= rb.Lo {
			return pick(true)
		}
		if rb.HasHi && ra.HasLo && rb.Hi <= ra.Lo {
			return pick(false)
		}
		if noOverflow(a.Type.Element()) && !ir.IsConst(b) {
			rd := s.rangeOf(s.sub(a, b))
			if rd.HasHi && rd.Hi <= 0 {
				return pick(true)
			}
			if rd.HasLo && rd.Lo >= 0 {
				return pick(false)
			}
		}
	}
	other := ir.ExprMin
	if !isMax {
		other = ir.ExprMax
	}
	if ir.IsConst(b) {
		if a.Kind == k {
			d := a.Data.(ir.BinaryData)
			if ir.IsConst(d.B) {
				return s.minmax(k, d.A, fold(k, d.B, b))
			}
		}
		if a.Kind == other {
			// min(max(x, c1), c2) with c2 <= c1 is c2.
			d := a.Data.(ir.BinaryData)
			if ir.IsConst(d.B) {
				cmp := ir.ExprLE
				if isMax {
					cmp = ir.ExprGE
				}
				if ir.IsTrue(fold(cmp, b, d.B)) {
					return b
				}
			}
		}
		return ir.Binary(k, a, b)
	}
	if a.Kind == other {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.A, b) || ir.Equal(d.B, b) {
			return b
		}
	}
	if b.Kind == other {
		d := b.Data.(ir.BinaryData)
		if ir.Equal(d.A, a) || ir.Equal(d.B, a) {
			return a
		}
	}
	if a.Kind == k {
		d := a.Data.(ir.BinaryData)
		if ir.Equal(d.A, b) || ir.Equal(d.B, b) {
			return a
		}
		if ir.IsConst(d.B) {
			return s.minmax(k, s.minmax(k, d.A, b), d.B)
		}
	}
	if b.Kind == k {
		d := b.Data.(ir.BinaryData)
		if ir.Equal(d.A, a) || ir.Equal(d.B, a) {
			return b
		}
		if ir.IsConst(d.B) {
			return s.minmax(k, s.minmax(k, a, d.A), d.B)
		}
	}
	return ir.Binary(k, a, b)
}
