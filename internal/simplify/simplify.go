// Package simplify rewrites expressions and statements into a smaller
// canonical form: constants are folded, constants move to the right of
// commutative operators, offsets are collected, and comparisons that the
// known variable ranges decide become literals.
package simplify

import (
	"loopopt/internal/ir"
)

// Simplifier holds the constant ranges of variables in scope. Ranges
// come from enclosing loops, lets and explicit Bind calls.
type Simplifier struct {
	bounds *ir.Scope[Range]
	frames []*frame
}

// frame memoizes results for one scope state.
type frame struct {
	exprs  map[*ir.Expr]*ir.Expr
	ranges map[*ir.Expr]Range
}

// New returns a Simplifier with no variable ranges.
func New() *Simplifier {
	return &Simplifier{bounds: ir.NewScope[Range]()}
}

// Expr simplifies e using a fresh Simplifier.
func Expr(e *ir.Expr) *ir.Expr { return New().Expr(e) }

// Stmt simplifies s using a fresh Simplifier.
func Stmt(s *ir.Stmt) *ir.Stmt { return New().Stmt(s) }

// CanProve reports whether e simplifies to true. A false result means
// only that the proof failed.
func CanProve(e *ir.Expr) bool { return New().CanProve(e) }

// Bind records that name ranges over r until the matching Unbind.
func (s *Simplifier) Bind(name string, r Range) { s.bounds.Push(name, r) }

// Unbind drops the innermost range recorded for name.
func (s *Simplifier) Unbind(name string) { s.bounds.Pop(name) }

// Expr simplifies e.
func (s *Simplifier) Expr(e *ir.Expr) *ir.Expr {
	if e == nil {
		return nil
	}
	s.pushFrame()
	defer s.popFrame()
	return s.mutate(e)
}

// CanProve reports whether e simplifies to true under the recorded ranges.
func (s *Simplifier) CanProve(e *ir.Expr) bool {
	return ir.IsTrue(s.Expr(e))
}

// RangeOf returns constant bounds on e under the recorded ranges.
func (s *Simplifier) RangeOf(e *ir.Expr) Range {
	s.pushFrame()
	defer s.popFrame()
	return s.rangeOf(e)
}

func (s *Simplifier) pushFrame() {
	s.frames = append(s.frames, &frame{
		exprs:  make(map[*ir.Expr]*ir.Expr),
		ranges: make(map[*ir.Expr]Range),
	})
}

func (s *Simplifier) popFrame() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *Simplifier) top() *frame {
	if len(s.frames) == 0 {
		s.pushFrame()
	}
	return s.frames[len(s.frames)-1]
}

func (s *Simplifier) mutate(e *ir.Expr) *ir.Expr {
	if e == nil {
		return nil
	}
	f := s.top()
	if r, ok := f.exprs[e]; ok {
		return r
	}
	r := s.visit(e)
	f.exprs[e] = r
	return r
}

func (s *Simplifier) visit(e *ir.Expr) *ir.Expr {
	switch d := e.Data.(type) {
	case ir.ConstData, ir.InfData:
		return e
	case ir.VarData:
		if r, ok := s.bounds.Get(d.Name); ok && r.IsPoint() && e.Type.IsIntLike() && e.Type.IsScalar() {
			return ir.Const(e.Type, r.Lo)
		}
		return e
	case ir.BinaryData:
		a, b := s.mutate(d.A), s.mutate(d.B)
		return s.binary(e.Kind, a, b)
	case ir.UnaryData:
		a := s.mutate(d.A)
		if e.Kind == ir.ExprNot {
			return s.not(a)
		}
		if a == d.A {
			return e
		}
		return ir.Likely(a)
	case ir.SelectData:
		return s.selectExpr(s.mutate(d.Cond), s.mutate(d.True), s.mutate(d.False))
	case ir.LetData:
		return s.let(e, d)
	case ir.LoadData, ir.CallData:
		r := ir.MutateChildren(e, s.mutate)
		if e.Kind == ir.ExprCall {
			return s.call(r)
		}
		return r
	case ir.RampData:
		return s.ramp(s.mutate(d.Base), s.mutate(d.Stride), d.Lanes)
	case ir.BroadcastData:
		v := s.mutate(d.Value)
		if v == d.Value {
			return e
		}
		return ir.Broadcast(v, d.Lanes)
	case ir.CastData:
		return s.cast(e.Type.Element(), s.mutate(d.Value))
	}
	return e
}

// binary dispatches to the rewrite rules for k. Operands are already
// simplified.
func (s *Simplifier) binary(k ir.ExprKind, a, b *ir.Expr) *ir.Expr {
	switch k {
	case ir.ExprAdd:
		return s.add(a, b)
	case ir.ExprSub:
		return s.sub(a, b)
	case ir.ExprMul:
		return s.mul(a, b)
	case ir.ExprDiv:
		return s.div(a, b)
	case ir.ExprMod:
		return s.mod(a, b)
	case ir.ExprMin, ir.ExprMax:
		return s.minmax(k, a, b)
	case ir.ExprEQ:
		return s.eq(a, b)
	case ir.ExprNE:
		return s.ne(a, b)
	case ir.ExprLT, ir.ExprLE, ir.ExprGT, ir.ExprGE:
		return s.compare(k, a, b)
	case ir.ExprAnd:
		return s.and(a, b)
	case ir.ExprOr:
		return s.or(a, b)
	}
	ir.Internalf("simplify: unexpected binary kind %s", k)
	return nil
}

// substitutable reports whether a let value is cheap enough to copy into
// every use.
func substitutable(v *ir.Expr) bool {
	switch v.Kind {
	case ir.ExprConst, ir.ExprVar, ir.ExprInf:
		return true
	case ir.ExprBroadcast:
		return substitutable(v.Data.(ir.BroadcastData).Value)
	case ir.ExprRamp:
		d := v.Data.(ir.RampData)
		return substitutable(d.Base) && ir.IsConst(d.Stride)
	}
	return false
}

// rebinds reports whether body introduces a let named name, which would
// capture a substituted variable of that name.
func rebinds(body *ir.Expr, name string) bool {
	return ir.Any(body, func(x *ir.Expr) bool {
		return x.Kind == ir.ExprLet && x.Data.(ir.LetData).Name == name
	})
}

func freeVarsCaptured(value, body *ir.Expr) bool {
	captured := false
	ir.Any(value, func(x *ir.Expr) bool {
		if x.Kind == ir.ExprVar && rebinds(body, x.VarName()) {
			captured = true
		}
		return captured
	})
	return captured
}

func (s *Simplifier) let(e *ir.Expr, d ir.LetData) *ir.Expr {
	value := s.mutate(d.Value)
	if substitutable(value) && !freeVarsCaptured(value, d.Body) {
		return s.mutate(ir.Substitute(d.Body, d.Name, value))
	}
	s.bounds.Push(d.Name, s.rangeOf(value))
	s.pushFrame()
	body := s.mutate(d.Body)
	s.popFrame()
	s.bounds.Pop(d.Name)
	if !ir.UsesVar(body, d.Name) {
		return body
	}
	if value == d.Value && body == d.Body {
		return e
	}
	return ir.Let(d.Name, value, body)
}

func (s *Simplifier) ramp(base, stride *ir.Expr, lanes int) *ir.Expr {
	if ir.IsZero(stride) {
		return ir.Broadcast(base, lanes)
	}
	return ir.Ramp(base, stride, lanes)
}

func (s *Simplifier) cast(t ir.Type, v *ir.Expr) *ir.Expr {
	if v.Type.Element() == t {
		return v
	}
	if c := foldCast(t, v); c != nil {
		return c
	}
	if v.Kind == ir.ExprBroadcast {
		bd := v.Data.(ir.BroadcastData)
		return ir.Broadcast(s.cast(t, bd.Value), bd.Lanes)
	}
	// Casting back through a wider integer type is the identity.
	if v.Kind == ir.ExprCast {
		inner := v.Data.(ir.CastData).Value
		if inner.Type.Element() == t && t.IsIntLike() && v.Type.IsIntLike() &&
			fits(typeRange(t), typeRange(v.Type.Element())) {
			return inner
		}
	}
	return ir.Cast(t, v)
}

// call folds lane extraction from vectors built by Ramp and Broadcast.
func (s *Simplifier) call(e *ir.Expr) *ir.Expr {
	d := e.Data.(ir.CallData)
	if d.Name != ExtractLane || len(d.Args) != 2 {
		return e
	}
	vec, lane := d.Args[0], d.Args[1]
	switch vec.Kind {
	case ir.ExprBroadcast:
		return vec.Data.(ir.BroadcastData).Value
	case ir.ExprRamp:
		rd := vec.Data.(ir.RampData)
		return s.add(rd.Base, s.mul(rd.Stride, s.cast(rd.Base.Type, lane)))
	}
	return e
}

// ExtractLane names the pure intrinsic extract_lane(vector, lane).
const ExtractLane = "extract_lane"
