// Package solve isolates a variable within an expression and extracts the
// intervals of a variable over which a condition holds.
package solve

import (
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// Expr rewrites e so that every occurrence of v is merged into a single
// occurrence that is as far left and as far outward as possible. The
// result evaluates identically to e for every assignment of the other free
// variables. Variables bound in scope are expanded and solved along with
// e. Lets are inlined during solving and recollected afterwards by CSE.
//
// The boolean result is false when e has a shape the solver cannot
// rearrange, such as a product of two terms that both use v. In that case
// the returned expression is nil and must not be used.
func Expr(e *ir.Expr, v string, scope *ir.Scope[*ir.Expr]) (*ir.Expr, bool) {
	s := newSolver(v, scope)
	r, _ := s.mutate(e)
	if s.failed {
		return nil, false
	}
	return simplify.CSE(r), true
}

// solved is a rewritten expression together with whether it uses the
// variable being solved for.
type solved struct {
	expr    *ir.Expr
	usesVar bool
}

type solver struct {
	v        string
	failed   bool
	cache    *ir.ExprMap[solved]
	lets     *ir.Scope[solved]
	external *ir.Scope[*ir.Expr]
}

func newSolver(v string, external *ir.Scope[*ir.Expr]) *solver {
	return &solver{
		v:        v,
		cache:    ir.NewExprMap[solved](),
		lets:     ir.NewScope[solved](),
		external: external,
	}
}

func (s *solver) mutate(e *ir.Expr) (*ir.Expr, bool) {
	if s.failed {
		return e, false
	}
	if r, ok := s.cache.Get(e); ok {
		return r.expr, r.usesVar
	}
	r, uses := s.visit(e)
	s.cache.Set(e, solved{r, uses})
	return r, uses
}

func (s *solver) fail() { s.failed = true }

// negate returns -e without burying a literal multiplier under another
// multiplication.
func negate(e *ir.Expr) *ir.Expr {
	if a, b, ok := e.Binary(); ok && e.Kind == ir.ExprMul && ir.IsConst(b) {
		return ir.Mul(a, simplify.Expr(ir.Mul(ir.Const(b.Type, -1), b)))
	}
	return ir.Mul(e, ir.Const(e.Type, -1))
}

func (s *solver) visit(e *ir.Expr) (*ir.Expr, bool) {
	switch d := e.Data.(type) {
	case ir.VarData:
		return s.variable(e, d)
	case ir.UnaryData:
		if e.Kind == ir.ExprLikely {
			return s.mutate(d.A)
		}
	case ir.LetData:
		value, uses := s.mutate(d.Value)
		s.lets.Push(d.Name, solved{value, uses})
		body, bodyUses := s.mutate(d.Body)
		s.lets.Pop(d.Name)
		return body, bodyUses
	case ir.BinaryData:
		switch {
		case e.Kind == ir.ExprAdd:
			return s.add(e, d)
		case e.Kind == ir.ExprSub:
			return s.sub(e, d)
		case e.Kind == ir.ExprMul:
			return s.mul(e, d)
		case e.Kind == ir.ExprMin, e.Kind == ir.ExprMax, e.Kind == ir.ExprAnd, e.Kind == ir.ExprOr:
			return s.commutative(e, d)
		case e.Kind.IsCompare():
			return s.compare(e, d)
		}
	}
	uses := false
	r := ir.MutateChildren(e, func(c *ir.Expr) *ir.Expr {
		m, u := s.mutate(c)
		uses = uses || u
		return m
	})
	return r, uses
}

func (s *solver) variable(e *ir.Expr, d ir.VarData) (*ir.Expr, bool) {
	if d.Name == s.v {
		return e, true
	}
	if b, ok := s.lets.Get(d.Name); ok {
		return b.expr, b.usesVar
	}
	if x, ok := s.external.Get(d.Name); ok {
		// Bindings from the caller are solved on first use and then
		// served from the cache.
		return s.mutate(x)
	}
	return e, false
}

// operands mutates both operands of a binary node.
func (s *solver) operands(d ir.BinaryData) (a *ir.Expr, aUses bool, b *ir.Expr, bUses bool) {
	a, aUses = s.mutate(d.A)
	b, bUses = s.mutate(d.B)
	return a, aUses, b, bUses
}

// rebuild returns e itself when neither operand changed.
func rebuild(e *ir.Expr, d ir.BinaryData, a, b *ir.Expr) *ir.Expr {
	if a == d.A && b == d.B {
		return e
	}
	return ir.Binary(e.Kind, a, b)
}

func as(e *ir.Expr, k ir.ExprKind) (a, b *ir.Expr, ok bool) {
	if e.Kind != k {
		return nil, nil, false
	}
	return e.Binary()
}

func (s *solver) add(e *ir.Expr, d ir.BinaryData) (*ir.Expr, bool) {
	a, aUses, b, bUses := s.operands(d)
	uses := aUses || bUses
	if bUses && !aUses {
		a, b = b, a
		aUses, bUses = bUses, aUses
	}
	addA1, addA2, addA := as(a, ir.ExprAdd)
	addB1, addB2, addB := as(b, ir.ExprAdd)
	subA1, subA2, subA := as(a, ir.ExprSub)
	subB1, subB2, subB := as(b, ir.ExprSub)
	mulA1, mulA2, mulA := as(a, ir.ExprMul)
	mulB1, mulB2, mulB := as(b, ir.ExprMul)

	var r *ir.Expr
	switch {
	case aUses && !bUses:
		switch {
		case subA:
			// (f(x) - a) + b -> f(x) + (b - a)
			r, _ = s.mutate(ir.Add(subA1, ir.Sub(b, subA2)))
		case addA:
			// (f(x) + a) + b -> f(x) + (a + b)
			r, _ = s.mutate(ir.Add(addA1, ir.Add(addA2, b)))
		}
	case aUses && bUses:
		switch {
		case ir.Equal(a, b):
			r, _ = s.mutate(ir.Mul(a, ir.Const(a.Type, 2)))
		case addA:
			// (f(x) + a) + g(x) -> (f(x) + g(x)) + a
			r, _ = s.mutate(ir.Add(ir.Add(addA1, b), addA2))
		case addB:
			// f(x) + (g(x) + a) -> (f(x) + g(x)) + a
			r, _ = s.mutate(ir.Add(ir.Add(a, addB1), addB2))
		case subA:
			// (f(x) - a) + g(x) -> (f(x) + g(x)) - a
			r, _ = s.mutate(ir.Sub(ir.Add(subA1, b), subA2))
		case subB:
			// f(x) + (g(x) - a) -> (f(x) + g(x)) - a
			r, _ = s.mutate(ir.Sub(ir.Add(a, subB1), subB2))
		case mulA && mulB && ir.Equal(mulA1, mulB1):
			// f(x)*a + f(x)*b -> f(x)*(a + b)
			r, _ = s.mutate(ir.Mul(mulA1, ir.Add(mulA2, mulB2)))
		case mulA && mulB && ir.Equal(mulA2, mulB2):
			// f(x)*a + g(x)*a -> (f(x) + g(x))*a
			sum, _ := s.mutate(ir.Add(mulA1, mulB1))
			r = ir.Mul(sum, mulA2)
		case mulA && ir.Equal(mulA1, b):
			// f(x)*a + f(x) -> f(x)*(a + 1)
			r, _ = s.mutate(ir.Mul(b, ir.Add(mulA2, ir.One(mulA2.Type))))
		case mulB && ir.Equal(mulB1, a):
			// f(x) + f(x)*a -> f(x)*(a + 1)
			r, _ = s.mutate(ir.Mul(a, ir.Add(mulB2, ir.One(mulB2.Type))))
		default:
			s.fail()
		}
	default:
		if ir.IsConst(a) && ir.IsConst(b) {
			r = simplify.Expr(ir.Add(a, b))
		}
	}
	if r == nil {
		r = rebuild(e, d, a, b)
	}
	return r, uses
}

func (s *solver) sub(e *ir.Expr, d ir.BinaryData) (*ir.Expr, bool) {
	a, aUses, b, bUses := s.operands(d)
	uses := aUses || bUses
	addA1, addA2, addA := as(a, ir.ExprAdd)
	addB1, addB2, addB := as(b, ir.ExprAdd)
	subA1, subA2, subA := as(a, ir.ExprSub)
	subB1, subB2, subB := as(b, ir.ExprSub)
	mulA1, mulA2, mulA := as(a, ir.ExprMul)
	mulB1, mulB2, mulB := as(b, ir.ExprMul)

	var r *ir.Expr
	switch {
	case aUses && !bUses:
		switch {
		case subA:
			// (f(x) - a) - b -> f(x) - (a + b)
			r, _ = s.mutate(ir.Sub(subA1, ir.Add(subA2, b)))
		case addA:
			// (f(x) + a) - b -> f(x) + (a - b)
			r, _ = s.mutate(ir.Add(addA1, ir.Sub(addA2, b)))
		}
	case bUses && !aUses:
		switch {
		case subB:
			// a - (f(x) - b) -> -f(x) + (a + b)
			r, _ = s.mutate(ir.Add(negate(subB1), ir.Add(a, subB2)))
		case addB:
			// a - (f(x) + b) -> -f(x) + (a - b)
			r, _ = s.mutate(ir.Add(negate(addB1), ir.Sub(a, addB2)))
		default:
			r, _ = s.mutate(ir.Add(negate(b), a))
		}
	case aUses && bUses:
		switch {
		case addA:
			// (f(x) + a) - g(x) -> (f(x) - g(x)) + a
			r, _ = s.mutate(ir.Add(ir.Sub(addA1, b), addA2))
		case addB:
			// f(x) - (g(x) + a) -> (f(x) - g(x)) - a
			r, _ = s.mutate(ir.Sub(ir.Sub(a, addB1), addB2))
		case subA:
			// (f(x) - a) - g(x) -> (f(x) - g(x)) - a
			r, _ = s.mutate(ir.Sub(ir.Sub(subA1, b), subA2))
		case subB:
			// f(x) - (g(x) - a) -> (f(x) - g(x)) + a
			r, _ = s.mutate(ir.Add(ir.Sub(a, subB1), subB2))
		case mulA && mulB && ir.Equal(mulA1, mulB1):
			// f(x)*a - f(x)*b -> f(x)*(a - b)
			r, _ = s.mutate(ir.Mul(mulA1, ir.Sub(mulA2, mulB2)))
		case mulA && mulB && ir.Equal(mulA2, mulB2):
			// f(x)*a - g(x)*a -> (f(x) - g(x))*a
			r, _ = s.mutate(ir.Mul(ir.Sub(mulA1, mulB1), mulA2))
		default:
			s.fail()
		}
	default:
		if ir.IsConst(a) && ir.IsConst(b) {
			r = simplify.Expr(ir.Sub(a, b))
		}
	}
	if r == nil {
		r = rebuild(e, d, a, b)
	}
	return r, uses
}

func (s *solver) mul(e *ir.Expr, d ir.BinaryData) (*ir.Expr, bool) {
	a, aUses, b, bUses := s.operands(d)
	uses := aUses || bUses
	if bUses && !aUses {
		a, b = b, a
		aUses, bUses = bUses, aUses
	}
	var r *ir.Expr
	switch {
	case aUses && !bUses:
		if x, y, ok := as(a, ir.ExprAdd); ok {
			// (f(x) + a) * b -> f(x)*b + a*b
			r, _ = s.mutate(ir.Add(ir.Mul(x, b), ir.Mul(y, b)))
		} else if x, y, ok := as(a, ir.ExprSub); ok {
			// (f(x) - a) * b -> f(x)*b - a*b
			r, _ = s.mutate(ir.Sub(ir.Mul(x, b), ir.Mul(y, b)))
		} else if x, y, ok := as(a, ir.ExprMul); ok {
			// (f(x) * a) * b -> f(x) * (a*b)
			r, _ = s.mutate(ir.Mul(x, ir.Mul(y, b)))
		}
	case aUses && bUses:
		// Quadratic in the variable.
		s.fail()
	default:
		if ir.IsConst(a) && ir.IsConst(b) {
			r = simplify.Expr(ir.Mul(a, b))
		}
	}
	if r == nil {
		r = rebuild(e, d, a, b)
	}
	return r, uses
}

// commutative moves the operand that uses the variable to the left. Both
// operands using it cannot be merged.
func (s *solver) commutative(e *ir.Expr, d ir.BinaryData) (*ir.Expr, bool) {
	a, aUses, b, bUses := s.operands(d)
	switch {
	case bUses && !aUses:
		a, b = b, a
	case aUses && bUses:
		s.fail()
	}
	return rebuild(e, d, a, b), aUses || bUses
}

// opposite maps a comparison to the one that holds with its operands
// swapped.
var opposite = map[ir.ExprKind]ir.ExprKind{
	ir.ExprLT: ir.ExprGT,
	ir.ExprLE: ir.ExprGE,
	ir.ExprGT: ir.ExprLT,
	ir.ExprGE: ir.ExprLE,
	ir.ExprEQ: ir.ExprEQ,
	ir.ExprNE: ir.ExprNE,
}

func (s *solver) compare(e *ir.Expr, d ir.BinaryData) (*ir.Expr, bool) {
	k := e.Kind
	a, aUses, b, bUses := s.operands(d)
	uses := aUses || bUses
	if bUses && !aUses {
		return s.mutate(ir.Binary(opposite[k], b, a))
	}

	var r *ir.Expr
	switch {
	case aUses && !bUses:
		if x, y, ok := as(a, ir.ExprAdd); ok {
			// f(x) + y < z -> f(x) < z - y
			r, _ = s.mutate(ir.Binary(k, x, ir.Sub(b, y)))
		} else if x, y, ok := as(a, ir.ExprSub); ok {
			// f(x) - y < z -> f(x) < z + y
			r, _ = s.mutate(ir.Binary(k, x, ir.Add(b, y)))
		} else if x, c, ok := as(a, ir.ExprMul); ok {
			var rewritten *ir.Expr
			if a.Type.Element().IsFloat() {
				rewritten = floatScaled(k, x, c, b)
			} else {
				rewritten = intScaled(k, x, c, b)
			}
			if rewritten != nil {
				r, _ = s.mutate(rewritten)
			} else if k != ir.ExprEQ && k != ir.ExprNE && !a.Type.Element().IsFloat() {
				s.fail()
			}
		} else if x, c, ok := as(a, ir.ExprDiv); ok && a.Type.Element().IsIntLike() {
			if rewritten := intDivided(k, x, c, b); rewritten != nil {
				r, _ = s.mutate(rewritten)
			}
		}
	case aUses && bUses && a.Type.IsInt() && a.Type.Bits >= 32:
		// Only sound when the subtraction cannot overflow.
		r, _ = s.mutate(ir.Binary(k, ir.Sub(a, b), ir.Zero(a.Type)))
	}
	if r == nil {
		r = rebuild(e, d, a, b)
	}
	return r, uses
}

// floatScaled divides both sides of f*c OP b by c. Inequalities flip for a
// negative literal and are left alone for an unknown sign.
func floatScaled(k ir.ExprKind, f, c, b *ir.Expr) *ir.Expr {
	switch {
	case k == ir.ExprEQ || k == ir.ExprNE || ir.IsPositiveConst(c):
		return ir.Binary(k, f, ir.Div(b, c))
	case ir.IsNegativeConst(c):
		return ir.Binary(opposite[k], f, ir.Div(b, c))
	}
	return nil
}

// intScaled divides both sides of f*c OP b by a literal c, rounding so
// that the result holds for exactly the same integers f under euclidean
// division. It returns nil when c is not a literal.
func intScaled(k ir.ExprKind, f, c, b *ir.Expr) *ir.Expr {
	pos, neg := ir.IsPositiveConst(c), ir.IsNegativeConst(c)
	if !pos && !neg {
		return nil
	}
	one := ir.One(c.Type)
	quo := ir.Div(b, c)
	rem := ir.Mod(b, c)
	zero := ir.Zero(b.Type)
	switch k {
	case ir.ExprEQ:
		// f*c == b -> f == b/c && b%c == 0
		return ir.And(ir.EQ(f, quo), ir.EQ(rem, zero))
	case ir.ExprNE:
		// f*c != b -> f != b/c || b%c != 0
		return ir.Or(ir.NE(f, quo), ir.NE(rem, zero))
	case ir.ExprLE:
		if pos {
			return ir.LE(f, quo)
		}
		return ir.GE(f, quo)
	case ir.ExprLT:
		if pos {
			return ir.LT(f, ir.Div(ir.Add(b, ir.Sub(c, one)), c))
		}
		return ir.GT(f, ir.Div(ir.Sub(b, ir.Add(c, one)), c))
	case ir.ExprGT:
		if pos {
			return ir.GT(f, quo)
		}
		return ir.LT(f, quo)
	case ir.ExprGE:
		if pos {
			return ir.GE(f, ir.Div(ir.Add(b, ir.Sub(c, one)), c))
		}
		return ir.LE(f, ir.Div(ir.Sub(b, ir.Add(c, one)), c))
	}
	return nil
}

// intDivided multiplies out f/c OP b for a positive literal c. Equality
// is left alone since it holds for a whole residue class of f.
func intDivided(k ir.ExprKind, f, c, b *ir.Expr) *ir.Expr {
	if !ir.IsPositiveConst(c) {
		return nil
	}
	next := ir.Mul(ir.Add(b, ir.One(b.Type)), c)
	switch k {
	case ir.ExprLT:
		// f/c < b -> f < b*c
		return ir.LT(f, ir.Mul(b, c))
	case ir.ExprLE:
		// f/c <= b -> f < (b + 1)*c
		return ir.LT(f, next)
	case ir.ExprGE:
		// f/c >= b -> f >= b*c
		return ir.GE(f, ir.Mul(b, c))
	case ir.ExprGT:
		// f/c > b -> f >= (b + 1)*c
		return ir.GE(f, next)
	}
	return nil
}
