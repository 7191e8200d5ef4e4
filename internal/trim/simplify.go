package trim

import (
	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/relax"
	"loopopt/internal/simplify"
	"loopopt/internal/solve"
)

type containingLoop struct {
	name string
	i    bounds.Interval
}

// SimplifyUsingBounds folds the comparisons, Min and Max nodes of s that
// are decided for every point of the domain formed by v ranging over i
// and the loops and lets nested inside s. The domain may be
// non-rectangular: inner loop bounds may mention outer loop variables.
func SimplifyUsingBounds(s *ir.Stmt, v string, i bounds.Interval) *ir.Stmt {
	b := &boundsSimplifier{loops: []containingLoop{{v, i}}}
	return b.stmt(s)
}

type boundsSimplifier struct {
	loops []containingLoop
}

// provable reports whether test holds over the whole domain. Variables
// are eliminated innermost first, simplifying in between so that inner
// bounds can cancel against outer variables.
func (b *boundsSimplifier) provable(test *ir.Expr) bool {
	for k := len(b.loops) - 1; k >= 0; k-- {
		loop := b.loops[k]
		if ir.IsConst(test) {
			break
		}
		if !ir.UsesVar(test, loop.name) {
			continue
		}
		i := loop.i
		switch {
		case i.IsBounded() && simplify.CanProve(ir.EQ(i.Min, i.Max)):
			test = simplify.CSE(ir.Let(loop.name, i.Min, test))
		case i.IsBounded() && simplify.CanProve(ir.GE(i.Min, i.Max)):
			// Either one point or an empty domain, where anything holds.
			test = simplify.CSE(ir.Or(ir.Let(loop.name, i.Min, test), ir.Let(loop.name, i.Max, test)))
		default:
			if solved, ok := solve.Expr(test, loop.name, ir.NewScope[*ir.Expr]()); ok {
				test = solved
			}
			scope := ir.NewScope[bounds.Interval]()
			scope.Push(loop.name, i)
			test, _ = relax.AndOverDomain(test, scope)
		}
		test = simplify.Expr(test)
	}
	return ir.IsTrue(simplify.Expr(test))
}

func (b *boundsSimplifier) expr(e *ir.Expr) *ir.Expr {
	switch e.Kind {
	case ir.ExprMin, ir.ExprMax:
		a, c, _ := e.Binary()
		a, c = b.expr(a), b.expr(c)
		if e.Type.IsInt() && e.Type.Bits >= 32 && e.Type.IsScalar() {
			lo, hi := a, c
			if e.Kind == ir.ExprMax {
				lo, hi = c, a
			}
			// min(a, c) is a when a <= c everywhere; max(a, c) is a when
			// c <= a everywhere.
			if b.provable(ir.LE(lo, hi)) {
				return a
			}
			if b.provable(ir.LE(hi, lo)) {
				return c
			}
		}
		return ir.Binary(e.Kind, a, c)
	case ir.ExprEQ, ir.ExprNE, ir.ExprLT, ir.ExprLE, ir.ExprGT, ir.ExprGE:
		r := ir.MutateChildren(e, b.expr)
		if !r.Type.IsScalar() {
			return r
		}
		if b.provable(r) {
			return ir.True()
		}
		if b.provable(ir.Not(r)) {
			return ir.False()
		}
		return r
	case ir.ExprLet:
		d := e.Data.(ir.LetData)
		value := b.expr(d.Value)
		b.loops = append(b.loops, containingLoop{d.Name, bounds.Single(value)})
		body := b.expr(d.Body)
		b.loops = b.loops[:len(b.loops)-1]
		return ir.Let(d.Name, value, body)
	}
	return ir.MutateChildren(e, b.expr)
}

func (b *boundsSimplifier) stmt(s *ir.Stmt) *ir.Stmt {
	if s == nil {
		return nil
	}
	switch d := s.Data.(type) {
	case ir.ForData:
		mn, ext := b.expr(d.Min), b.expr(d.Extent)
		b.loops = append(b.loops, containingLoop{d.Name, bounds.Between(mn, ir.Sub(ir.Add(mn, ext), ir.One(mn.Type)))})
		body := b.stmt(d.Body)
		b.loops = b.loops[:len(b.loops)-1]
		return ir.For(d.Name, mn, ext, d.Kind, body)
	case ir.LetStmtData:
		value := b.expr(d.Value)
		b.loops = append(b.loops, containingLoop{d.Name, bounds.Single(value)})
		body := b.stmt(d.Body)
		b.loops = b.loops[:len(b.loops)-1]
		return ir.LetStmt(d.Name, value, body)
	}
	return ir.MutateStmtChildren(s, b.expr, b.stmt)
}
