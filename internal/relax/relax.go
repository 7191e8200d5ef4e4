// Package relax removes variables from boolean conditions by widening each
// comparison to its worst case over the intervals the variables range
// over.
package relax

import (
	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// AndOverDomain returns a condition that mentions none of the variables
// bound in scope and that implies cond for every assignment of those
// variables inside their intervals. tight reports whether every comparison
// could be decided without widening either side.
//
// A vector condition is reduced to a scalar one that implies cond in every
// lane.
func AndOverDomain(cond *ir.Expr, scope *ir.Scope[bounds.Interval]) (*ir.Expr, bool) {
	ir.Assertf(cond.Type.IsBool(), "relax: condition %s is not boolean", cond)
	inner := ir.NewScope[bounds.Interval]()
	inner.SetContaining(scope)
	r := &relaxer{scope: inner, tight: true}
	if cond.Type.IsVector() {
		namer := ir.NewNamer()
		namer.ReserveExpr(cond)
		lane := ir.Var(namer.Fresh("lane"), ir.I32)
		lanes := int64(cond.Type.Lanes)
		inner.Push(lane.VarName(), bounds.Between(ir.IntImm(0), ir.IntImm(lanes-1)))
		cond = devectorize(cond, lane)
	}
	return simplify.Expr(r.visit(cond)), r.tight
}

// OrOverDomain is the dual of AndOverDomain: the result holds whenever
// cond holds for some assignment inside the intervals.
func OrOverDomain(cond *ir.Expr, scope *ir.Scope[bounds.Interval]) (*ir.Expr, bool) {
	r, tight := AndOverDomain(ir.Not(cond), scope)
	return simplify.Expr(ir.Not(r)), tight
}

// relaxer rewrites a scalar condition. Below an odd number of negations
// the rewritten subcondition must instead hold whenever the original
// holds somewhere, so the choice of bounds flips.
type relaxer struct {
	scope   *ir.Scope[bounds.Interval]
	flipped bool
	tight   bool
}

func (r *relaxer) visit(e *ir.Expr) *ir.Expr {
	if !ir.UsesScope(e, r.scope) {
		return e
	}
	switch e.Kind {
	case ir.ExprLikely:
		return r.visit(e.Operand())
	case ir.ExprNot:
		r.flipped = !r.flipped
		a := r.visit(e.Operand())
		r.flipped = !r.flipped
		return ir.Not(a)
	case ir.ExprAnd, ir.ExprOr:
		return ir.MutateChildren(e, r.visit)
	case ir.ExprLT, ir.ExprLE, ir.ExprGT, ir.ExprGE:
		return r.inequality(e)
	case ir.ExprEQ, ir.ExprNE:
		return r.equality(e)
	case ir.ExprLet:
		return r.let(e.Data.(ir.LetData))
	case ir.ExprSelect:
		d := e.Data.(ir.SelectData)
		return r.visit(ir.And(ir.Or(ir.Not(d.Cond), d.True), ir.Or(d.Cond, d.False)))
	}
	return r.opaque(e)
}

// bounds returns the interval of a comparison operand. An operand that
// is not a single point makes the result inexact.
func (r *relaxer) bounds(e *ir.Expr) bounds.Interval {
	i := bounds.Of(e, r.scope)
	if !i.IsSinglePoint() {
		r.tight = false
	}
	return i
}

func (r *relaxer) inequality(e *ir.Expr) *ir.Expr {
	a, b, _ := e.Binary()
	ia, ib := r.bounds(a), r.bounds(b)
	less := e.Kind == ir.ExprLT || e.Kind == ir.ExprLE
	var na, nb *ir.Expr
	if less != r.flipped {
		na, nb = ia.Max, ib.Min
	} else {
		na, nb = ia.Min, ib.Max
	}
	if ir.IsInf(na) || ir.IsInf(nb) {
		return ir.BoolConst(e.Type, r.flipped)
	}
	return ir.Binary(e.Kind, na, nb)
}

func (r *relaxer) equality(e *ir.Expr) *ir.Expr {
	a, b, _ := e.Binary()
	ia, ib := r.bounds(a), r.bounds(b)
	if ia.IsSinglePoint() && ib.IsSinglePoint() {
		return ir.Binary(e.Kind, ia.Min, ib.Min)
	}
	switch {
	case e.Kind == ir.ExprEQ && !r.flipped:
		return ir.False()
	case e.Kind == ir.ExprNE && r.flipped:
		return ir.True()
	case e.Kind == ir.ExprEQ:
		return ir.Not(separated(ia, ib))
	}
	return separated(ia, ib)
}

// separated returns a condition under which the two intervals share no
// point.
func separated(a, b bounds.Interval) *ir.Expr {
	below := func(x, y *ir.Expr) *ir.Expr {
		if ir.IsInf(x) || ir.IsInf(y) {
			return ir.False()
		}
		return ir.LT(x, y)
	}
	return ir.Or(below(a.Max, b.Min), below(b.Max, a.Min))
}

func (r *relaxer) let(d ir.LetData) *ir.Expr {
	if d.Value.Type.IsBool() && ir.UsesScope(d.Value, r.scope) {
		return r.visit(ir.Substitute(d.Body, d.Name, d.Value))
	}
	i := bounds.Of(d.Value, r.scope)
	if !i.IsSinglePoint() {
		r.scope.Push(d.Name, i)
		body := r.visit(d.Body)
		r.scope.Pop(d.Name)
		return body
	}
	// The value is fixed over the domain. Shadow any scoped variable of
	// the same name and keep the binding.
	r.scope.Push(d.Name, bounds.Single(ir.Var(d.Name, d.Value.Type)))
	body := r.visit(d.Body)
	r.scope.Pop(d.Name)
	if ir.UsesVar(body, d.Name) {
		return ir.Let(d.Name, i.Min, body)
	}
	return body
}

// opaque handles boolean leaves that vary over the domain in a way the
// comparison rules cannot see into.
func (r *relaxer) opaque(e *ir.Expr) *ir.Expr {
	if i := bounds.Of(e, r.scope); i.IsSinglePoint() {
		return i.Min
	}
	r.tight = false
	return ir.BoolConst(e.Type, r.flipped)
}

// devectorize rewrites a vector expression as the scalar expression of a
// single lane, selected by the variable lane.
func devectorize(e, lane *ir.Expr) *ir.Expr {
	memo := make(map[*ir.Expr]*ir.Expr)
	var rec func(*ir.Expr) *ir.Expr
	rec = func(x *ir.Expr) *ir.Expr {
		if x.Type.IsScalar() {
			return x
		}
		if r, ok := memo[x]; ok {
			return r
		}
		var r *ir.Expr
		switch d := x.Data.(type) {
		case ir.RampData:
			r = ir.Add(d.Base, ir.Mul(ir.Cast(d.Stride.Type, lane), d.Stride))
		case ir.BroadcastData:
			r = d.Value
		case ir.VarData:
			r = ir.Var(d.Name, x.Type.Element())
		case ir.InfData:
			r = ir.Inf(x.Type.Element(), d.Neg)
		case ir.LoadData:
			r = ir.Load(x.Type.Element(), d.Buffer, rec(d.Index))
		case ir.CallData:
			args := make([]*ir.Expr, len(d.Args))
			for i, a := range d.Args {
				args[i] = rec(a)
			}
			r = ir.Call(x.Type.Element(), d.Name, d.Pure, args...)
		case ir.CastData:
			r = ir.Cast(x.Type.Element(), rec(d.Value))
		default:
			r = ir.MutateChildren(x, rec)
		}
		memo[x] = r
		return r
	}
	return rec(e)
}
