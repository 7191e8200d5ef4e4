package partition

import (
	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/relax"
	"loopopt/internal/simplify"
)

// simplification says that oldExpr may be replaced by likelyValue wherever
// condition holds, and by unlikelyValue wherever it does not.
type simplification struct {
	condition     *ir.Expr
	oldExpr       *ir.Expr
	likelyValue   *ir.Expr
	unlikelyValue *ir.Expr

	// tight is set when condition is exactly the set of points where the
	// likely value applies, rather than a subset of it.
	tight    bool
	interval bounds.Interval
}

// finder collects the simplifications available in the body of one loop.
// Conditions from nested loops are relaxed over those loops, so every
// collected condition depends only on the partitioned variable and on
// names bound outside it.
type finder struct {
	varying *ir.Scope[struct{}]
	records []simplification
}

func findSimplifications(body *ir.Stmt, v string) []simplification {
	f := &finder{varying: ir.NewScope[struct{}]()}
	f.varying.Push(v, struct{}{})
	f.stmt(body)
	return f.records
}

// hasUncapturedLikely reports a likely tag in e that does not belong to a
// nested Min, Max or Select.
func hasUncapturedLikely(e *ir.Expr) bool {
	found := false
	ir.VisitExpr(e, func(c *ir.Expr) bool {
		switch c.Kind {
		case ir.ExprLikely:
			found = true
			return false
		case ir.ExprMin, ir.ExprMax, ir.ExprSelect:
			return false
		}
		return !found
	})
	return found
}

func hasLikely(e *ir.Expr) bool { return ir.ContainsKind(e, ir.ExprLikely) }

// likelySides decides which operands carry the likely tag. A tag owned
// by the node itself wins over one buried in a nested node.
func likelySides(a, b *ir.Expr) (bool, bool) {
	la, lb := hasUncapturedLikely(a), hasUncapturedLikely(b)
	if !la && !lb {
		la, lb = hasLikely(a), hasLikely(b)
	}
	return la, lb
}

func (f *finder) record(cond, old, likely, unlikely *ir.Expr) {
	if !ir.UsesScope(cond, f.varying) {
		return
	}
	s := simplification{
		condition:     removeLikely(cond),
		oldExpr:       old,
		likelyValue:   likely,
		unlikelyValue: unlikely,
		tight:         true,
	}
	if s.condition.Type.IsVector() {
		c := simplify.Expr(s.condition)
		if d, ok := c.Data.(ir.BroadcastData); ok {
			s.condition = d.Value
		} else {
			s.condition, _ = relax.AndOverDomain(c, nil)
			s.tight = false
		}
	}
	f.records = append(f.records, s)
}

func (f *finder) expr(e *ir.Expr) {
	if e == nil {
		return
	}
	if d, ok := e.Data.(ir.LetData); ok {
		f.expr(d.Value)
		f.let(d.Name, d.Value, func() { f.expr(d.Body) })
		return
	}
	for _, c := range ir.Children(e) {
		f.expr(c)
	}
	switch e.Kind {
	case ir.ExprMin, ir.ExprMax:
		a, b, _ := e.Binary()
		cmp := ir.LE
		if e.Kind == ir.ExprMax {
			cmp = ir.GE
		}
		switch la, lb := likelySides(a, b); {
		case lb && !la:
			f.record(cmp(b, a), e, b, a)
		case la && !lb:
			f.record(cmp(a, b), e, a, b)
		}
	case ir.ExprSelect:
		d := e.Data.(ir.SelectData)
		switch lt, lf := likelySides(d.True, d.False); {
		case lt && !lf:
			f.record(d.Cond, e, d.True, d.False)
		case lf && !lt:
			f.record(ir.Not(d.Cond), e, d.False, d.True)
		}
	}
}

// let visits the body of a let binding. Conditions found inside that
// refer to the bound name are wrapped in the binding.
func (f *finder) let(name string, value *ir.Expr, body func()) {
	if ir.UsesScope(value, f.varying) {
		f.varying.Push(name, struct{}{})
		defer f.varying.Pop(name)
	}
	outer := f.records
	f.records = nil
	body()
	for i := range f.records {
		if ir.UsesVar(f.records[i].condition, name) {
			f.records[i].condition = ir.Let(name, value, f.records[i].condition)
		}
	}
	f.records = append(outer, f.records...)
}

func (f *finder) stmt(s *ir.Stmt) {
	if s == nil {
		return
	}
	switch d := s.Data.(type) {
	case ir.ForData:
		f.expr(d.Min)
		f.expr(d.Extent)
		outer := f.records
		f.records = nil
		f.stmt(d.Body)
		f.relaxOver(d)
		f.records = append(outer, f.records...)
	case ir.LetStmtData:
		f.expr(d.Value)
		f.let(d.Name, d.Value, func() { f.stmt(d.Body) })
	case ir.IfData:
		f.expr(d.Cond)
		f.stmt(d.Then)
		f.stmt(d.Else)
		// An if marks its likely branch on the condition itself.
		if d.Cond.Kind == ir.ExprLikely {
			f.record(d.Cond.Operand(), d.Cond, ir.True(), ir.False())
		}
	default:
		ir.MutateStmtChildren(s,
			func(e *ir.Expr) *ir.Expr { f.expr(e); return e },
			func(c *ir.Stmt) *ir.Stmt { f.stmt(c); return c })
	}
}

// relaxOver removes the variable of an inner loop from the conditions
// collected in its body.
func (f *finder) relaxOver(d ir.ForData) {
	scope := ir.NewScope[bounds.Interval]()
	scope.Push(d.Name, bounds.Between(d.Min, d.LoopMax()))
	for i := range f.records {
		s := &f.records[i]
		if !ir.UsesVar(s.condition, d.Name) {
			continue
		}
		relaxed, _ := relax.AndOverDomain(s.condition, scope)
		ir.Assertf(!ir.UsesVar(relaxed, d.Name),
			"relaxed condition %s still depends on %s", relaxed, d.Name)
		if !ir.Equal(relaxed, s.condition) {
			s.tight = false
		}
		s.condition = relaxed
	}
}

// apply rewrites body with every record's old expression replaced by its
// likely value. Replacements are searched for again inside the value
// substituted, so nested records all apply.
func apply(body *ir.Stmt, simps []simplification) *ir.Stmt {
	if len(simps) == 0 {
		return body
	}
	m := ir.NewExprMap[*ir.Expr]()
	for _, s := range simps {
		if _, ok := m.Get(s.oldExpr); !ok {
			m.Set(s.oldExpr, s.likelyValue)
		}
	}
	var expr func(*ir.Expr) *ir.Expr
	expr = func(e *ir.Expr) *ir.Expr {
		if r, ok := m.Get(e); ok {
			return expr(r)
		}
		return ir.MutateChildren(e, expr)
	}
	var stmt func(*ir.Stmt) *ir.Stmt
	stmt = func(s *ir.Stmt) *ir.Stmt { return ir.MutateStmtChildren(s, expr, stmt) }
	return stmt(body)
}
