package trim

import (
	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/relax"
	"loopopt/internal/simplify"
)

// IsNoOp returns a condition on the free variables of s under which
// running s leaves every buffer unchanged and has no other effect. A
// false result means s may always do something.
func IsNoOp(s *ir.Stmt) *ir.Expr {
	c := &noOpChecker{cond: ir.True()}
	c.stmt(s)
	return c.cond
}

type noOpChecker struct {
	cond *ir.Expr
}

func (c *noOpChecker) and(e *ir.Expr) {
	c.cond = andExpr(c.cond, e)
}

func andExpr(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsTrue(a):
		return b
	case ir.IsTrue(b):
		return a
	case ir.IsFalse(a) || ir.IsFalse(b):
		return ir.False()
	}
	return ir.And(a, b)
}

func orExpr(a, b *ir.Expr) *ir.Expr {
	switch {
	case ir.IsFalse(a):
		return b
	case ir.IsFalse(b):
		return a
	case ir.IsTrue(a) || ir.IsTrue(b):
		return ir.True()
	}
	return ir.Or(a, b)
}

func (c *noOpChecker) stmt(s *ir.Stmt) {
	if s == nil || ir.IsFalse(c.cond) {
		return
	}
	switch d := s.Data.(type) {
	case ir.StoreData:
		c.store(d)
	case ir.ForData:
		c.loop(d)
	case ir.LetStmtData:
		c.exprs(d.Value)
		if ir.IsFalse(c.cond) {
			return
		}
		// The binding scopes only the body, not earlier siblings.
		outer := c.cond
		c.cond = ir.True()
		c.stmt(d.Body)
		body := c.cond
		if ir.UsesVar(body, d.Name) {
			body = ir.Let(d.Name, d.Value, body)
		}
		c.cond = andExpr(outer, body)
	case ir.IfData:
		c.exprs(d.Cond)
		outer := c.cond
		c.cond = ir.True()
		c.stmt(d.Then)
		outer = andExpr(outer, orExpr(ir.Not(d.Cond), c.cond))
		if d.Else != nil {
			c.cond = ir.True()
			c.stmt(d.Else)
			outer = andExpr(outer, orExpr(d.Cond, c.cond))
		}
		c.cond = outer
	case ir.BlockData:
		for _, st := range d.Stmts {
			c.stmt(st)
		}
	case ir.EvaluateData:
		c.exprs(d.Value)
	case ir.AllocateData:
		c.exprs(d.Size)
		c.stmt(d.Body)
	}
}

// exprs rules out statements whose expressions call impure functions.
func (c *noOpChecker) exprs(es ...*ir.Expr) {
	for _, e := range es {
		if ir.HasImpureCall(e) {
			c.cond = ir.False()
		}
	}
}

func (c *noOpChecker) store(d ir.StoreData) {
	c.exprs(d.Value, d.Index)
	if ir.IsFalse(c.cond) {
		return
	}
	if d.Value.Type.IsHandle() {
		c.cond = ir.False()
		return
	}
	// A store is a no-op when it writes back the value already there.
	resident := ir.Load(d.Value.Type.Element(), d.Buffer, d.Index)
	same := stripLikely(ir.EQ(resident, d.Value))
	same = simplify.Expr(simplify.CSE(same))
	same, _ = relax.AndOverDomain(same, ir.NewScope[bounds.Interval]())
	c.and(same)
}

func (c *noOpChecker) loop(d ir.ForData) {
	c.exprs(d.Min, d.Extent)
	if ir.IsFalse(c.cond) {
		return
	}
	outer := c.cond
	c.cond = ir.True()
	c.stmt(d.Body)
	domain := ir.NewScope[bounds.Interval]()
	domain.Push(d.Name, bounds.Between(d.Min, d.LoopMax()))
	body := simplify.Expr(simplify.CSE(c.cond))
	body, _ = relax.AndOverDomain(body, domain)
	empty := simplify.Expr(ir.LE(d.Extent, ir.Zero(d.Extent.Type)))
	c.cond = andExpr(outer, orExpr(body, empty))
}

func stripLikely(e *ir.Expr) *ir.Expr {
	if e.Kind == ir.ExprLikely {
		return stripLikely(e.Operand())
	}
	return ir.MutateChildren(e, stripLikely)
}
