package partition

import "loopopt/internal/ir"

// ExpandSelects splits selects on compound conditions into nested
// selects on the parts, so each part can be partitioned on separately:
//
//	select(a || b, t, f) -> select(a, t, select(b, t, f))
//	select(a && b, t, f) -> select(a, select(b, t, f), f)
//	select(!a, t, f)     -> select(a, f, t)
//
// A duplicated value that is not a variable or a constant is bound once
// in a let.
func ExpandSelects(s *ir.Stmt) *ir.Stmt {
	x := &expander{namer: ir.NewNamer(s)}
	var stmt func(*ir.Stmt) *ir.Stmt
	stmt = func(s *ir.Stmt) *ir.Stmt { return ir.MutateStmtChildren(s, x.expr, stmt) }
	return stmt(s)
}

type expander struct {
	namer *ir.Namer
}

func isTrivial(e *ir.Expr) bool { return e.Kind == ir.ExprVar || ir.IsConst(e) }

func (x *expander) expr(e *ir.Expr) *ir.Expr {
	d, ok := e.Data.(ir.SelectData)
	if !ok {
		return ir.MutateChildren(e, x.expr)
	}
	cond, t, f := x.expr(d.Cond), x.expr(d.True), x.expr(d.False)
	switch cond.Kind {
	case ir.ExprOr:
		a, b, _ := cond.Binary()
		if isTrivial(t) {
			return x.expr(ir.Select(a, t, ir.Select(b, t, f)))
		}
		v := ir.Var(x.namer.Fresh("t"), t.Type)
		return ir.Let(v.VarName(), t, x.expr(ir.Select(a, v, ir.Select(b, v, f))))
	case ir.ExprAnd:
		a, b, _ := cond.Binary()
		if isTrivial(f) {
			return x.expr(ir.Select(a, ir.Select(b, t, f), f))
		}
		v := ir.Var(x.namer.Fresh("t"), f.Type)
		return ir.Let(v.VarName(), f, x.expr(ir.Select(a, ir.Select(b, t, v), v)))
	case ir.ExprNot:
		return x.expr(ir.Select(cond.Operand(), f, t))
	}
	if cond == d.Cond && t == d.True && f == d.False {
		return e
	}
	return ir.Select(cond, t, f)
}

// CollapseSelects undoes the nesting left behind by ExpandSelects:
//
//	select(a, select(b, t, f), f) -> select(a && b, t, f)
//	select(a, t, select(b, t, f)) -> select(a || b, t, f)
func CollapseSelects(s *ir.Stmt) *ir.Stmt {
	var stmt func(*ir.Stmt) *ir.Stmt
	stmt = func(s *ir.Stmt) *ir.Stmt { return ir.MutateStmtChildren(s, collapse, stmt) }
	return stmt(s)
}

func collapse(e *ir.Expr) *ir.Expr {
	d, ok := e.Data.(ir.SelectData)
	if !ok {
		return ir.MutateChildren(e, collapse)
	}
	if t, ok := d.True.Data.(ir.SelectData); ok && ir.Equal(t.False, d.False) {
		return collapse(ir.Select(ir.And(d.Cond, t.Cond), t.True, d.False))
	}
	if f, ok := d.False.Data.(ir.SelectData); ok && ir.Equal(d.True, f.True) {
		return collapse(ir.Select(ir.Or(d.Cond, f.Cond), d.True, f.False))
	}
	return ir.MutateChildren(e, collapse)
}
