package simplify

import (
	"strconv"

	"loopopt/internal/ir"
)

// CSE binds every non-trivial subexpression that occurs more than once
// in e to a fresh let variable. Structurally equal subexpressions are
// merged first, so sharing is detected even between distinct nodes.
// Expressions that already contain lets are returned unchanged.
func CSE(e *ir.Expr) *ir.Expr {
	if e == nil || ir.ContainsKind(e, ir.ExprLet) {
		return e
	}
	g := gvn{byPtr: make(map[*ir.Expr]*ir.Expr), canon: ir.NewExprMap[*ir.Expr]()}
	root := g.number(e)

	// Count references over the DAG of canonical nodes.
	uses := make(map[*ir.Expr]int)
	var order []*ir.Expr
	seen := make(map[*ir.Expr]bool)
	var count func(*ir.Expr)
	count = func(x *ir.Expr) {
		uses[x]++
		if seen[x] {
			return
		}
		seen[x] = true
		for _, c := range ir.Children(x) {
			count(c)
		}
		order = append(order, x)
	}
	count(root)

	namer := ir.NewNamer()
	namer.ReserveExpr(e)
	replaced := make(map[*ir.Expr]*ir.Expr)
	type binding struct {
		name  string
		value *ir.Expr
	}
	var lets []binding
	var rebuild func(*ir.Expr) *ir.Expr
	rebuild = func(x *ir.Expr) *ir.Expr {
		if r, ok := replaced[x]; ok {
			return r
		}
		r := ir.MutateChildren(x, rebuild)
		replaced[x] = r
		return r
	}
	// order is post-order, so each extracted value only refers to
	// variables bound before it.
	for _, x := range order {
		if x == root || uses[x] < 2 || !shouldExtract(x) {
			continue
		}
		value := rebuild(x)
		name := namer.Fresh("t" + strconv.Itoa(len(lets)))
		lets = append(lets, binding{name, value})
		replaced[x] = ir.Var(name, x.Type)
	}
	if len(lets) == 0 {
		return e
	}
	body := rebuild(root)
	for i := len(lets) - 1; i >= 0; i-- {
		body = ir.Let(lets[i].name, lets[i].value, body)
	}
	return body
}

// gvn maps every node to a canonical representative of its structural
// equivalence class.
type gvn struct {
	byPtr map[*ir.Expr]*ir.Expr
	canon *ir.ExprMap[*ir.Expr]
}

func (g *gvn) number(e *ir.Expr) *ir.Expr {
	if r, ok := g.byPtr[e]; ok {
		return r
	}
	r := ir.MutateChildren(e, g.number)
	if c, ok := g.canon.Get(r); ok {
		r = c
	} else {
		g.canon.Set(r, r)
	}
	g.byPtr[e] = r
	return r
}

// shouldExtract reports whether a repeated node is worth a let. Leaves
// and arithmetic by a literal are cheaper to recompute than to name.
func shouldExtract(e *ir.Expr) bool {
	switch e.Kind {
	case ir.ExprConst, ir.ExprInf, ir.ExprVar:
		return false
	case ir.ExprBroadcast:
		return shouldExtract(e.Data.(ir.BroadcastData).Value)
	case ir.ExprRamp:
		d := e.Data.(ir.RampData)
		return !(ir.IsConst(d.Stride) && !shouldExtract(d.Base))
	case ir.ExprAdd, ir.ExprSub, ir.ExprMul, ir.ExprDiv:
		d := e.Data.(ir.BinaryData)
		return !ir.IsConst(d.A) && !ir.IsConst(d.B)
	}
	return true
}
