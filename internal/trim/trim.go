// Package trim narrows loops to the part of their iteration range that
// has an observable effect. Iterations whose stores write back the value
// already in the buffer, and that call nothing impure, are cut off the
// ends of the loop.
package trim

import (
	"context"

	"loopopt/internal/ir"
	"loopopt/internal/simplify"
	"loopopt/internal/solve"
	"loopopt/internal/trace"
)

// NoOps trims every loop of s, innermost first. Loops that never do
// anything are removed. GPU loops keep their bounds, since the bounds of
// a device loop may not depend on an enclosing device loop.
func NoOps(ctx context.Context, s *ir.Stmt) *ir.Stmt {
	t := &trimmer{tracer: trace.FromContext(ctx), namer: ir.NewNamer(s)}
	return t.stmt(s)
}

type trimmer struct {
	tracer trace.Tracer
	namer  *ir.Namer
}

func (t *trimmer) stmt(s *ir.Stmt) *ir.Stmt {
	if s == nil {
		return nil
	}
	if d, ok := s.For(); ok {
		return t.loop(s, d)
	}
	return ir.MutateStmtChildren(s, nil, t.stmt)
}

func (t *trimmer) loop(s *ir.Stmt, op ir.ForData) *ir.Stmt {
	if op.Kind.IsGPU() {
		return ir.MutateStmtChildren(s, nil, t.stmt)
	}
	body := t.stmt(op.Body)
	if body == nil {
		trace.Point(t.tracer, trace.ScopeLoop, "trim", op.Name+": body removed")
		return nil
	}
	rebuilt := s
	if body != op.Body {
		rebuilt = ir.For(op.Name, op.Min, op.Extent, op.Kind, body)
	}

	cond := simplify.Expr(simplify.Expr(simplify.CSE(IsNoOp(body))))
	switch {
	case ir.IsTrue(cond):
		trace.Point(t.tracer, trace.ScopeLoop, "trim", op.Name+": loop does nothing")
		return nil
	case ir.IsFalse(cond):
		return rebuilt
	}

	i := solve.Outer(simplify.Expr(ir.Not(cond)), op.Name)
	switch {
	case i.IsEverything():
		return rebuilt
	case i.IsEmpty():
		trace.Point(t.tracer, trace.ScopeLoop, "trim", op.Name+": no iteration does anything")
		return nil
	}
	trace.Pointf(t.tracer, trace.ScopeLoop, "trim", "%s: useful range %s", op.Name, i)

	body = simplify.Stmt(SimplifyUsingBounds(body, op.Name, i))
	if body == nil {
		return nil
	}

	ty := op.Min.Type
	oldMax := ir.Var(t.namer.Fresh(op.Name+".old_max"), ty)
	newMin := ir.Var(t.namer.Fresh(op.Name+".new_min"), ty)
	newMax := ir.Var(t.namer.Fresh(op.Name+".new_max"), ty)

	// The solver may be imprecise, so the new range is clamped to the
	// old one.
	minVal, maxVal := op.Min, oldMax
	if i.HasLowerBound() {
		minVal = ir.Clamp(i.Min, op.Min, oldMax)
	}
	if i.HasUpperBound() {
		maxVal = ir.Clamp(ir.Add(i.Max, ir.One(ty)), newMin, oldMax)
	}

	out := ir.For(op.Name, newMin, ir.Sub(newMax, newMin), op.Kind, body)
	out = ir.LetStmt(newMax.VarName(), maxVal, out)
	out = ir.LetStmt(newMin.VarName(), minVal, out)
	out = ir.LetStmt(oldMax.VarName(), op.LoopEnd(), out)
	return simplify.Stmt(out)
}
