package partition

import "loopopt/internal/ir"

// RenormalizeGPULoops moves the lets and ifs that partitioning placed
// between the levels of a GPU loop nest so that device loops are
// directly nested again. Outside the thread loops:
//   - lets that do not depend on a GPU loop are lifted above the
//     outermost GPU loop
//   - a dependent let directly above a loop or a shared allocation moves
//     inside it
//   - an if is pushed inside loops and shared allocations that both
//     branches share, and lets at the top of its branches are hoisted
//     above it
//
// An if that still separates GPU loop levels afterwards is an internal
// error.
func RenormalizeGPULoops(s *ir.Stmt) *ir.Stmt {
	r := &renormalizer{namer: ir.NewNamer(s), gpuVars: ir.NewScope[struct{}]()}
	return r.stmt(s)
}

type liftedLet struct {
	name  string
	value *ir.Expr
}

type renormalizer struct {
	namer    *ir.Namer
	inGPU    bool
	inThread bool
	// gpuVars holds the loop and let names inside the current GPU nest
	// whose value depends on the iteration.
	gpuVars *ir.Scope[struct{}]
	lifted  []liftedLet
}

func (r *renormalizer) stmt(s *ir.Stmt) *ir.Stmt {
	if s == nil {
		return nil
	}
	switch d := s.Data.(type) {
	case ir.ForData:
		return r.loop(s, d)
	case ir.LetStmtData:
		return r.letStmt(s, d)
	case ir.IfData:
		return r.ifThenElse(s, d)
	}
	return ir.MutateStmtChildren(s, nil, r.stmt)
}

func (r *renormalizer) loop(s *ir.Stmt, d ir.ForData) *ir.Stmt {
	if d.Kind == ir.ForGPUThread && r.inGPU {
		wasThread := r.inThread
		r.inThread = true
		r.gpuVars.Push(d.Name, struct{}{})
		out := ir.MutateStmtChildren(s, nil, r.stmt)
		r.gpuVars.Pop(d.Name)
		r.inThread = wasThread
		return out
	}
	outermost := !r.inGPU && d.Kind.IsGPU()
	tracked := r.inGPU || d.Kind.IsGPU()
	if tracked {
		r.gpuVars.Push(d.Name, struct{}{})
	}
	wasGPU := r.inGPU
	r.inGPU = tracked
	out := ir.MutateStmtChildren(s, nil, r.stmt)
	r.inGPU = wasGPU
	if tracked {
		r.gpuVars.Pop(d.Name)
	}
	if outermost {
		for i := len(r.lifted) - 1; i >= 0; i-- {
			out = ir.LetStmt(r.lifted[i].name, r.lifted[i].value, out)
		}
		r.lifted = nil
	}
	return out
}

func (r *renormalizer) letStmt(s *ir.Stmt, d ir.LetStmtData) *ir.Stmt {
	if !r.inGPU {
		return ir.MutateStmtChildren(s, nil, r.stmt)
	}
	if !ir.UsesScope(d.Value, r.gpuVars) {
		// Lifted lets share one scope above the nest, so each gets a
		// fresh name.
		name := r.namer.Fresh(d.Name)
		r.lifted = append(r.lifted, liftedLet{name, d.Value})
		return r.stmt(ir.SubstituteStmt(d.Body, d.Name, ir.Var(name, d.Value.Type)))
	}
	r.gpuVars.Push(d.Name, struct{}{})
	defer r.gpuVars.Pop(d.Name)
	if r.inThread {
		return ir.MutateStmtChildren(s, nil, r.stmt)
	}
	body := r.stmt(d.Body)
	if body != nil {
		switch b := body.Data.(type) {
		case ir.ForData:
			ir.Assertf(!ir.UsesVar(b.Min, d.Name) && !ir.UsesVar(b.Extent, d.Name),
				"bounds of loop %s depend on %s", b.Name, d.Name)
			return r.stmt(ir.For(b.Name, b.Min, b.Extent, b.Kind, ir.LetStmt(d.Name, d.Value, b.Body)))
		case ir.AllocateData:
			if b.Shared && !ir.UsesVar(b.Size, d.Name) {
				return r.stmt(ir.Allocate(b.Name, b.Type, b.Size, true, ir.LetStmt(d.Name, d.Value, b.Body)))
			}
		}
	}
	if body == d.Body {
		return s
	}
	return ir.LetStmt(d.Name, d.Value, body)
}

func containsGPULoop(s *ir.Stmt) bool {
	found := false
	ir.VisitStmt(s, func(c *ir.Stmt) bool {
		if d, ok := c.For(); ok && d.Kind.IsGPU() {
			found = true
		}
		return !found
	}, nil)
	return found
}

func (r *renormalizer) ifThenElse(s *ir.Stmt, d ir.IfData) *ir.Stmt {
	if !r.inGPU || r.inThread {
		return ir.MutateStmtChildren(s, nil, r.stmt)
	}
	then, els := r.stmt(d.Then), r.stmt(d.Else)
	if ir.EqualStmt(then, els) {
		return then
	}
	if then != nil && els != nil {
		if out, ok := r.pushInside(d.Cond, then, els); ok {
			return out
		}
	}
	if containsGPULoop(then) || containsGPULoop(els) {
		ir.Internalf("unexpected if between GPU loop levels: %s", ir.IfThenElse(d.Cond, then, els))
	}
	if then == d.Then && els == d.Else {
		return s
	}
	return ir.IfThenElse(d.Cond, then, els)
}

// pushInside rewrites if (cond) then else els so that the if moves below
// the statement both branches start with.
func (r *renormalizer) pushInside(cond *ir.Expr, then, els *ir.Stmt) (*ir.Stmt, bool) {
	switch a := then.Data.(type) {
	case ir.AllocateData:
		if b, ok := els.Data.(ir.AllocateData); ok && a.Shared && b.Shared && a.Name == b.Name {
			return r.stmt(ir.Allocate(a.Name, a.Type, a.Size, true, ir.IfThenElse(cond, a.Body, b.Body))), true
		}
	case ir.LetStmtData:
		if b, ok := els.Data.(ir.LetStmtData); ok && a.Name == b.Name {
			c := ir.Var(r.namer.Fresh("t"), cond.Type)
			inner := ir.IfThenElse(c, a.Body, b.Body)
			inner = ir.LetStmt(a.Name, ir.Select(c, a.Value, b.Value), inner)
			return r.stmt(ir.LetStmt(c.VarName(), cond, inner)), true
		}
		return r.hoist(a, func(body *ir.Stmt) *ir.Stmt { return ir.IfThenElse(cond, body, els) }), true
	case ir.ForData:
		if b, ok := els.Data.(ir.ForData); ok && a.Name == b.Name &&
			ir.Equal(a.Min, b.Min) && ir.Equal(a.Extent, b.Extent) {
			return r.stmt(ir.For(a.Name, a.Min, a.Extent, a.Kind, ir.IfThenElse(cond, a.Body, b.Body))), true
		}
	}
	if b, ok := els.Data.(ir.LetStmtData); ok {
		return r.hoist(b, func(body *ir.Stmt) *ir.Stmt { return ir.IfThenElse(cond, then, body) }), true
	}
	return nil, false
}

// hoist moves a let out of one branch of an if under a fresh name.
func (r *renormalizer) hoist(l ir.LetStmtData, rebuild func(*ir.Stmt) *ir.Stmt) *ir.Stmt {
	name := r.namer.Fresh(l.Name)
	body := ir.SubstituteStmt(l.Body, l.Name, ir.Var(name, l.Value.Type))
	return r.stmt(ir.LetStmt(name, l.Value, rebuild(body)))
}
