package simplify

import (
	"loopopt/internal/ir"
)

// Stmt simplifies every expression in s and removes statements that
// provably do nothing:
//   - loops with a non-positive extent, and loops whose body is empty
//   - single-iteration loops (except device loops) become a let
//   - conditionals with a literal condition
//   - stores of a buffer element back into itself
//   - evaluations of pure expressions
//
// Loop variables with literal bounds are known inside their bodies.
func (s *Simplifier) Stmt(st *ir.Stmt) *ir.Stmt {
	if st == nil {
		return nil
	}
	switch d := st.Data.(type) {
	case ir.ForData:
		return s.forStmt(st, d)
	case ir.LetStmtData:
		return s.letStmt(st, d)
	case ir.StoreData:
		value, index := s.Expr(d.Value), s.Expr(d.Index)
		if value.Kind == ir.ExprLoad {
			ld := value.Data.(ir.LoadData)
			if ld.Buffer == d.Buffer && ir.Equal(ld.Index, index) {
				return nil
			}
		}
		if value == d.Value && index == d.Index {
			return st
		}
		return ir.Store(d.Buffer, value, index)
	case ir.IfData:
		return s.ifStmt(st, d)
	case ir.BlockData:
		changed := false
		out := make([]*ir.Stmt, len(d.Stmts))
		for i, c := range d.Stmts {
			out[i] = s.Stmt(c)
			changed = changed || out[i] != c
		}
		if !changed {
			return st
		}
		return ir.Block(out...)
	case ir.EvaluateData:
		v := s.Expr(d.Value)
		if !ir.HasImpureCall(v) {
			return nil
		}
		if v == d.Value {
			return st
		}
		return ir.Evaluate(v)
	case ir.AllocateData:
		size := s.Expr(d.Size)
		body := s.Stmt(d.Body)
		if body == nil {
			return nil
		}
		if size == d.Size && body == d.Body {
			return st
		}
		return ir.Allocate(d.Name, d.Type, size, d.Shared, body)
	}
	return st
}

func (s *Simplifier) forStmt(st *ir.Stmt, d ir.ForData) *ir.Stmt {
	mn, ext := s.Expr(d.Min), s.Expr(d.Extent)
	if e, ok := intConst(ext); ok {
		if e <= 0 {
			return nil
		}
		if e == 1 && !d.Kind.IsGPU() {
			return s.Stmt(ir.LetStmt(d.Name, mn, d.Body))
		}
	}
	rm, re := s.RangeOf(mn), s.RangeOf(ext)
	var r Range
	if rm.HasLo {
		r.Lo, r.HasLo = rm.Lo, true
	}
	if rm.HasHi && re.HasHi {
		if hi, ok := addOK(rm.Hi, re.Hi-1); ok {
			r.Hi, r.HasHi = hi, true
		}
	}
	s.bounds.Push(d.Name, r)
	body := s.Stmt(d.Body)
	s.bounds.Pop(d.Name)
	if body == nil {
		return nil
	}
	if mn == d.Min && ext == d.Extent && body == d.Body {
		return st
	}
	return ir.For(d.Name, mn, ext, d.Kind, body)
}

func (s *Simplifier) letStmt(st *ir.Stmt, d ir.LetStmtData) *ir.Stmt {
	value := s.Expr(d.Value)
	if substitutable(value) && !stmtRebindsAny(d.Body, value) {
		return s.Stmt(ir.SubstituteStmt(d.Body, d.Name, value))
	}
	s.bounds.Push(d.Name, s.RangeOf(value))
	body := s.Stmt(d.Body)
	s.bounds.Pop(d.Name)
	if body == nil {
		return nil
	}
	if !ir.StmtUsesVar(body, d.Name) {
		return body
	}
	if value == d.Value && body == d.Body {
		return st
	}
	return ir.LetStmt(d.Name, value, body)
}

// stmtRebindsAny reports whether s binds a name that value refers to.
func stmtRebindsAny(s *ir.Stmt, value *ir.Expr) bool {
	names := make(map[string]bool)
	ir.Any(value, func(x *ir.Expr) bool {
		if x.Kind == ir.ExprVar {
			names[x.VarName()] = true
		}
		return false
	})
	if len(names) == 0 {
		return false
	}
	found := false
	ir.VisitStmt(s, func(c *ir.Stmt) bool {
		switch cd := c.Data.(type) {
		case ir.ForData:
			found = found || names[cd.Name]
		case ir.LetStmtData:
			found = found || names[cd.Name]
		}
		return !found
	}, func(e *ir.Expr) {
		if !found {
			found = ir.Any(e, func(x *ir.Expr) bool {
				return x.Kind == ir.ExprLet && names[x.Data.(ir.LetData).Name]
			})
		}
	})
	return found
}

func (s *Simplifier) ifStmt(st *ir.Stmt, d ir.IfData) *ir.Stmt {
	cond := s.Expr(d.Cond)
	switch plain := ir.StripLikely(cond); {
	case ir.IsTrue(plain):
		return s.Stmt(d.Then)
	case ir.IsFalse(plain):
		return s.Stmt(d.Else)
	}
	then, els := s.Stmt(d.Then), s.Stmt(d.Else)
	pure := !ir.HasImpureCall(cond)
	switch {
	case then == nil && els == nil && pure:
		return nil
	case ir.EqualStmt(then, els) && pure:
		return then
	case then == nil:
		return ir.IfThenElse(s.Expr(ir.Not(cond)), els, nil)
	}
	if cond == d.Cond && then == d.Then && els == d.Else {
		return st
	}
	return ir.IfThenElse(cond, then, els)
}
