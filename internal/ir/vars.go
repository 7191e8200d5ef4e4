package ir

// UsesVar reports whether e refers to the free variable name.
func UsesVar(e *Expr, name string) bool {
	return UsesVars(e, func(n string) bool { return n == name })
}

// UsesVars reports whether e refers to any free variable accepted by pred.
func UsesVars(e *Expr, pred func(string) bool) bool {
	w := varWalker{pred: pred, seen: make(map[*Expr]bool)}
	return w.walk(e, nil)
}

// UsesScope reports whether e refers to any name bound in scope.
func UsesScope[T any](e *Expr, scope *Scope[T]) bool {
	if scope.Empty() {
		return false
	}
	return UsesVars(e, scope.Contains)
}

type varWalker struct {
	pred func(string) bool
	seen map[*Expr]bool
}

// walk reports a match, ignoring names in bound (let names shadowing the
// free variables being searched for).
func (w *varWalker) walk(e *Expr, bound map[string]int) bool {
	if e == nil {
		return false
	}
	if len(bound) == 0 {
		if w.seen[e] {
			return false
		}
		w.seen[e] = true
	}
	switch d := e.Data.(type) {
	case VarData:
		return bound[d.Name] == 0 && w.pred(d.Name)
	case LetData:
		if w.walk(d.Value, bound) {
			return true
		}
		if bound == nil {
			bound = make(map[string]int)
		}
		bound[d.Name]++
		found := w.walk(d.Body, bound)
		bound[d.Name]--
		if bound[d.Name] == 0 {
			delete(bound, d.Name)
		}
		return found
	}
	for _, c := range Children(e) {
		if w.walk(c, bound) {
			return true
		}
	}
	return false
}

// StmtUsesVar reports whether any expression in s refers to the free
// variable name.
func StmtUsesVar(s *Stmt, name string) bool {
	found := false
	var visit func(s *Stmt)
	visit = func(s *Stmt) {
		if s == nil || found {
			return
		}
		switch d := s.Data.(type) {
		case ForData:
			if UsesVar(d.Min, name) || UsesVar(d.Extent, name) {
				found = true
				return
			}
			if d.Name != name {
				visit(d.Body)
			}
		case LetStmtData:
			if UsesVar(d.Value, name) {
				found = true
				return
			}
			if d.Name != name {
				visit(d.Body)
			}
		default:
			VisitStmt(s, func(c *Stmt) bool {
				if c == s {
					return true
				}
				visit(c)
				return false
			}, func(e *Expr) {
				if !found && UsesVar(e, name) {
					found = true
				}
			})
		}
	}
	visit(s)
	return found
}

// Substitute replaces free occurrences of the variable name in e by value.
func Substitute(e *Expr, name string, value *Expr) *Expr {
	s := substituter{name: name, value: value, memo: make(map[*Expr]*Expr)}
	return s.expr(e)
}

type substituter struct {
	name  string
	value *Expr
	memo  map[*Expr]*Expr
}

func (s *substituter) expr(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	if r, ok := s.memo[e]; ok {
		return r
	}
	var r *Expr
	switch d := e.Data.(type) {
	case VarData:
		r = e
		if d.Name == s.name {
			r = s.value
		}
	case LetData:
		v := s.expr(d.Value)
		body := d.Body
		if d.Name != s.name {
			body = s.expr(body)
		}
		r = e
		if v != d.Value || body != d.Body {
			r = Let(d.Name, v, body)
		}
	default:
		r = MutateChildren(e, s.expr)
	}
	s.memo[e] = r
	return r
}

func (s *substituter) stmt(st *Stmt) *Stmt {
	if st == nil {
		return nil
	}
	switch d := st.Data.(type) {
	case ForData:
		mn, ext := s.expr(d.Min), s.expr(d.Extent)
		body := d.Body
		if d.Name != s.name {
			body = s.stmt(body)
		}
		if mn == d.Min && ext == d.Extent && body == d.Body {
			return st
		}
		return For(d.Name, mn, ext, d.Kind, body)
	case LetStmtData:
		v := s.expr(d.Value)
		body := d.Body
		if d.Name != s.name {
			body = s.stmt(body)
		}
		if v == d.Value && body == d.Body {
			return st
		}
		return LetStmt(d.Name, v, body)
	}
	return MutateStmtChildren(st, s.expr, s.stmt)
}

// SubstituteStmt replaces free occurrences of the variable name in s.
func SubstituteStmt(st *Stmt, name string, value *Expr) *Stmt {
	s := substituter{name: name, value: value, memo: make(map[*Expr]*Expr)}
	return s.stmt(st)
}

// ReplaceExpr replaces every subexpression of e structurally equal to old
// by replacement.
func ReplaceExpr(e, old, replacement *Expr) *Expr {
	memo := make(map[*Expr]*Expr)
	var rec func(*Expr) *Expr
	rec = func(x *Expr) *Expr {
		if x == nil {
			return nil
		}
		if r, ok := memo[x]; ok {
			return r
		}
		var r *Expr
		if Equal(x, old) {
			r = replacement
		} else {
			r = MutateChildren(x, rec)
		}
		memo[x] = r
		return r
	}
	return rec(e)
}

// ContainsKind reports whether any node of e has kind k.
func ContainsKind(e *Expr, k ExprKind) bool {
	return Any(e, func(x *Expr) bool { return x.Kind == k })
}

// HasImpureCall reports whether e contains a call with external effects.
func HasImpureCall(e *Expr) bool {
	return Any(e, func(x *Expr) bool {
		return x.Kind == ExprCall && !x.Data.(CallData).Pure
	})
}

// Any reports whether pred holds for some node of e. Shared nodes are
// visited once.
func Any(e *Expr, pred func(*Expr) bool) bool {
	found := false
	seen := make(map[*Expr]bool)
	var rec func(*Expr)
	rec = func(x *Expr) {
		if x == nil || found || seen[x] {
			return
		}
		seen[x] = true
		if pred(x) {
			found = true
			return
		}
		for _, c := range Children(x) {
			rec(c)
		}
	}
	rec(e)
	return found
}
