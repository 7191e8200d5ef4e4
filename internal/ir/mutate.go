package ir

// MutateChildren rebuilds e with every direct child replaced by f(child).
// It returns e itself when no child changed.
func MutateChildren(e *Expr, f func(*Expr) *Expr) *Expr {
	if e == nil {
		return nil
	}
	switch d := e.Data.(type) {
	case BinaryData:
		a, b := f(d.A), f(d.B)
		if a == d.A && b == d.B {
			return e
		}
		return Binary(e.Kind, a, b)
	case UnaryData:
		a := f(d.A)
		if a == d.A {
			return e
		}
		if e.Kind == ExprNot {
			return Not(a)
		}
		return Likely(a)
	case SelectData:
		c, t, fv := f(d.Cond), f(d.True), f(d.False)
		if c == d.Cond && t == d.True && fv == d.False {
			return e
		}
		return Select(c, t, fv)
	case LetData:
		v, b := f(d.Value), f(d.Body)
		if v == d.Value && b == d.Body {
			return e
		}
		return Let(d.Name, v, b)
	case LoadData:
		idx := f(d.Index)
		if idx == d.Index {
			return e
		}
		return Load(e.Type.Element(), d.Buffer, idx)
	case CallData:
		var args []*Expr
		for i, a := range d.Args {
			na := f(a)
			if na != a && args == nil {
				args = make([]*Expr, len(d.Args))
				copy(args, d.Args[:i])
			}
			if args != nil {
				args[i] = na
			}
		}
		if args == nil {
			return e
		}
		return Call(e.Type, d.Name, d.Pure, args...)
	case RampData:
		b, s := f(d.Base), f(d.Stride)
		if b == d.Base && s == d.Stride {
			return e
		}
		return Ramp(b, s, d.Lanes)
	case BroadcastData:
		v := f(d.Value)
		if v == d.Value {
			return e
		}
		return Broadcast(v, d.Lanes)
	case CastData:
		v := f(d.Value)
		if v == d.Value {
			return e
		}
		return Cast(e.Type.Element(), v)
	}
	return e
}

// Children returns the direct children of e in evaluation order.
func Children(e *Expr) []*Expr {
	if e == nil {
		return nil
	}
	switch d := e.Data.(type) {
	case BinaryData:
		return []*Expr{d.A, d.B}
	case UnaryData:
		return []*Expr{d.A}
	case SelectData:
		return []*Expr{d.Cond, d.True, d.False}
	case LetData:
		return []*Expr{d.Value, d.Body}
	case LoadData:
		return []*Expr{d.Index}
	case CallData:
		return d.Args
	case RampData:
		return []*Expr{d.Base, d.Stride}
	case BroadcastData:
		return []*Expr{d.Value}
	case CastData:
		return []*Expr{d.Value}
	}
	return nil
}

// MutateStmtChildren rebuilds s with its expressions replaced by fe and its
// child statements replaced by fs. Either function may be nil to leave
// that part alone. It returns s itself when nothing changed.
func MutateStmtChildren(s *Stmt, fe func(*Expr) *Expr, fs func(*Stmt) *Stmt) *Stmt {
	if s == nil {
		return nil
	}
	if fe == nil {
		fe = func(e *Expr) *Expr { return e }
	}
	if fs == nil {
		fs = func(s *Stmt) *Stmt { return s }
	}
	switch d := s.Data.(type) {
	case ForData:
		mn, ext := fe(d.Min), fe(d.Extent)
		body := fs(d.Body)
		if mn == d.Min && ext == d.Extent && body == d.Body {
			return s
		}
		return For(d.Name, mn, ext, d.Kind, body)
	case LetStmtData:
		v := fe(d.Value)
		body := fs(d.Body)
		if v == d.Value && body == d.Body {
			return s
		}
		return LetStmt(d.Name, v, body)
	case StoreData:
		v, idx := fe(d.Value), fe(d.Index)
		if v == d.Value && idx == d.Index {
			return s
		}
		return Store(d.Buffer, v, idx)
	case IfData:
		c := fe(d.Cond)
		t, el := fs(d.Then), fs(d.Else)
		if c == d.Cond && t == d.Then && el == d.Else {
			return s
		}
		return IfThenElse(c, t, el)
	case BlockData:
		var out []*Stmt
		for i, c := range d.Stmts {
			nc := fs(c)
			if nc != c && out == nil {
				out = make([]*Stmt, len(d.Stmts))
				copy(out, d.Stmts[:i])
			}
			if out != nil {
				out[i] = nc
			}
		}
		if out == nil {
			return s
		}
		return Block(out...)
	case EvaluateData:
		v := fe(d.Value)
		if v == d.Value {
			return s
		}
		return Evaluate(v)
	case AllocateData:
		size := fe(d.Size)
		body := fs(d.Body)
		if size == d.Size && body == d.Body {
			return s
		}
		return Allocate(d.Name, d.Type, size, d.Shared, body)
	}
	return s
}

// VisitExpr walks e in pre-order. Returning false from f skips the
// children of the current node.
func VisitExpr(e *Expr, f func(*Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, c := range Children(e) {
		VisitExpr(c, f)
	}
}

// VisitStmt walks s in pre-order, calling fs on statements and fe on every
// top-level expression of each statement. Returning false from fs skips
// the statement's expressions and children. Either function may be nil.
func VisitStmt(s *Stmt, fs func(*Stmt) bool, fe func(*Expr)) {
	if s == nil {
		return
	}
	if fs != nil && !fs(s) {
		return
	}
	expr := func(e *Expr) {
		if fe != nil && e != nil {
			fe(e)
		}
	}
	switch d := s.Data.(type) {
	case ForData:
		expr(d.Min)
		expr(d.Extent)
		VisitStmt(d.Body, fs, fe)
	case LetStmtData:
		expr(d.Value)
		VisitStmt(d.Body, fs, fe)
	case StoreData:
		expr(d.Value)
		expr(d.Index)
	case IfData:
		expr(d.Cond)
		VisitStmt(d.Then, fs, fe)
		VisitStmt(d.Else, fs, fe)
	case BlockData:
		for _, c := range d.Stmts {
			VisitStmt(c, fs, fe)
		}
	case EvaluateData:
		expr(d.Value)
	case AllocateData:
		expr(d.Size)
		VisitStmt(d.Body, fs, fe)
	}
}
