package ir

import "strconv"

// Namer hands out variable names that do not clash with names already
// present in a program or previously handed out. A Namer belongs to a
// single pass invocation.
type Namer struct {
	used map[string]bool
}

// NewNamer returns a Namer that avoids every name appearing in stmts.
func NewNamer(stmts ...*Stmt) *Namer {
	n := &Namer{used: make(map[string]bool)}
	for _, s := range stmts {
		n.ReserveStmt(s)
	}
	return n
}

// Reserve marks name as taken.
func (n *Namer) Reserve(name string) {
	if n.used == nil {
		n.used = make(map[string]bool)
	}
	n.used[name] = true
}

// ReserveExpr marks every variable and let name in e as taken.
func (n *Namer) ReserveExpr(e *Expr) {
	Any(e, func(x *Expr) bool {
		switch d := x.Data.(type) {
		case VarData:
			n.Reserve(d.Name)
		case LetData:
			n.Reserve(d.Name)
		}
		return false
	})
}

// ReserveStmt marks every name bound or referenced in s as taken.
func (n *Namer) ReserveStmt(s *Stmt) {
	VisitStmt(s, func(st *Stmt) bool {
		switch d := st.Data.(type) {
		case ForData:
			n.Reserve(d.Name)
		case LetStmtData:
			n.Reserve(d.Name)
		case AllocateData:
			n.Reserve(d.Name)
		}
		return true
	}, n.ReserveExpr)
}

// Fresh returns base if it is unused, otherwise base followed by the
// smallest numeric suffix that is unused. The result is reserved.
func (n *Namer) Fresh(base string) string {
	name := base
	for i := 1; n.used[name]; i++ {
		name = base + "." + strconv.Itoa(i)
	}
	n.Reserve(name)
	return name
}
