package ir

import (
	"cmp"
	"strings"
)

// Equal reports whether a and b are structurally identical.
func Equal(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Hash() != b.Hash() {
		return false
	}
	var c equalizer
	return c.expr(a, b)
}

// EqualStmt reports whether two statements are structurally identical.
func EqualStmt(a, b *Stmt) bool {
	var c equalizer
	return c.stmt(a, b)
}

// equalizer remembers pairs already proven equal so that comparing two
// distinct copies of a heavily shared DAG stays linear.
type equalizer struct {
	seen map[[2]*Expr]struct{}
}

func (c *equalizer) expr(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind || a.Type != b.Type || a.Hash() != b.Hash() {
		return false
	}
	key := [2]*Expr{a, b}
	if _, ok := c.seen[key]; ok {
		return true
	}
	if !c.data(a, b) {
		return false
	}
	if c.seen == nil {
		c.seen = make(map[[2]*Expr]struct{})
	}
	c.seen[key] = struct{}{}
	return true
}

func (c *equalizer) data(a, b *Expr) bool {
	switch x := a.Data.(type) {
	case ConstData:
		y := b.Data.(ConstData)
		return x.Int == y.Int && (x.Float == y.Float || (x.Float != x.Float && y.Float != y.Float))
	case InfData:
		return x.Neg == b.Data.(InfData).Neg
	case VarData:
		return x.Name == b.Data.(VarData).Name
	case BinaryData:
		y := b.Data.(BinaryData)
		return c.expr(x.A, y.A) && c.expr(x.B, y.B)
	case UnaryData:
		return c.expr(x.A, b.Data.(UnaryData).A)
	case SelectData:
		y := b.Data.(SelectData)
		return c.expr(x.Cond, y.Cond) && c.expr(x.True, y.True) && c.expr(x.False, y.False)
	case LetData:
		y := b.Data.(LetData)
		return x.Name == y.Name && c.expr(x.Value, y.Value) && c.expr(x.Body, y.Body)
	case LoadData:
		y := b.Data.(LoadData)
		return x.Buffer == y.Buffer && c.expr(x.Index, y.Index)
	case CallData:
		y := b.Data.(CallData)
		if x.Name != y.Name || x.Pure != y.Pure || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !c.expr(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	case RampData:
		y := b.Data.(RampData)
		return x.Lanes == y.Lanes && c.expr(x.Base, y.Base) && c.expr(x.Stride, y.Stride)
	case BroadcastData:
		y := b.Data.(BroadcastData)
		return x.Lanes == y.Lanes && c.expr(x.Value, y.Value)
	case CastData:
		return c.expr(x.Value, b.Data.(CastData).Value)
	}
	return false
}

func (c *equalizer) stmt(a, b *Stmt) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch x := a.Data.(type) {
	case ForData:
		y := b.Data.(ForData)
		return x.Name == y.Name && x.Kind == y.Kind &&
			c.expr(x.Min, y.Min) && c.expr(x.Extent, y.Extent) && c.stmt(x.Body, y.Body)
	case LetStmtData:
		y := b.Data.(LetStmtData)
		return x.Name == y.Name && c.expr(x.Value, y.Value) && c.stmt(x.Body, y.Body)
	case StoreData:
		y := b.Data.(StoreData)
		return x.Buffer == y.Buffer && c.expr(x.Value, y.Value) && c.expr(x.Index, y.Index)
	case IfData:
		y := b.Data.(IfData)
		return c.expr(x.Cond, y.Cond) && c.stmt(x.Then, y.Then) && c.stmt(x.Else, y.Else)
	case BlockData:
		y := b.Data.(BlockData)
		if len(x.Stmts) != len(y.Stmts) {
			return false
		}
		for i := range x.Stmts {
			if !c.stmt(x.Stmts[i], y.Stmts[i]) {
				return false
			}
		}
		return true
	case EvaluateData:
		return c.expr(x.Value, b.Data.(EvaluateData).Value)
	case AllocateData:
		y := b.Data.(AllocateData)
		return x.Name == y.Name && x.Type == y.Type && x.Shared == y.Shared &&
			c.expr(x.Size, y.Size) && c.stmt(x.Body, y.Body)
	}
	return false
}

// Compare is a total order on expressions: negative if a sorts before b,
// zero if they are structurally equal, positive otherwise. It orders by
// kind, then type, then payload, recursing into children left to right.
func Compare(a, b *Expr) int {
	if a == b {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if r := cmp.Compare(a.Kind, b.Kind); r != 0 {
		return r
	}
	if r := compareType(a.Type, b.Type); r != 0 {
		return r
	}
	switch x := a.Data.(type) {
	case ConstData:
		y := b.Data.(ConstData)
		if r := cmp.Compare(x.Int, y.Int); r != 0 {
			return r
		}
		return cmp.Compare(x.Float, y.Float)
	case InfData:
		y := b.Data.(InfData)
		switch {
		case x.Neg == y.Neg:
			return 0
		case x.Neg:
			return -1
		default:
			return 1
		}
	case VarData:
		return strings.Compare(x.Name, b.Data.(VarData).Name)
	case BinaryData:
		y := b.Data.(BinaryData)
		return compareSeq(x.A, y.A, x.B, y.B)
	case UnaryData:
		return Compare(x.A, b.Data.(UnaryData).A)
	case SelectData:
		y := b.Data.(SelectData)
		return compareSeq(x.Cond, y.Cond, x.True, y.True, x.False, y.False)
	case LetData:
		y := b.Data.(LetData)
		if r := strings.Compare(x.Name, y.Name); r != 0 {
			return r
		}
		return compareSeq(x.Value, y.Value, x.Body, y.Body)
	case LoadData:
		y := b.Data.(LoadData)
		if r := strings.Compare(x.Buffer, y.Buffer); r != 0 {
			return r
		}
		return Compare(x.Index, y.Index)
	case CallData:
		y := b.Data.(CallData)
		if r := strings.Compare(x.Name, y.Name); r != 0 {
			return r
		}
		if r := cmp.Compare(len(x.Args), len(y.Args)); r != 0 {
			return r
		}
		for i := range x.Args {
			if r := Compare(x.Args[i], y.Args[i]); r != 0 {
				return r
			}
		}
		return 0
	case RampData:
		y := b.Data.(RampData)
		if r := cmp.Compare(x.Lanes, y.Lanes); r != 0 {
			return r
		}
		return compareSeq(x.Base, y.Base, x.Stride, y.Stride)
	case BroadcastData:
		y := b.Data.(BroadcastData)
		if r := cmp.Compare(x.Lanes, y.Lanes); r != 0 {
			return r
		}
		return Compare(x.Value, y.Value)
	case CastData:
		return Compare(x.Value, b.Data.(CastData).Value)
	}
	return 0
}

// compareSeq compares pairs (a0,b0), (a1,b1), ... lexicographically.
func compareSeq(pairs ...*Expr) int {
	for i := 0; i+1 < len(pairs); i += 2 {
		if r := Compare(pairs[i], pairs[i+1]); r != 0 {
			return r
		}
	}
	return 0
}

func compareType(a, b Type) int {
	if r := cmp.Compare(a.Kind, b.Kind); r != 0 {
		return r
	}
	if r := cmp.Compare(a.Bits, b.Bits); r != 0 {
		return r
	}
	return cmp.Compare(a.Lanes, b.Lanes)
}
