package ir

// ExprKind enumerates expression node kinds.
type ExprKind uint8

const (
	// ExprConst is an integer, float or boolean literal.
	ExprConst ExprKind = iota
	// ExprInf is the positive or negative infinity sentinel used by intervals.
	ExprInf
	// ExprVar is a reference to a named variable.
	ExprVar
	ExprAdd
	ExprSub
	ExprMul
	// ExprDiv is Euclidean division for integers. Division by zero yields zero.
	ExprDiv
	// ExprMod is the Euclidean remainder, always in [0, |b|).
	ExprMod
	ExprMin
	ExprMax
	ExprEQ
	ExprNE
	ExprLT
	ExprLE
	ExprGT
	ExprGE
	ExprAnd
	ExprOr
	ExprNot
	// ExprSelect is a value-level conditional; both arms are side-effect free.
	ExprSelect
	// ExprLet binds a name for the duration of its body.
	ExprLet
	// ExprLoad reads one element (or one element per lane) of a buffer.
	ExprLoad
	// ExprCall invokes an intrinsic or extern function.
	ExprCall
	// ExprRamp is the vector base, base+stride, ..., base+(lanes-1)*stride.
	ExprRamp
	// ExprBroadcast replicates a scalar across lanes.
	ExprBroadcast
	// ExprCast converts a value to another type.
	ExprCast
	// ExprLikely marks its operand as the expected fast path.
	ExprLikely
)

// String returns a human-readable name for the expression kind.
func (k ExprKind) String() string {
	switch k {
	case ExprConst:
		return "Const"
	case ExprInf:
		return "Inf"
	case ExprVar:
		return "Var"
	case ExprAdd:
		return "Add"
	case ExprSub:
		return "Sub"
	case ExprMul:
		return "Mul"
	case ExprDiv:
		return "Div"
	case ExprMod:
		return "Mod"
	case ExprMin:
		return "Min"
	case ExprMax:
		return "Max"
	case ExprEQ:
		return "EQ"
	case ExprNE:
		return "NE"
	case ExprLT:
		return "LT"
	case ExprLE:
		return "LE"
	case ExprGT:
		return "GT"
	case ExprGE:
		return "GE"
	case ExprAnd:
		return "And"
	case ExprOr:
		return "Or"
	case ExprNot:
		return "Not"
	case ExprSelect:
		return "Select"
	case ExprLet:
		return "Let"
	case ExprLoad:
		return "Load"
	case ExprCall:
		return "Call"
	case ExprRamp:
		return "Ramp"
	case ExprBroadcast:
		return "Broadcast"
	case ExprCast:
		return "Cast"
	case ExprLikely:
		return "Likely"
	default:
		return "Unknown"
	}
}

// IsBinary reports whether k carries a BinaryData payload.
func (k ExprKind) IsBinary() bool {
	return k >= ExprAdd && k <= ExprOr
}

// IsArith reports whether k is one of Add, Sub, Mul, Div, Mod.
func (k ExprKind) IsArith() bool {
	return k >= ExprAdd && k <= ExprMod
}

// IsCompare reports whether k is a comparison.
func (k ExprKind) IsCompare() bool {
	return k >= ExprEQ && k <= ExprGE
}

// IsCommutative reports whether the operands of k may be swapped freely.
func (k ExprKind) IsCommutative() bool {
	switch k {
	case ExprAdd, ExprMul, ExprMin, ExprMax, ExprEQ, ExprNE, ExprAnd, ExprOr:
		return true
	}
	return false
}

// Expr is an immutable expression node. Nodes are shared freely between
// trees; rewriting always allocates new nodes.
type Expr struct {
	Kind ExprKind
	Type Type
	Data ExprData

	hash uint64
}

// ExprData is implemented by all expression payloads.
type ExprData interface {
	exprData()
}

// ConstData holds a literal. Integer and boolean literals use Int,
// float literals use Float.
type ConstData struct {
	Int   int64
	Float float64
}

// InfData holds the sign of an infinity sentinel.
type InfData struct {
	Neg bool
}

// VarData names a variable.
type VarData struct {
	Name string
}

// BinaryData holds the operands of arithmetic, comparison, min/max and
// boolean connective nodes.
type BinaryData struct {
	A, B *Expr
}

// UnaryData holds the operand of Not and Likely.
type UnaryData struct {
	A *Expr
}

// SelectData holds a value-level conditional.
type SelectData struct {
	Cond, True, False *Expr
}

// LetData binds Name to Value inside Body.
type LetData struct {
	Name  string
	Value *Expr
	Body  *Expr
}

// LoadData reads Buffer at Index.
type LoadData struct {
	Buffer string
	Index  *Expr
}

// CallData invokes Name. Impure calls have externally observable effects.
type CallData struct {
	Name string
	Args []*Expr
	Pure bool
}

// RampData holds a linear vector.
type RampData struct {
	Base, Stride *Expr
	Lanes        int
}

// BroadcastData replicates Value across Lanes.
type BroadcastData struct {
	Value *Expr
	Lanes int
}

// CastData converts Value to the node's type.
type CastData struct {
	Value *Expr
}

func (ConstData) exprData()     {}
func (InfData) exprData()       {}
func (VarData) exprData()       {}
func (BinaryData) exprData()    {}
func (UnaryData) exprData()     {}
func (SelectData) exprData()    {}
func (LetData) exprData()       {}
func (LoadData) exprData()      {}
func (CallData) exprData()      {}
func (RampData) exprData()      {}
func (BroadcastData) exprData() {}
func (CastData) exprData()      {}

// Binary returns the operands of a binary node.
func (e *Expr) Binary() (a, b *Expr, ok bool) {
	if e == nil {
		return nil, nil, false
	}
	d, ok := e.Data.(BinaryData)
	if !ok {
		return nil, nil, false
	}
	return d.A, d.B, true
}

// Operand returns the single operand of a Not or Likely node.
func (e *Expr) Operand() *Expr {
	if e == nil {
		return nil
	}
	if d, ok := e.Data.(UnaryData); ok {
		return d.A
	}
	return nil
}

// VarName returns the variable name of a Var node, or "".
func (e *Expr) VarName() string {
	if e == nil || e.Kind != ExprVar {
		return ""
	}
	return e.Data.(VarData).Name
}

// IsVar reports whether e is a reference to name.
func (e *Expr) IsVar(name string) bool {
	return e != nil && e.Kind == ExprVar && e.Data.(VarData).Name == name
}

// Is reports whether e is non-nil and of kind k.
func (e *Expr) Is(k ExprKind) bool {
	return e != nil && e.Kind == k
}

// String renders e in infix form.
func (e *Expr) String() string {
	return FormatExpr(e)
}
