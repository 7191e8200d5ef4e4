package ir

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	// StmtFor is a counted loop over [Min, Min+Extent).
	StmtFor StmtKind = iota
	// StmtLet binds a name for the duration of its body.
	StmtLet
	// StmtStore writes a value into a buffer.
	StmtStore
	// StmtIf is a conditional with an optional else branch.
	StmtIf
	// StmtBlock runs its children in order.
	StmtBlock
	// StmtEvaluate evaluates an expression for its effects.
	StmtEvaluate
	// StmtAllocate introduces a buffer for the duration of its body.
	StmtAllocate
)

// String returns a human-readable name for the statement kind.
func (k StmtKind) String() string {
	switch k {
	case StmtFor:
		return "For"
	case StmtLet:
		return "Let"
	case StmtStore:
		return "Store"
	case StmtIf:
		return "If"
	case StmtBlock:
		return "Block"
	case StmtEvaluate:
		return "Evaluate"
	case StmtAllocate:
		return "Allocate"
	default:
		return "Unknown"
	}
}

// ForKind says how the iterations of a loop are executed.
type ForKind uint8

const (
	// ForSerial runs iterations in order. It is the only kind that may be
	// split into consecutive sub-loops.
	ForSerial ForKind = iota
	ForParallel
	ForVectorized
	ForUnrolled
	// ForGPUBlock and ForGPUThread are device loops; the loop variables are
	// hardware indices.
	ForGPUBlock
	ForGPUThread
)

// String returns a human-readable name for the loop kind.
func (k ForKind) String() string {
	switch k {
	case ForSerial:
		return "serial"
	case ForParallel:
		return "parallel"
	case ForVectorized:
		return "vectorized"
	case ForUnrolled:
		return "unrolled"
	case ForGPUBlock:
		return "gpu_block"
	case ForGPUThread:
		return "gpu_thread"
	default:
		return "unknown"
	}
}

// IsGPU reports whether the loop runs on a device.
func (k ForKind) IsGPU() bool { return k == ForGPUBlock || k == ForGPUThread }

// Stmt is an immutable statement node. A nil *Stmt is the empty statement.
type Stmt struct {
	Kind StmtKind
	Data StmtData
}

// StmtData is implemented by all statement payloads.
type StmtData interface {
	stmtData()
}

// ForData holds a loop.
type ForData struct {
	Name   string
	Min    *Expr
	Extent *Expr
	Kind   ForKind
	Body   *Stmt
}

// LetStmtData binds Name to Value inside Body.
type LetStmtData struct {
	Name  string
	Value *Expr
	Body  *Stmt
}

// StoreData writes Value to Buffer at Index.
type StoreData struct {
	Buffer string
	Value  *Expr
	Index  *Expr
}

// IfData holds a conditional. Else may be nil.
type IfData struct {
	Cond *Expr
	Then *Stmt
	Else *Stmt
}

// BlockData holds a sequence of at least two statements.
type BlockData struct {
	Stmts []*Stmt
}

// EvaluateData holds an expression evaluated for its effects.
type EvaluateData struct {
	Value *Expr
}

// AllocateData introduces buffer Name of Size elements. Shared marks
// device memory shared by all threads of a block.
type AllocateData struct {
	Name   string
	Type   Type
	Size   *Expr
	Shared bool
	Body   *Stmt
}

func (ForData) stmtData()      {}
func (LetStmtData) stmtData()  {}
func (StoreData) stmtData()    {}
func (IfData) stmtData()       {}
func (BlockData) stmtData()    {}
func (EvaluateData) stmtData() {}
func (AllocateData) stmtData() {}

// For returns the loop payload of s, if s is a loop.
func (s *Stmt) For() (ForData, bool) {
	if s == nil || s.Kind != StmtFor {
		return ForData{}, false
	}
	return s.Data.(ForData), true
}

// String renders s as indented pseudo-code.
func (s *Stmt) String() string {
	return FormatStmt(s)
}
