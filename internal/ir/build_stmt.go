package ir

// For returns a loop of the given kind over [min, min+extent).
func For(name string, min, extent *Expr, kind ForKind, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtFor, Data: ForData{Name: name, Min: min, Extent: extent, Kind: kind, Body: body}}
}

// LetStmt binds name to value within body.
func LetStmt(name string, value *Expr, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtLet, Data: LetStmtData{Name: name, Value: value, Body: body}}
}

// Store writes value into buffer at index.
func Store(buffer string, value, index *Expr) *Stmt {
	return &Stmt{Kind: StmtStore, Data: StoreData{Buffer: buffer, Value: value, Index: index}}
}

// IfThenElse returns a conditional. elseCase may be nil.
func IfThenElse(cond *Expr, thenCase, elseCase *Stmt) *Stmt {
	return &Stmt{Kind: StmtIf, Data: IfData{Cond: cond, Then: thenCase, Else: elseCase}}
}

// Block sequences stmts, dropping empty statements and flattening nested
// blocks. It returns nil for an empty sequence and the statement itself
// for a sequence of one.
func Block(stmts ...*Stmt) *Stmt {
	flat := make([]*Stmt, 0, len(stmts))
	for _, s := range stmts {
		if s == nil {
			continue
		}
		if s.Kind == StmtBlock {
			flat = append(flat, s.Data.(BlockData).Stmts...)
			continue
		}
		flat = append(flat, s)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &Stmt{Kind: StmtBlock, Data: BlockData{Stmts: flat}}
}

// Evaluate evaluates value for its effects.
func Evaluate(value *Expr) *Stmt {
	return &Stmt{Kind: StmtEvaluate, Data: EvaluateData{Value: value}}
}

// Allocate introduces buffer name of size elements of type t within body.
func Allocate(name string, t Type, size *Expr, shared bool, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtAllocate, Data: AllocateData{Name: name, Type: t, Size: size, Shared: shared, Body: body}}
}

// LoopEnd returns min + extent for a loop payload.
func (f ForData) LoopEnd() *Expr { return Add(f.Min, f.Extent) }

// LoopMax returns the last iteration value, min + extent - 1.
func (f ForData) LoopMax() *Expr { return Sub(Add(f.Min, f.Extent), One(f.Min.Type)) }
