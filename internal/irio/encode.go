// Package irio reads and writes loop programs as msgpack files.
//
// A file holds one statement tree, the buffer sizes it runs against and
// an optional program name. Expression and statement nodes are written to
// flat tables indexed by position, which keeps shared subtrees shared
// after a round trip.
package irio

import (
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"loopopt/internal/ir"
)

// File is a program together with the buffers it reads and writes.
type File struct {
	Name    string
	Program *ir.Stmt
	Buffers map[string]int
}

// Encode writes f to w.
func Encode(w io.Writer, f *File) error {
	enc := encoder{
		exprIDs: make(map[*ir.Expr]int32),
		stmtIDs: make(map[*ir.Stmt]int32),
	}
	root, err := enc.stmt(f.Program)
	if err != nil {
		return err
	}
	wf := wireFile{
		Schema:  SchemaVersion,
		Name:    f.Name,
		Buffers: f.Buffers,
		Exprs:   enc.exprs,
		Stmts:   enc.stmts,
		Root:    root,
	}
	if err := msgpack.NewEncoder(w).Encode(&wf); err != nil {
		return fmt.Errorf("encode %s: %w", f.Name, err)
	}
	return nil
}

type encoder struct {
	exprs   []wireExpr
	stmts   []wireStmt
	exprIDs map[*ir.Expr]int32
	stmtIDs map[*ir.Stmt]int32
}

func toWireType(t ir.Type) wireType {
	return wireType{Kind: uint8(t.Kind), Bits: t.Bits, Lanes: t.Lanes}
}

func (c *encoder) exprList(es ...*ir.Expr) ([]int32, error) {
	out := make([]int32, len(es))
	for i, e := range es {
		id, err := c.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func (c *encoder) expr(e *ir.Expr) (int32, error) {
	if e == nil {
		return 0, fmt.Errorf("nil expression")
	}
	if id, ok := c.exprIDs[e]; ok {
		return id, nil
	}
	w := wireExpr{Kind: uint8(e.Kind), Type: toWireType(e.Type)}
	var err error
	switch d := e.Data.(type) {
	case ir.ConstData:
		w.Int, w.Float = d.Int, d.Float
	case ir.InfData:
		w.Flag = d.Neg
	case ir.VarData:
		w.Name = d.Name
	case ir.BinaryData:
		w.Args, err = c.exprList(d.A, d.B)
	case ir.UnaryData:
		w.Args, err = c.exprList(d.A)
	case ir.SelectData:
		w.Args, err = c.exprList(d.Cond, d.True, d.False)
	case ir.LetData:
		w.Name = d.Name
		w.Args, err = c.exprList(d.Value, d.Body)
	case ir.LoadData:
		w.Name = d.Buffer
		w.Args, err = c.exprList(d.Index)
	case ir.CallData:
		w.Name, w.Flag = d.Name, d.Pure
		w.Args, err = c.exprList(d.Args...)
	case ir.RampData:
		w.Lanes, err = safecast.Conv[int32](d.Lanes)
		if err == nil {
			w.Args, err = c.exprList(d.Base, d.Stride)
		}
	case ir.BroadcastData:
		w.Lanes, err = safecast.Conv[int32](d.Lanes)
		if err == nil {
			w.Args, err = c.exprList(d.Value)
		}
	case ir.CastData:
		w.Args, err = c.exprList(d.Value)
	default:
		return 0, fmt.Errorf("cannot encode %s", e.Kind)
	}
	if err != nil {
		return 0, err
	}
	id, err := safecast.Conv[int32](len(c.exprs))
	if err != nil {
		return 0, fmt.Errorf("expression table: %w", err)
	}
	c.exprs = append(c.exprs, w)
	c.exprIDs[e] = id
	return id, nil
}

func (c *encoder) stmtList(ss ...*ir.Stmt) ([]int32, error) {
	out := make([]int32, len(ss))
	for i, s := range ss {
		id, err := c.stmt(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

func (c *encoder) stmt(s *ir.Stmt) (int32, error) {
	if s == nil {
		return none, nil
	}
	if id, ok := c.stmtIDs[s]; ok {
		return id, nil
	}
	w := wireStmt{Kind: uint8(s.Kind)}
	var err error
	switch d := s.Data.(type) {
	case ir.ForData:
		w.Name, w.Loop = d.Name, uint8(d.Kind)
		if w.Exprs, err = c.exprList(d.Min, d.Extent); err == nil {
			w.Stmts, err = c.stmtList(d.Body)
		}
	case ir.LetStmtData:
		w.Name = d.Name
		if w.Exprs, err = c.exprList(d.Value); err == nil {
			w.Stmts, err = c.stmtList(d.Body)
		}
	case ir.StoreData:
		w.Name = d.Buffer
		w.Exprs, err = c.exprList(d.Value, d.Index)
	case ir.IfData:
		if w.Exprs, err = c.exprList(d.Cond); err == nil {
			w.Stmts, err = c.stmtList(d.Then, d.Else)
		}
	case ir.BlockData:
		w.Stmts, err = c.stmtList(d.Stmts...)
	case ir.EvaluateData:
		w.Exprs, err = c.exprList(d.Value)
	case ir.AllocateData:
		w.Name, w.Type, w.Shared = d.Name, toWireType(d.Type), d.Shared
		if w.Exprs, err = c.exprList(d.Size); err == nil {
			w.Stmts, err = c.stmtList(d.Body)
		}
	default:
		return 0, fmt.Errorf("cannot encode %s", s.Kind)
	}
	if err != nil {
		return 0, err
	}
	id, err := safecast.Conv[int32](len(c.stmts))
	if err != nil {
		return 0, fmt.Errorf("statement table: %w", err)
	}
	c.stmts = append(c.stmts, w)
	c.stmtIDs[s] = id
	return id, nil
}
