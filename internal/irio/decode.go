package irio

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/text/unicode/norm"

	"loopopt/internal/ir"
)

// ErrSchema is returned for files written with another wire layout.
var ErrSchema = errors.New("unsupported schema version")

// Decode reads a file written by Encode. Names are normalized to NFC so
// that programs produced by different tools compare equal.
func Decode(r io.Reader) (f *File, err error) {
	var wf wireFile
	if err := msgpack.NewDecoder(r).Decode(&wf); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if wf.Schema != SchemaVersion {
		return nil, fmt.Errorf("decode: %w %d, want %d", ErrSchema, wf.Schema, SchemaVersion)
	}
	// Constructors assert operand types; a corrupt table must not panic.
	defer ir.RecoverInternal(&err)

	d := decoder{wf: &wf, exprs: make([]*ir.Expr, 0, len(wf.Exprs))}
	for i := range wf.Exprs {
		e, err := d.expr(i)
		if err != nil {
			return nil, fmt.Errorf("decode expression %d: %w", i, err)
		}
		d.exprs = append(d.exprs, e)
	}
	d.stmts = make([]*ir.Stmt, 0, len(wf.Stmts))
	for i := range wf.Stmts {
		s, err := d.stmt(i)
		if err != nil {
			return nil, fmt.Errorf("decode statement %d: %w", i, err)
		}
		d.stmts = append(d.stmts, s)
	}
	root, err := d.stmtRef(wf.Root, len(d.stmts))
	if err != nil {
		return nil, fmt.Errorf("decode root: %w", err)
	}
	out := &File{Name: wf.Name, Program: root}
	if len(wf.Buffers) > 0 {
		out.Buffers = make(map[string]int, len(wf.Buffers))
		for name, size := range wf.Buffers {
			if size < 0 {
				return nil, fmt.Errorf("decode: buffer %s has negative size %d", name, size)
			}
			out.Buffers[nfc(name)] = size
		}
	}
	return out, nil
}

func nfc(s string) string { return norm.NFC.String(s) }

type decoder struct {
	wf    *wireFile
	exprs []*ir.Expr
	stmts []*ir.Stmt
}

func fromWireType(w wireType) ir.Type {
	return ir.Type{Kind: ir.TypeKind(w.Kind), Bits: w.Bits, Lanes: w.Lanes}
}

// args resolves expression references; each must point before self.
func (d *decoder) args(ids []int32, want, self int) ([]*ir.Expr, error) {
	if want >= 0 && len(ids) != want {
		return nil, fmt.Errorf("%d operands, want %d", len(ids), want)
	}
	out := make([]*ir.Expr, len(ids))
	for i, id := range ids {
		if id < 0 || int(id) >= self {
			return nil, fmt.Errorf("operand %d refers to expression %d", i, id)
		}
		out[i] = d.exprs[id]
	}
	return out, nil
}

func (d *decoder) expr(i int) (*ir.Expr, error) {
	w := d.wf.Exprs[i]
	t := fromWireType(w.Type)
	k := ir.ExprKind(w.Kind)
	var a []*ir.Expr
	var err error
	switch {
	case k == ir.ExprConst || k == ir.ExprInf || k == ir.ExprVar:
		a, err = d.args(w.Args, 0, i)
	case k.IsBinary():
		a, err = d.args(w.Args, 2, i)
	case k == ir.ExprSelect:
		a, err = d.args(w.Args, 3, i)
	case k == ir.ExprLet || k == ir.ExprRamp:
		a, err = d.args(w.Args, 2, i)
	case k == ir.ExprCall:
		a, err = d.args(w.Args, -1, i)
	default:
		a, err = d.args(w.Args, 1, i)
	}
	if err != nil {
		return nil, err
	}

	var e *ir.Expr
	switch {
	case k == ir.ExprConst && t.IsFloat():
		e = ir.FloatConst(t, w.Float)
	case k == ir.ExprConst:
		e = ir.Const(t, w.Int)
	case k == ir.ExprInf:
		e = ir.Inf(t, w.Flag)
	case k == ir.ExprVar:
		e = ir.Var(nfc(w.Name), t)
	case k.IsBinary():
		e = ir.Binary(k, a[0], a[1])
	case k == ir.ExprNot:
		e = ir.Not(a[0])
	case k == ir.ExprLikely:
		e = ir.Likely(a[0])
	case k == ir.ExprSelect:
		e = ir.Select(a[0], a[1], a[2])
	case k == ir.ExprLet:
		e = ir.Let(nfc(w.Name), a[0], a[1])
	case k == ir.ExprLoad:
		e = ir.Load(t, nfc(w.Name), a[0])
	case k == ir.ExprCall:
		e = ir.Call(t, nfc(w.Name), w.Flag, a...)
	case k == ir.ExprRamp:
		e = ir.Ramp(a[0], a[1], int(w.Lanes))
	case k == ir.ExprBroadcast:
		e = ir.Broadcast(a[0], int(w.Lanes))
	case k == ir.ExprCast:
		e = ir.Cast(t, a[0])
	default:
		return nil, fmt.Errorf("unknown expression kind %d", w.Kind)
	}
	if e.Type != t {
		return nil, fmt.Errorf("%s has type %s, file says %s", k, e.Type, t)
	}
	return e, nil
}

func (d *decoder) stmtRef(id int32, self int) (*ir.Stmt, error) {
	if id == none {
		return nil, nil
	}
	if id < 0 || int(id) >= self {
		return nil, fmt.Errorf("refers to statement %d", id)
	}
	return d.stmts[id], nil
}

func (d *decoder) children(w wireStmt, nexprs, nstmts, self int) ([]*ir.Expr, []*ir.Stmt, error) {
	es, err := d.args(w.Exprs, nexprs, len(d.exprs))
	if err != nil {
		return nil, nil, err
	}
	if nstmts >= 0 && len(w.Stmts) != nstmts {
		return nil, nil, fmt.Errorf("%d children, want %d", len(w.Stmts), nstmts)
	}
	ss := make([]*ir.Stmt, len(w.Stmts))
	for i, id := range w.Stmts {
		if ss[i], err = d.stmtRef(id, self); err != nil {
			return nil, nil, err
		}
	}
	return es, ss, nil
}

func (d *decoder) stmt(i int) (*ir.Stmt, error) {
	w := d.wf.Stmts[i]
	switch ir.StmtKind(w.Kind) {
	case ir.StmtFor:
		es, ss, err := d.children(w, 2, 1, i)
		if err != nil {
			return nil, err
		}
		return ir.For(nfc(w.Name), es[0], es[1], ir.ForKind(w.Loop), ss[0]), nil
	case ir.StmtLet:
		es, ss, err := d.children(w, 1, 1, i)
		if err != nil {
			return nil, err
		}
		return ir.LetStmt(nfc(w.Name), es[0], ss[0]), nil
	case ir.StmtStore:
		es, _, err := d.children(w, 2, 0, i)
		if err != nil {
			return nil, err
		}
		return ir.Store(nfc(w.Name), es[0], es[1]), nil
	case ir.StmtIf:
		es, ss, err := d.children(w, 1, 2, i)
		if err != nil {
			return nil, err
		}
		return ir.IfThenElse(es[0], ss[0], ss[1]), nil
	case ir.StmtBlock:
		_, ss, err := d.children(w, 0, -1, i)
		if err != nil {
			return nil, err
		}
		return ir.Block(ss...), nil
	case ir.StmtEvaluate:
		es, _, err := d.children(w, 1, 0, i)
		if err != nil {
			return nil, err
		}
		return ir.Evaluate(es[0]), nil
	case ir.StmtAllocate:
		es, ss, err := d.children(w, 1, 1, i)
		if err != nil {
			return nil, err
		}
		return ir.Allocate(nfc(w.Name), fromWireType(w.Type), es[0], w.Shared, ss[0]), nil
	default:
		return nil, fmt.Errorf("unknown statement kind %d", w.Kind)
	}
}
