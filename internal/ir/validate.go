package ir

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of a program: no missing
// operands, boolean conditions, scalar integer loop bounds and matching
// operand types. All violations are reported together.
func Validate(s *Stmt) error {
	v := validator{seen: make(map[*Expr]bool)}
	v.stmt(s)
	return errors.Join(v.errs...)
}

// ValidateExpr checks a single expression.
func ValidateExpr(e *Expr) error {
	v := validator{seen: make(map[*Expr]bool)}
	v.expr(e, "expression")
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
	seen map[*Expr]bool
}

func (v *validator) errorf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) expr(e *Expr, where string) {
	if e == nil {
		v.errorf("%s: missing expression", where)
		return
	}
	if v.seen[e] {
		return
	}
	v.seen[e] = true
	switch d := e.Data.(type) {
	case BinaryData:
		if d.A == nil || d.B == nil {
			v.errorf("%s: %s with missing operand", where, e.Kind)
			return
		}
		if d.A.Type != d.B.Type {
			v.errorf("%s: %s operands have types %s and %s", where, e.Kind, d.A.Type, d.B.Type)
		}
		if (e.Kind == ExprAnd || e.Kind == ExprOr) && !d.A.Type.IsBool() {
			v.errorf("%s: %s of non-boolean %s", where, e.Kind, d.A.Type)
		}
	case UnaryData:
		if e.Kind == ExprNot && d.A != nil && !d.A.Type.IsBool() {
			v.errorf("%s: Not of non-boolean %s", where, d.A.Type)
		}
	case SelectData:
		if d.Cond != nil && !d.Cond.Type.IsBool() {
			v.errorf("%s: select condition %s has type %s", where, FormatExpr(d.Cond), d.Cond.Type)
		}
	case LetData:
		if d.Name == "" {
			v.errorf("%s: let with empty name", where)
		}
	case VarData:
		if d.Name == "" {
			v.errorf("%s: variable with empty name", where)
		}
	}
	for _, c := range Children(e) {
		v.expr(c, where)
	}
}

func (v *validator) cond(e *Expr, where string) {
	v.expr(e, where)
	if e != nil && !e.Type.IsBool() {
		v.errorf("%s: condition %s has type %s", where, FormatExpr(e), e.Type)
	}
}

func (v *validator) bound(e *Expr, where string) {
	v.expr(e, where)
	if e != nil && (!e.Type.IsIntLike() || e.Type.IsVector()) {
		v.errorf("%s: loop bound %s has type %s", where, FormatExpr(e), e.Type)
	}
}

func (v *validator) stmt(s *Stmt) {
	if s == nil {
		return
	}
	switch d := s.Data.(type) {
	case ForData:
		where := "for " + d.Name
		if d.Name == "" {
			v.errorf("loop with empty name")
		}
		v.bound(d.Min, where+" min")
		v.bound(d.Extent, where+" extent")
		v.stmt(d.Body)
	case LetStmtData:
		if d.Name == "" {
			v.errorf("let statement with empty name")
		}
		v.expr(d.Value, "let "+d.Name)
		v.stmt(d.Body)
	case StoreData:
		where := "store to " + d.Buffer
		v.expr(d.Value, where)
		v.expr(d.Index, where+" index")
		if d.Value != nil && d.Index != nil && d.Value.Type.Lanes != d.Index.Type.Lanes {
			v.errorf("%s: value has %d lanes but index has %d", where, d.Value.Type.Lanes, d.Index.Type.Lanes)
		}
	case IfData:
		v.cond(d.Cond, "if")
		v.stmt(d.Then)
		v.stmt(d.Else)
	case BlockData:
		for _, c := range d.Stmts {
			v.stmt(c)
		}
	case EvaluateData:
		v.expr(d.Value, "evaluate")
	case AllocateData:
		v.bound(d.Size, "allocate "+d.Name)
		v.stmt(d.Body)
	default:
		v.errorf("unknown statement kind %s", s.Kind)
	}
}
