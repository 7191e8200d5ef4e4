package testkit

import (
	"errors"
	"fmt"

	"loopopt/internal/ir"
)

// Loops returns every loop of s in pre-order.
func Loops(s *ir.Stmt) []ir.ForData {
	var out []ir.ForData
	ir.VisitStmt(s, func(st *ir.Stmt) bool {
		if d, ok := st.For(); ok {
			out = append(out, d)
		}
		return true
	}, nil)
	return out
}

// CountExpr counts the nodes of kind k in the expressions of s.
func CountExpr(s *ir.Stmt, k ir.ExprKind) int {
	n := 0
	ir.VisitStmt(s, nil, func(e *ir.Expr) {
		ir.VisitExpr(e, func(c *ir.Expr) bool {
			if c.Kind == k {
				n++
			}
			return true
		})
	})
	return n
}

// CountStmt counts the statements of kind k in s.
func CountStmt(s *ir.Stmt, k ir.StmtKind) int {
	n := 0
	ir.VisitStmt(s, func(st *ir.Stmt) bool {
		if st.Kind == k {
			n++
		}
		return true
	}, nil)
	return n
}

// CheckPassInvariants runs the checks every pass output must satisfy:
// 1) the program is structurally valid
// 2) no infinity sentinel escaped into the program
// 3) no loop variable is bound twice on the same path
func CheckPassInvariants(s *ir.Stmt) error {
	var errs []error
	if err := ir.Validate(s); err != nil {
		errs = append(errs, err)
	}
	if n := CountExpr(s, ir.ExprInf); n > 0 {
		errs = append(errs, fmt.Errorf("%d infinity sentinels in the program", n))
	}
	errs = append(errs, checkLoopNames(s, map[string]bool{})...)
	return errors.Join(errs...)
}

func checkLoopNames(s *ir.Stmt, open map[string]bool) []error {
	if s == nil {
		return nil
	}
	var errs []error
	d, isFor := s.For()
	if isFor {
		if open[d.Name] {
			errs = append(errs, fmt.Errorf("loop %s nested inside a loop of the same name", d.Name))
		}
		open[d.Name] = true
		defer delete(open, d.Name)
		return append(errs, checkLoopNames(d.Body, open)...)
	}
	ir.MutateStmtChildren(s, nil, func(c *ir.Stmt) *ir.Stmt {
		errs = append(errs, checkLoopNames(c, open)...)
		return c
	})
	return errs
}
