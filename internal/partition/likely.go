package partition

import "loopopt/internal/ir"

// MarkClampedRampsAsLikely tags the ramp operand of a Min or Max inside
// a buffer index as likely. Such clamps keep vector accesses in bounds
// and are inactive away from the edges of the buffer.
func MarkClampedRampsAsLikely(s *ir.Stmt) *ir.Stmt {
	var expr func(e *ir.Expr, index bool) *ir.Expr
	expr = func(e *ir.Expr, index bool) *ir.Expr {
		switch e.Kind {
		case ir.ExprMin, ir.ExprMax:
			if !index {
				break
			}
			a, b, _ := e.Binary()
			switch {
			case a.Kind == ir.ExprRamp:
				return ir.Binary(e.Kind, ir.Likely(a), expr(b, true))
			case b.Kind == ir.ExprRamp:
				return ir.Binary(e.Kind, expr(a, true), ir.Likely(b))
			}
		case ir.ExprLoad:
			index = true
		}
		return ir.MutateChildren(e, func(c *ir.Expr) *ir.Expr { return expr(c, index) })
	}
	var stmt func(*ir.Stmt) *ir.Stmt
	stmt = func(s *ir.Stmt) *ir.Stmt {
		if s == nil {
			return nil
		}
		if d, ok := s.Data.(ir.StoreData); ok {
			index, value := expr(d.Index, true), expr(d.Value, false)
			if index == d.Index && value == d.Value {
				return s
			}
			return ir.Store(d.Buffer, value, index)
		}
		return ir.MutateStmtChildren(s, func(e *ir.Expr) *ir.Expr { return expr(e, false) }, stmt)
	}
	return stmt(s)
}

// RemoveLikelyTags strips every likely tag left in s.
func RemoveLikelyTags(s *ir.Stmt) *ir.Stmt {
	var stmt func(*ir.Stmt) *ir.Stmt
	stmt = func(s *ir.Stmt) *ir.Stmt { return ir.MutateStmtChildren(s, removeLikely, stmt) }
	return stmt(s)
}

func removeLikely(e *ir.Expr) *ir.Expr {
	if e.Kind == ir.ExprLikely {
		return removeLikely(e.Operand())
	}
	if !hasLikely(e) {
		return e
	}
	return ir.MutateChildren(e, removeLikely)
}
