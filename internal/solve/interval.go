package solve

import (
	"loopopt/internal/bounds"
	"loopopt/internal/ir"
	"loopopt/internal/simplify"
)

// Outer returns an interval of v outside of which cond is certainly false.
// When no useful bound is found the interval is everything.
func Outer(cond *ir.Expr, v string) bounds.Interval {
	return solveInterval(cond, v, true)
}

// Inner returns an interval of v inside of which cond is certainly true.
// When no useful bound is found the interval is empty.
func Inner(cond *ir.Expr, v string) bounds.Interval {
	return solveInterval(cond, v, false)
}

func solveInterval(cond *ir.Expr, v string, outer bool) bounds.Interval {
	s := &intervalSolver{
		v:      v,
		outer:  outer,
		target: true,
		scope:  ir.NewScope[*ir.Expr](),
		memo:   make(map[varTarget]bounds.Interval),
	}
	r := s.visit(cond)
	ir.Assertf(ir.IsInf(r.Min) || !ir.UsesVar(r.Min, v),
		"interval lower bound %s depends on %s", r.Min, v)
	ir.Assertf(ir.IsInf(r.Max) || !ir.UsesVar(r.Max, v),
		"interval upper bound %s depends on %s", r.Max, v)
	return r.Simplified()
}

type varTarget struct {
	name   string
	target bool
}

// intervalSolver walks a boolean expression looking for the values of v
// that make it equal to target. Not flips the target, so And and Or swap
// roles between intersection and union below a negation.
type intervalSolver struct {
	v      string
	outer  bool
	target bool
	scope  *ir.Scope[*ir.Expr]
	memo   map[varTarget]bounds.Interval

	// alreadySolved is set while visiting the output of Expr, which has
	// the variable isolated on the left of each comparison.
	alreadySolved bool
}

// fail returns the interval that is safe to assume with no information:
// everything for an outer bound, nothing for an inner one.
func (s *intervalSolver) fail() bounds.Interval {
	if s.outer {
		return bounds.Everything()
	}
	return bounds.Nothing()
}

func (s *intervalSolver) visit(e *ir.Expr) bounds.Interval {
	switch e.Kind {
	case ir.ExprConst:
		switch {
		case !e.Type.IsBool():
			return s.fail()
		case ir.IsTrue(e) == s.target:
			return bounds.Everything()
		default:
			return bounds.Nothing()
		}
	case ir.ExprLikely:
		return s.visit(e.Operand())
	case ir.ExprAnd, ir.ExprOr:
		a, b, _ := e.Binary()
		ia, ib := s.visit(a), s.visit(b)
		if (e.Kind == ir.ExprAnd) == s.target {
			return bounds.Intersect(ia, ib)
		}
		return s.union(ia, ib)
	case ir.ExprNot:
		s.target = !s.target
		r := s.visit(e.Operand())
		s.target = !s.target
		return r
	case ir.ExprLet:
		return s.let(e.Data.(ir.LetData))
	case ir.ExprVar:
		return s.variable(e)
	case ir.ExprLT, ir.ExprGT:
		a, b, _ := e.Binary()
		if a.Type.Element().IsFloat() {
			// There is no next representable value to step to. An outer
			// bound may include the boundary point; an inner one may not.
			if !s.outer {
				return s.fail()
			}
			if e.Kind == ir.ExprLT {
				return s.visit(ir.LE(a, b))
			}
			return s.visit(ir.GE(a, b))
		}
		if e.Kind == ir.ExprLT {
			return s.visit(ir.LE(a, ir.Sub(b, ir.One(b.Type))))
		}
		return s.visit(ir.GE(a, ir.Add(b, ir.One(b.Type))))
	case ir.ExprLE, ir.ExprGE:
		return s.inequality(e)
	}
	return s.fail()
}

// union joins the intervals of two alternatives. The hull of two disjoint
// intervals contains points where neither holds, so an inner bound only
// takes the hull when the pieces provably touch and otherwise keeps one
// of them.
func (s *intervalSolver) union(a, b bounds.Interval) bounds.Interval {
	if s.outer || a.IsEmpty() || b.IsEmpty() {
		return bounds.Union(a, b)
	}
	if reaches(a.Min, b.Max) && reaches(b.Min, a.Max) {
		return bounds.Union(a, b)
	}
	return a
}

// reaches reports whether lo <= hi + 1 is provable.
func reaches(lo, hi *ir.Expr) bool {
	switch {
	case ir.IsNegInf(lo), ir.IsPosInf(hi):
		return true
	case ir.IsInf(lo), ir.IsInf(hi):
		return false
	}
	return simplify.CanProve(ir.LE(lo, ir.Add(hi, ir.One(hi.Type))))
}

func (s *intervalSolver) let(d ir.LetData) bounds.Interval {
	s.scope.Push(d.Name, d.Value)
	r := s.visit(d.Body)
	s.scope.Pop(d.Name)
	wrap := func(e *ir.Expr) *ir.Expr {
		if !ir.IsInf(e) && ir.UsesVar(e, d.Name) {
			return ir.Let(d.Name, d.Value, e)
		}
		return e
	}
	return bounds.Interval{Min: wrap(r.Min), Max: wrap(r.Max)}
}

// variable solves a boolean let variable on first use for each target.
func (s *intervalSolver) variable(e *ir.Expr) bounds.Interval {
	name := e.VarName()
	value, ok := s.scope.Get(name)
	if !ok || !e.Type.IsBool() {
		return s.fail()
	}
	key := varTarget{name, s.target}
	if r, ok := s.memo[key]; ok {
		return r
	}
	r := s.visit(value)
	s.memo[key] = r
	return r
}

func (s *intervalSolver) inequality(e *ir.Expr) bounds.Interval {
	if !s.alreadySolved {
		solved, ok := Expr(e, s.v, s.scope)
		if !ok {
			return s.fail()
		}
		s.alreadySolved = true
		r := s.visit(solved)
		s.alreadySolved = false
		return r
	}
	if !ir.UsesVar(e, s.v) {
		if c := simplify.Expr(e); ir.IsConst(c) {
			return s.visit(c)
		}
		return s.fail()
	}
	a, c, _ := e.Binary()
	le := e.Kind == ir.ExprLE
	if a.IsVar(s.v) {
		if ir.UsesVar(c, s.v) {
			return s.fail()
		}
		one := ir.One(c.Type)
		switch {
		case le && s.target:
			return bounds.Between(ir.NegInf(), c)
		case le:
			return bounds.Between(ir.Add(c, one), ir.PosInf())
		case s.target:
			return bounds.Between(c, ir.PosInf())
		default:
			return bounds.Between(ir.NegInf(), ir.Sub(c, one))
		}
	}
	var cond *ir.Expr
	if x, y, ok := as(a, ir.ExprMax); ok {
		if le {
			// max(x, y) <= c  <=>  x <= c && (y <= c || x >= y)
			cond = ir.And(ir.LE(x, c), ir.Or(ir.LE(y, c), ir.GE(x, y)))
		} else {
			// max(x, y) >= c  <=>  x >= c || (y >= c && x <= y)
			cond = ir.Or(ir.GE(x, c), ir.And(ir.GE(y, c), ir.LE(x, y)))
		}
	} else if x, y, ok := as(a, ir.ExprMin); ok {
		if le {
			// min(x, y) <= c  <=>  x <= c || (y <= c && x >= y)
			cond = ir.Or(ir.LE(x, c), ir.And(ir.LE(y, c), ir.GE(x, y)))
		} else {
			// min(x, y) >= c  <=>  x >= c && (y >= c || x <= y)
			cond = ir.And(ir.GE(x, c), ir.Or(ir.GE(y, c), ir.LE(x, y)))
		}
	}
	if cond == nil {
		return s.fail()
	}
	s.alreadySolved = false
	r := s.visit(cond)
	s.alreadySolved = true
	return r
}
