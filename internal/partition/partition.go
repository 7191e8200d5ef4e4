// Package partition splits loops into a prologue, a steady state and an
// epilogue so that boundary handling marked with likely tags runs only
// near the edges of the iteration range.
//
// A Min, Max or Select with exactly one likely operand, or an if whose
// condition is likely, yields a condition on the loop variable under
// which the likely side is taken. The interval where all such conditions
// hold becomes the steady state, whose body has them resolved.
package partition

import (
	"context"
	"slices"

	"loopopt/internal/ir"
	"loopopt/internal/simplify"
	"loopopt/internal/solve"
	"loopopt/internal/trace"
)

// BarrierCall is the intrinsic that synchronizes the threads of a GPU
// block. Loops whose body contains it are never partitioned inside a
// kernel, since the split would make threads diverge around it.
const BarrierCall = "gpu_thread_barrier"

// Loops runs the whole partitioning pipeline over s: clamped ramps are
// marked likely, boolean selects expanded, loops partitioned, GPU loop
// nests renormalized, the remaining likely tags removed and nested
// selects collapsed again.
func Loops(ctx context.Context, s *ir.Stmt) *ir.Stmt {
	s = MarkClampedRampsAsLikely(s)
	s = ExpandSelects(s)
	s = PartitionLoops(ctx, s)
	s = RenormalizeGPULoops(s)
	s = RemoveLikelyTags(s)
	return CollapseSelects(s)
}

// PartitionLoops partitions every loop of s that has a likely-tagged
// Min, Max or Select in its body.
func PartitionLoops(ctx context.Context, s *ir.Stmt) *ir.Stmt {
	p := &partitioner{
		tracer: trace.FromContext(ctx),
		namer:  ir.NewNamer(s),
	}
	return p.stmt(s)
}

type partitioner struct {
	tracer trace.Tracer
	namer  *ir.Namer
	inGPU  bool
}

func (p *partitioner) stmt(s *ir.Stmt) *ir.Stmt {
	if s == nil {
		return nil
	}
	if d, ok := s.For(); ok {
		return p.loop(s, d)
	}
	return ir.MutateStmtChildren(s, nil, p.stmt)
}

func (p *partitioner) children(s *ir.Stmt) *ir.Stmt {
	return ir.MutateStmtChildren(s, nil, p.stmt)
}

func callsBarrier(s *ir.Stmt) bool {
	found := false
	ir.VisitStmt(s, func(*ir.Stmt) bool { return !found }, func(e *ir.Expr) {
		found = found || ir.Any(e, func(c *ir.Expr) bool {
			d, ok := c.Data.(ir.CallData)
			return ok && d.Name == BarrierCall
		})
	})
	return found
}

// sections holds the per-loop classification of simplifications.
type sections struct {
	middle, prologue, epilogue []simplification
	minVals, maxVals           []*ir.Expr
}

func (p *partitioner) classify(op ir.ForData, records []simplification) sections {
	var sec sections
	lowerTight, upperTight := true, true
	for _, s := range records {
		s.interval = solve.Inner(s.condition, op.Name)
		if s.tight {
			s.tight = solve.Outer(s.condition, op.Name).Equal(s.interval)
		}
		trace.Pointf(p.tracer, trace.ScopeNode, "simplification",
			"%s: %s when %s, interval %s, tight %t",
			op.Name, s.oldExpr, s.condition, s.interval, s.tight)
		if s.interval.IsEmpty() {
			continue
		}
		if s.interval.HasLowerBound() {
			if !s.tight {
				lowerTight = false
			}
			if n := len(sec.minVals); n == 0 || !ir.Equal(s.interval.Min, sec.minVals[n-1]) {
				if n > 0 {
					lowerTight = false
				}
				sec.minVals = append(sec.minVals, s.interval.Min)
			}
		}
		if s.interval.HasUpperBound() {
			if !s.tight {
				upperTight = false
			}
			if n := len(sec.maxVals); n == 0 || !ir.Equal(s.interval.Max, sec.maxVals[n-1]) {
				if n > 0 {
					upperTight = false
				}
				sec.maxVals = append(sec.maxVals, s.interval.Max)
			}
		}
		sec.middle = append(sec.middle, s)
	}

	// The prologue may overlap the epilogue for short loops unless every
	// lower bound is below every upper bound.
	prologueOK := true
	for _, lo := range sec.minVals {
		for _, hi := range sec.maxVals {
			one := ir.One(lo.Type)
			if !simplify.CanProve(ir.LT(ir.Sub(lo, one), ir.Add(hi, one))) {
				prologueOK = false
			}
		}
	}

	for _, s := range sec.middle {
		if prologueOK && !s.interval.HasLowerBound() {
			sec.prologue = append(sec.prologue, s)
		}
		if !s.interval.HasUpperBound() {
			sec.epilogue = append(sec.epilogue, s)
		}
		if prologueOK && s.interval.HasLowerBound() && lowerTight {
			ir.Assertf(s.tight, "tight lower bound from loose condition %s", s.condition)
			sec.prologue = append(sec.prologue, s.negated())
		}
		if s.interval.HasUpperBound() && upperTight {
			ir.Assertf(s.tight, "tight upper bound from loose condition %s", s.condition)
			sec.epilogue = append(sec.epilogue, s.negated())
		}
	}
	return sec
}

// negated returns the simplification that applies outside the interval.
func (s simplification) negated() simplification {
	s.condition = ir.Not(s.condition)
	s.likelyValue, s.unlikelyValue = s.unlikelyValue, s.likelyValue
	return s
}

func foldBounds(vals []*ir.Expr, last *ir.Expr, k ir.ExprKind) *ir.Expr {
	vals = slices.Clone(vals)
	slices.SortFunc(vals, ir.Compare)
	vals = append(vals, last)
	e := vals[0]
	for _, v := range vals[1:] {
		e = ir.Binary(k, e, v)
	}
	return e
}

func (p *partitioner) loop(s *ir.Stmt, op ir.ForData) *ir.Stmt {
	wasGPU := p.inGPU
	p.inGPU = p.inGPU || op.Kind.IsGPU()
	defer func() { p.inGPU = wasGPU }()

	if p.inGPU && callsBarrier(op.Body) {
		return p.children(s)
	}
	records := findSimplifications(op.Body, op.Name)
	if len(records) == 0 {
		return p.children(s)
	}

	sec := p.classify(op, records)
	simpler := apply(op.Body, sec.middle)
	prologue := apply(op.Body, sec.prologue)
	epilogue := apply(op.Body, sec.epilogue)
	makePrologue := !ir.EqualStmt(prologue, simpler)
	makeEpilogue := !ir.EqualStmt(epilogue, simpler)

	simpler = p.stmt(simpler)

	t := op.Min.Type
	end := op.LoopEnd()
	minSteady, maxSteady := op.Min, end
	prologueVal, epilogueVal := op.Min, end
	prologueName := p.namer.Fresh(op.Name + ".prologue")
	epilogueName := p.namer.Fresh(op.Name + ".epilogue")

	if makePrologue {
		prologueVal = ir.Min(foldBounds(sec.minVals, op.Min, ir.ExprMax), end)
		minSteady = ir.Var(prologueName, t)
		ir.Assertf(!ir.UsesVar(prologueVal, op.Name), "prologue bound %s uses %s", prologueVal, op.Name)
	}
	if makeEpilogue {
		epilogueVal = ir.Add(foldBounds(sec.maxVals, op.LoopMax(), ir.ExprMin), ir.One(t))
		if makePrologue {
			epilogueVal = ir.Max(epilogueVal, prologueVal)
		} else {
			epilogueVal = ir.Max(op.Min, epilogueVal)
		}
		maxSteady = ir.Var(epilogueName, t)
		ir.Assertf(!ir.UsesVar(epilogueVal, op.Name), "epilogue bound %s uses %s", epilogueVal, op.Name)
	}

	if simplify.CanProve(ir.LE(epilogueVal, prologueVal)) {
		trace.Point(p.tracer, trace.ScopeLoop, "partition", op.Name+": steady state is empty")
		return p.children(s)
	}

	var out *ir.Stmt
	if op.Kind == ir.ForSerial {
		out = ir.For(op.Name, minSteady, ir.Sub(maxSteady, minSteady), op.Kind, simpler)
		if makePrologue {
			pro := ir.For(op.Name, op.Min, ir.Sub(minSteady, op.Min), op.Kind, prologue)
			out = ir.Block(pro, out)
		}
		if makeEpilogue {
			epi := ir.For(op.Name, maxSteady, ir.Sub(end, maxSteady), op.Kind, epilogue)
			out = ir.Block(out, epi)
		}
	} else {
		v := ir.Var(op.Name, t)
		out = simpler
		if makePrologue && makeEpilogue && ir.EqualStmt(prologue, epilogue) {
			inSteady := ir.And(ir.LE(minSteady, v), ir.LT(v, maxSteady))
			out = ir.IfThenElse(inSteady, out, prologue)
		} else {
			if makeEpilogue {
				out = ir.IfThenElse(ir.LT(v, maxSteady), out, epilogue)
			}
			if makePrologue {
				out = ir.IfThenElse(ir.LT(v, minSteady), prologue, out)
			}
		}
		out = ir.For(op.Name, op.Min, op.Extent, op.Kind, out)
	}
	if makeEpilogue {
		out = ir.LetStmt(epilogueName, epilogueVal, out)
	}
	if makePrologue {
		out = ir.LetStmt(prologueName, prologueVal, out)
	}
	trace.Pointf(p.tracer, trace.ScopeLoop, "partition",
		"%s (%s): %d steady, %d prologue, %d epilogue simplifications",
		op.Name, op.Kind, len(sec.middle), len(sec.prologue), len(sec.epilogue))
	return out
}
