// Package testkit holds helpers shared by the pass tests: random buffer
// fills, interpreter-backed equivalence checks and IR shape queries.
package testkit

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"fortio.org/safecast"

	"loopopt/internal/eval"
	"loopopt/internal/ir"
)

// DefaultSpan keeps fill values small so that equalities between buffer
// elements actually occur.
const DefaultSpan = 4

// Memory returns zeroed int32 buffers of the given sizes.
func Memory(sizes map[string]int) eval.Memory {
	mem := make(eval.Memory, len(sizes))
	for name, n := range sizes {
		mem[name] = eval.NewBuffer(ir.I32, n)
	}
	return mem
}

// Fill overwrites every element of mem with an integer drawn uniformly
// from [-span, span]. Buffers are visited in name order so a seed always
// produces the same memory.
func Fill(mem eval.Memory, rng *rand.Rand, span int) error {
	s, err := safecast.Conv[int64](span)
	if err != nil || s < 0 {
		return fmt.Errorf("fill span %d: %w", span, err)
	}
	for _, name := range slices.Sorted(maps.Keys(mem)) {
		b := mem[name]
		for i := range b.Len() {
			b.SetInt(i, rng.Int64N(2*s+1)-s)
		}
	}
	return nil
}

// CheckEquivalent runs before and after on separate copies of mem and
// reports any difference in the final buffers or in the order of impure
// calls. mem itself is left untouched.
func CheckEquivalent(before, after *ir.Stmt, mem eval.Memory, opts ...eval.Option) error {
	want, got := mem.Clone(), mem.Clone()
	m1, m2 := eval.New(want, opts...), eval.New(got, opts...)
	if err := m1.Run(before); err != nil {
		return fmt.Errorf("original program: %w", err)
	}
	if err := m2.Run(after); err != nil {
		return fmt.Errorf("rewritten program: %w", err)
	}
	var errs []error
	if err := eval.Diff(want, got); err != nil {
		errs = append(errs, err)
	}
	if !slices.Equal(m1.Effects, m2.Effects) {
		errs = append(errs, fmt.Errorf("effects %v, want %v", m2.Effects, m1.Effects))
	}
	return errors.Join(errs...)
}

// CheckRandomEquivalent repeats CheckEquivalent on fills random memories
// derived from seed. The first failing fill is reported.
func CheckRandomEquivalent(before, after *ir.Stmt, sizes map[string]int, fills int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for k := range fills {
		mem := Memory(sizes)
		if err := Fill(mem, rng, DefaultSpan); err != nil {
			return err
		}
		if err := CheckEquivalent(before, after, mem); err != nil {
			return fmt.Errorf("fill %d of seed %d: %w", k, seed, err)
		}
	}
	return nil
}
