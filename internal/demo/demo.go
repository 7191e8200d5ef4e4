// Package demo holds small built-in programs that show what the passes
// do. Each comes with the buffer sizes needed to run it.
package demo

import (
	"slices"

	"loopopt/internal/ir"
)

// Program is a named example.
type Program struct {
	Name        string
	Description string
	Stmt        *ir.Stmt
	Buffers     map[string]int
}

var (
	x  = ir.Var("x", ir.I32)
	y  = ir.Var("y", ir.I32)
	bx = ir.Var("bx", ir.I32)
	tx = ir.Var("tx", ir.I32)
)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func load(buf string, idx *ir.Expr) *ir.Expr { return ir.Load(ir.I32, buf, idx) }

func serial(name string, lo, extent int64, body *ir.Stmt) *ir.Stmt {
	return ir.For(name, i(lo), i(extent), ir.ForSerial, body)
}

var programs = []func() Program{
	window,
	updates,
	clampedRamp,
	boundary2D,
	kernel,
}

// All returns every built-in program, sorted by name.
func All() []Program {
	out := make([]Program, len(programs))
	for k, p := range programs {
		out[k] = p()
	}
	slices.SortFunc(out, func(a, b Program) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Lookup returns the program called name.
func Lookup(name string) (Program, bool) {
	for _, p := range programs {
		if prog := p(); prog.Name == name {
			return prog, true
		}
	}
	return Program{}, false
}

func window() Program {
	inside := ir.And(ir.GT(x, i(10)), ir.LT(x, i(20)))
	return Program{
		Name:        "window",
		Description: "likely select on a window of the loop splits it in three",
		Stmt: serial("x", 0, 100, ir.Store("f",
			ir.Add(load("f", x), ir.Select(inside, ir.Likely(i(1)), i(0))), x)),
		Buffers: map[string]int{"f": 100},
	}
}

func updates() Program {
	return Program{
		Name:        "updates",
		Description: "four select updates trimmed to the ranges where they act",
		Stmt: ir.Block(
			serial("x", 0, 100, ir.Store("f", x, x)),
			serial("x", 0, 100, ir.Store("f", ir.Add(load("f", x), ir.Select(ir.And(ir.GT(x, i(10)), ir.LT(x, i(20))), i(1), i(0))), x)),
			serial("x", 0, 100, ir.Store("f", ir.Add(load("f", x), ir.Select(ir.LT(x, i(10)), i(0), i(1))), x)),
			serial("x", 0, 100, ir.Store("f", ir.Mul(load("f", x), ir.Select(ir.And(ir.GT(x, i(20)), ir.LT(x, i(30))), i(2), i(1))), x)),
			serial("x", 0, 100, ir.Store("f", ir.Select(ir.And(ir.GE(x, i(60)), ir.LE(x, i(100))), ir.Sub(i(100), load("f", x)), load("f", x)), x)),
		),
		Buffers: map[string]int{"f": 100},
	}
}

func clampedRamp() Program {
	base := ir.Mul(x, i(4))
	idx := ir.Min(ir.Ramp(ir.Add(base, i(1)), i(1), 4), ir.Broadcast(i(39), 4))
	return Program{
		Name:        "clamp",
		Description: "vector loads clamped at the edge of the input",
		Stmt:        serial("x", 0, 10, ir.Store("out", load("in", idx), ir.Ramp(base, i(1), 4))),
		Buffers:     map[string]int{"in": 40, "out": 40},
	}
}

func boundary2D() Program {
	// A 3-tap blur along x with clamped reads, over a 16x16 image.
	at := func(dx int64) *ir.Expr {
		xx := ir.Clamp(ir.Likely(ir.Add(x, i(dx))), i(0), i(15))
		return load("in", ir.Add(ir.Mul(y, i(16)), xx))
	}
	sum := ir.Add(ir.Add(at(-1), at(0)), at(1))
	return Program{
		Name:        "blur",
		Description: "boundary condition of a 2D blur moved out of the steady state",
		Stmt: serial("y", 0, 16, serial("x", 0, 16,
			ir.Store("out", sum, ir.Add(ir.Mul(y, i(16)), x)))),
		Buffers: map[string]int{"in": 256, "out": 256},
	}
}

func kernel() Program {
	idx := ir.Add(ir.Mul(bx, i(8)), tx)
	body := ir.Store("out", ir.Select(ir.LT(idx, i(30)), ir.Likely(load("in", idx)), i(0)), idx)
	return Program{
		Name:        "kernel",
		Description: "GPU kernel partitioned then renormalized",
		Stmt: ir.For("bx", i(0), i(4), ir.ForGPUBlock,
			ir.For("tx", i(0), i(8), ir.ForGPUThread, body)),
		Buffers: map[string]int{"in": 32, "out": 32},
	}
}
