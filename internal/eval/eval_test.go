package eval_test

import (
	"errors"
	"strings"
	"testing"

	"loopopt/internal/eval"
	"loopopt/internal/ir"
)

var x = ir.Var("x", ir.I32)

func i(v int64) *ir.Expr { return ir.IntImm(v) }

func TestEval(t *testing.T) {
	i8 := ir.Int(8)
	u8 := ir.UInt(8)
	f32 := ir.Float(32)
	tests := []struct {
		name string
		e    *ir.Expr
		want string
	}{
		{"arith", ir.Add(ir.Mul(x, i(3)), i(1)), "22"},
		{"euclidean div", ir.Div(i(-7), i(2)), "-4"},
		{"euclidean mod", ir.Mod(i(-7), i(2)), "1"},
		{"div by zero", ir.Div(x, i(0)), "0"},
		{"int8 wraps", ir.Add(ir.Const(i8, 127), ir.Const(i8, 1)), "-128"},
		{"uint8 wraps", ir.Sub(ir.Const(u8, 0), ir.Const(u8, 1)), "255"},
		{"float32 rounds", ir.Add(ir.FloatConst(f32, 0.1), ir.FloatConst(f32, 0.2)), "0.30000001192092896"},
		{"float to int truncates", ir.Cast(ir.I32, ir.FloatConst(ir.Float(64), -2.7)), "-2"},
		{"int to bool", ir.Cast(ir.Bool(), x), "true"},
		{"compare", ir.LT(x, i(8)), "true"},
		{"not", ir.Not(ir.GE(x, i(8))), "true"},
		{"likely is transparent", ir.Likely(x), "7"},
		{"min max", ir.Clamp(x, i(0), i(5)), "5"},
		{"select", ir.Select(ir.EQ(x, i(7)), i(1), i(2)), "1"},
		{"let", ir.Let("y", ir.Add(x, i(1)), ir.Mul(ir.Var("y", ir.I32), ir.Var("y", ir.I32))), "64"},
		{"ramp", ir.Ramp(x, i(2), 4), "<7, 9, 11, 13>"},
		{"broadcast", ir.Broadcast(x, 3), "<7, 7, 7>"},
		{"vector compare", ir.LT(ir.Ramp(i(5), i(1), 4), ir.Broadcast(x, 4)), "<true, true, false, false>"},
		{"vector select", ir.Select(ir.LT(ir.Ramp(i(0), i(1), 3), ir.Broadcast(i(1), 3)), ir.Broadcast(i(9), 3), ir.Ramp(i(0), i(1), 3)), "<9, 1, 2>"},
		{"load", ir.Load(ir.I32, "in", ir.Sub(x, i(5))), "20"},
		{"vector load", ir.Load(ir.I32.WithLanes(2), "in", ir.Ramp(i(0), i(1), 2)), "<0, 10>"},
		{"pure call", ir.Call(ir.Float(64), "sqrt", true, ir.FloatConst(ir.Float(64), 16)), "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := eval.NewBuffer(ir.I32, 4)
			for k := range 4 {
				in.SetInt(k, int64(10*k))
			}
			m := eval.New(eval.Memory{"in": in})
			m.Bind("x", eval.Int(ir.I32, 7))
			got, err := m.Eval(tt.e)
			if err != nil {
				t.Fatalf("Eval(%s): %v", tt.e, err)
			}
			if got.String() != tt.want {
				t.Errorf("Eval(%s) = %s, want %s", tt.e, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	body := ir.Store("out", ir.Mul(x, x), x)
	prog := ir.Block(
		ir.For("x", i(0), i(5), ir.ForSerial, body),
		ir.IfThenElse(ir.GT(ir.Load(ir.I32, "out", i(4)), i(10)),
			ir.Store("out", i(-1), i(0)),
			nil),
		ir.LetStmt("k", i(2), ir.Store("out", ir.Var("k", ir.I32), i(1))),
		ir.Store("out", ir.Broadcast(i(3), 2), ir.Ramp(i(2), i(1), 2)),
	)
	mem := eval.Memory{"out": eval.NewBuffer(ir.I32, 5)}
	if err := eval.New(mem).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"-1", "2", "3", "3", "16"}
	for k, w := range want {
		if got := mem["out"].At(k).String(); got != w {
			t.Errorf("out[%d] = %s, want %s", k, got, w)
		}
	}
}

func TestAllocateRestoresShadowedBuffer(t *testing.T) {
	prog := ir.Allocate("tmp", ir.I32, i(2), false, ir.Block(
		ir.Store("tmp", i(5), i(1)),
		ir.Store("out", ir.Load(ir.I32, "tmp", i(1)), i(0)),
	))
	tmp := eval.NewBuffer(ir.I32, 1)
	tmp.SetInt(0, 42)
	mem := eval.Memory{"out": eval.NewBuffer(ir.I32, 1), "tmp": tmp}
	if err := eval.New(mem).Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := mem["out"].At(0).String(); got != "5" {
		t.Errorf("out[0] = %s, want 5", got)
	}
	if mem["tmp"] != tmp || tmp.At(0).String() != "42" {
		t.Errorf("tmp was not restored")
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		prog  *ir.Stmt
		limit int
		code  eval.ErrorCode
	}{
		{"out of bounds", ir.For("x", i(0), i(3), ir.ForSerial, ir.Store("out", x, ir.Add(x, i(1)))), 0, eval.ErrOutOfBounds},
		{"unbound", ir.Store("out", ir.Var("y", ir.I32), i(0)), 0, eval.ErrUnboundVar},
		{"unknown buffer", ir.Store("nope", i(1), i(0)), 0, eval.ErrUnknownBuffer},
		{"unknown call", ir.Evaluate(ir.Call(ir.I32, "frob", false)), 0, eval.ErrUnknownCall},
		{"step limit", ir.For("x", i(0), i(100), ir.ForSerial, ir.Evaluate(i(0))), 10, eval.ErrStepLimit},
		{"infinity", ir.Store("out", ir.PosInf(), i(0)), 0, eval.ErrBadValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := eval.Memory{"out": eval.NewBuffer(ir.I32, 3)}
			err := eval.New(mem, eval.WithStepLimit(tt.limit)).Run(tt.prog)
			if !eval.IsCode(err, tt.code) {
				t.Fatalf("Run error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestLoopErrorNamesIteration(t *testing.T) {
	prog := ir.For("x", i(0), i(3), ir.ForSerial, ir.Store("out", x, ir.Mul(x, i(2))))
	err := eval.New(eval.Memory{"out": eval.NewBuffer(ir.I32, 3)}).Run(prog)
	if err == nil || !strings.Contains(err.Error(), "x = 2") {
		t.Fatalf("error %v does not name the failing iteration", err)
	}
	var fault *eval.Error
	if !errors.As(err, &fault) || fault.Code != eval.ErrOutOfBounds {
		t.Errorf("error %v is not an out of bounds fault", err)
	}
}

func TestEffects(t *testing.T) {
	prog := ir.For("x", i(0), i(2), ir.ForSerial, ir.Evaluate(ir.Call(ir.I32, "print", false, x)))
	m := eval.New(eval.Memory{})
	if err := m.Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.Join(m.Effects, " "); got != "print[0] print[1]" {
		t.Errorf("Effects = %q", got)
	}
}

func TestDiff(t *testing.T) {
	a := eval.Memory{"f": eval.NewBuffer(ir.I32, 3)}
	b := a.Clone()
	if err := eval.Diff(a, b); err != nil {
		t.Fatalf("clones differ: %v", err)
	}
	b["f"].SetInt(1, 9)
	b["g"] = eval.NewBuffer(ir.I32, 1)
	err := eval.Diff(a, b)
	if err == nil {
		t.Fatal("Diff missed a mismatch")
	}
	for _, want := range []string{"element 1 is 9, want 0", "buffer g: unexpected"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Diff = %v, missing %q", err, want)
		}
	}
	if a["f"].At(1).String() != "0" {
		t.Error("Clone shares storage")
	}
}
