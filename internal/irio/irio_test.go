package irio_test

import (
	"bytes"
	"errors"
	"maps"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"loopopt/internal/demo"
	"loopopt/internal/ir"
	"loopopt/internal/irio"
)

func roundTrip(t *testing.T, f *irio.File) *irio.File {
	t.Helper()
	var buf bytes.Buffer
	if err := irio.Encode(&buf, f); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := irio.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestRoundTripDemos(t *testing.T) {
	for _, p := range demo.All() {
		t.Run(p.Name, func(t *testing.T) {
			got := roundTrip(t, &irio.File{Name: p.Name, Program: p.Stmt, Buffers: p.Buffers})
			if got.Name != p.Name {
				t.Errorf("name %q, want %q", got.Name, p.Name)
			}
			if !ir.EqualStmt(got.Program, p.Stmt) {
				t.Errorf("program changed:\n%s\nwant\n%s", got.Program, p.Stmt)
			}
			if !maps.Equal(got.Buffers, p.Buffers) {
				t.Errorf("buffers %v, want %v", got.Buffers, p.Buffers)
			}
		})
	}
}

func TestRoundTripKinds(t *testing.T) {
	x := ir.Var("x", ir.I32)
	f32 := ir.Float(32)
	v := ir.Ramp(x, ir.IntImm(2), 4)
	prog := ir.Allocate("tmp", f32, ir.IntImm(8), true, ir.Block(
		ir.Store("tmp", ir.Cast(f32, ir.Select(ir.Not(ir.LT(x, ir.IntImm(3))), x, ir.Mod(x, ir.IntImm(-3)))), x),
		ir.Store("out", ir.Load(ir.I32, "in", v), ir.Broadcast(x, 4)),
		ir.LetStmt("y", ir.Let("z", ir.Div(x, ir.IntImm(2)), ir.Max(ir.Var("z", ir.I32), ir.IntImm(0))),
			ir.IfThenElse(ir.Or(ir.EQ(ir.Var("y", ir.I32), x), ir.False()),
				ir.Evaluate(ir.Call(ir.I32, "print", false, ir.Var("y", ir.I32), ir.FloatConst(f32, 0.5))),
				nil)),
		ir.Store("f", ir.Call(ir.I32, "abs", true, ir.Likely(ir.Sub(x, ir.IntImm(1)))), ir.Min(x, ir.PosInf())),
	))
	loop := ir.For("x", ir.IntImm(0), ir.IntImm(10), ir.ForParallel, prog)

	got := roundTrip(t, &irio.File{Program: loop})
	if !ir.EqualStmt(got.Program, loop) {
		t.Errorf("program changed:\n%s\nwant\n%s", got.Program, loop)
	}
	if got.Buffers != nil {
		t.Errorf("buffers %v, want none", got.Buffers)
	}
}

func TestRoundTripKeepsSharing(t *testing.T) {
	x := ir.Var("x", ir.I32)
	shared := ir.Mul(ir.Add(x, ir.IntImm(1)), ir.IntImm(3))
	prog := ir.For("x", ir.IntImm(0), ir.IntImm(4), ir.ForSerial, ir.Block(
		ir.Store("f", shared, x),
		ir.Store("g", ir.Add(shared, shared), x),
	))

	got := roundTrip(t, &irio.File{Program: prog})
	loop, _ := got.Program.For()
	stmts := loop.Body.Data.(ir.BlockData).Stmts
	first := stmts[0].Data.(ir.StoreData).Value
	a, b, _ := stmts[1].Data.(ir.StoreData).Value.Binary()
	if first != a || a != b {
		t.Errorf("shared subexpression decoded as distinct nodes")
	}
}

func TestDecodeNormalizesNames(t *testing.T) {
	decomposed := "cafe\u0301"
	x := ir.Var(decomposed, ir.I32)
	prog := ir.For(decomposed, ir.IntImm(0), ir.IntImm(2), ir.ForSerial, ir.Store(decomposed, x, x))

	got := roundTrip(t, &irio.File{Program: prog, Buffers: map[string]int{decomposed: 2}})
	d, _ := got.Program.For()
	if d.Name != "caf\u00e9" {
		t.Errorf("loop name %q, want NFC form", d.Name)
	}
	if s := d.Body.Data.(ir.StoreData); s.Buffer != "caf\u00e9" || s.Value.VarName() != "caf\u00e9" {
		t.Errorf("store %s not normalized", d.Body)
	}
	if _, ok := got.Buffers["caf\u00e9"]; !ok {
		t.Errorf("buffers %v not normalized", got.Buffers)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	other, err := msgpack.Marshal(map[string]any{"schema": irio.SchemaVersion + 1, "root": -1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irio.Decode(bytes.NewReader(other)); !errors.Is(err, irio.ErrSchema) {
		t.Errorf("other schema: got %v, want ErrSchema", err)
	}

	forward, err := msgpack.Marshal(map[string]any{
		"schema": irio.SchemaVersion,
		"exprs":  []map[string]any{{"k": uint8(ir.ExprNot), "t": map[string]any{"k": 3, "b": 1, "l": 1}, "a": []int32{0}}},
		"root":   -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := irio.Decode(bytes.NewReader(forward)); err == nil {
		t.Errorf("self reference decoded without error")
	}

	var buf bytes.Buffer
	p, _ := demo.Lookup("window")
	if err := irio.Encode(&buf, &irio.File{Program: p.Stmt}); err != nil {
		t.Fatal(err)
	}
	if _, err := irio.Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2])); err == nil {
		t.Errorf("truncated file decoded without error")
	}
}

func TestWriteAndReadFile(t *testing.T) {
	p, _ := demo.Lookup("updates")
	path := filepath.Join(t.TempDir(), "sub", "updates.lir")
	if err := irio.WriteFile(path, &irio.File{Name: p.Name, Program: p.Stmt, Buffers: p.Buffers}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := irio.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !ir.EqualStmt(got.Program, p.Stmt) {
		t.Errorf("program changed after write")
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".loopopt-*"))
	if len(matches) != 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
	if _, err := irio.ReadFile(filepath.Join(t.TempDir(), "missing.lir")); err == nil {
		t.Errorf("missing file read without error")
	}
}
