package demo_test

import (
	"testing"

	"loopopt/internal/demo"
	"loopopt/internal/eval"
	"loopopt/internal/ir"
	"loopopt/internal/testkit"
)

func TestProgramsRun(t *testing.T) {
	all := demo.All()
	if len(all) == 0 {
		t.Fatal("no demo programs")
	}
	for k, p := range all {
		if k > 0 && all[k-1].Name >= p.Name {
			t.Errorf("programs not sorted: %s before %s", all[k-1].Name, p.Name)
		}
		t.Run(p.Name, func(t *testing.T) {
			if err := ir.Validate(p.Stmt); err != nil {
				t.Fatal(err)
			}
			if err := eval.New(testkit.Memory(p.Buffers)).Run(p.Stmt); err != nil {
				t.Errorf("run: %v", err)
			}
			if got, ok := demo.Lookup(p.Name); !ok || !ir.EqualStmt(got.Stmt, p.Stmt) {
				t.Errorf("Lookup(%q) does not return the program", p.Name)
			}
		})
	}
	if _, ok := demo.Lookup("missing"); ok {
		t.Error("Lookup found a missing program")
	}
}
