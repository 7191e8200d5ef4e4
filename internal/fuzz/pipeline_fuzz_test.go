package fuzztests

import (
	"context"
	"testing"
	"time"

	"loopopt/internal/ir"
	"loopopt/internal/pipeline"
)

const bufferSize = 64

// windowProgram adds one to f[x] for lo < x < hi, marking the window as
// the likely case.
func windowProgram(lo, hi int8, extent uint8) *ir.Stmt {
	x := ir.Var("x", ir.I32)
	inside := ir.And(ir.GT(x, ir.IntImm(int64(lo))), ir.LT(x, ir.IntImm(int64(hi))))
	body := ir.Store("f", ir.Add(ir.Load(ir.I32, "f", x), ir.Select(inside, ir.Likely(ir.IntImm(1)), ir.IntImm(0))), x)
	return ir.For("x", ir.IntImm(0), ir.IntImm(int64(extent%(bufferSize+1))), ir.ForSerial, body)
}

func FuzzPipelineWindow(f *testing.F) {
	f.Add(int8(10), int8(20), uint8(64))
	f.Add(int8(-5), int8(70), uint8(64))
	f.Add(int8(3), int8(5), uint8(8))
	f.Fuzz(func(t *testing.T, lo, hi int8, extent uint8) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		prog := windowProgram(lo, hi, extent)
		_, err := pipeline.Run(ctx, prog, pipeline.Options{
			Verify:  2,
			Buffers: map[string]int{"f": bufferSize},
			Seed:    uint64(extent),
		})
		if err != nil {
			t.Fatalf("window (%d, %d) over %d iterations: %v\n%s", lo, hi, extent, err, prog)
		}
	})
}
