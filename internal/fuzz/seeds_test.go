package fuzztests

import (
	"bytes"
	"testing"

	"loopopt/internal/demo"
	"loopopt/internal/irio"
)

const maxFuzzInput = 1 << 16 // 64 KiB

// addDemoSeeds adds every built-in program in encoded form, whole and cut
// in half.
func addDemoSeeds(f *testing.F) {
	f.Add([]byte{})
	for _, p := range demo.All() {
		var buf bytes.Buffer
		if err := irio.Encode(&buf, &irio.File{Name: p.Name, Program: p.Stmt, Buffers: p.Buffers}); err != nil {
			f.Fatalf("encode %s: %v", p.Name, err)
		}
		f.Add(bytes.Clone(buf.Bytes()))
		f.Add(bytes.Clone(buf.Bytes()[:buf.Len()/2]))
	}
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	return append([]byte(nil), input...)
}
