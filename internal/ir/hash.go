package ir

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash returns the structural hash of e. Structurally equal expressions
// have equal hashes. The hash of a node built through the constructors
// in this package is computed once, from the hashes of its children.
func (e *Expr) Hash() uint64 {
	if e == nil {
		return 0
	}
	if e.hash == 0 {
		e.hash = computeHash(e)
	}
	return e.hash
}

type hasher struct {
	d   *xxhash.Digest
	raw [8]byte
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.raw[:], v)
	_, _ = h.d.Write(h.raw[:])
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func computeHash(e *Expr) uint64 {
	h := hasher{d: xxhash.New()}
	h.u64(uint64(e.Kind))
	h.u64(uint64(e.Type.Kind)<<32 | uint64(e.Type.Bits)<<16 | uint64(e.Type.Lanes))
	switch d := e.Data.(type) {
	case ConstData:
		h.u64(uint64(d.Int))
		h.u64(math.Float64bits(d.Float))
	case InfData:
		if d.Neg {
			h.u64(1)
		} else {
			h.u64(2)
		}
	case VarData:
		h.str(d.Name)
	case BinaryData:
		h.u64(d.A.Hash())
		h.u64(d.B.Hash())
	case UnaryData:
		h.u64(d.A.Hash())
	case SelectData:
		h.u64(d.Cond.Hash())
		h.u64(d.True.Hash())
		h.u64(d.False.Hash())
	case LetData:
		h.str(d.Name)
		h.u64(d.Value.Hash())
		h.u64(d.Body.Hash())
	case LoadData:
		h.str(d.Buffer)
		h.u64(d.Index.Hash())
	case CallData:
		h.str(d.Name)
		if d.Pure {
			h.u64(1)
		}
		for _, a := range d.Args {
			h.u64(a.Hash())
		}
	case RampData:
		h.u64(d.Base.Hash())
		h.u64(d.Stride.Hash())
		h.u64(uint64(d.Lanes))
	case BroadcastData:
		h.u64(d.Value.Hash())
		h.u64(uint64(d.Lanes))
	case CastData:
		h.u64(d.Value.Hash())
	}
	sum := h.d.Sum64()
	if sum == 0 {
		sum = 1
	}
	return sum
}
