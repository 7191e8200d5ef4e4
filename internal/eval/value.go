package eval

import (
	"math"
	"strconv"
	"strings"

	"loopopt/internal/ir"
)

// Value is the result of evaluating an expression, one entry per lane.
// Integer and boolean lanes live in Ints, float lanes in Floats.
type Value struct {
	Type   ir.Type
	Ints   []int64
	Floats []float64
}

// Int returns a scalar integer or boolean value, wrapped to t.
func Int(t ir.Type, v int64) Value {
	t = t.Element()
	return Value{Type: t, Ints: []int64{ir.WrapInt(t, v)}}
}

// Float returns a scalar float value, rounded to the precision of t.
func Float(t ir.Type, f float64) Value {
	t = t.Element()
	return Value{Type: t, Floats: []float64{round(t, f)}}
}

// Bool returns a scalar boolean value.
func Bool(b bool) Value {
	if b {
		return Int(ir.Bool(), 1)
	}
	return Int(ir.Bool(), 0)
}

func round(t ir.Type, f float64) float64 {
	if t.Bits == 32 {
		return float64(float32(f))
	}
	return f
}

func newValue(t ir.Type, lanes int) Value {
	t = t.WithLanes(lanes)
	if t.IsFloat() {
		return Value{Type: t, Floats: make([]float64, lanes)}
	}
	return Value{Type: t, Ints: make([]int64, lanes)}
}

// Lanes returns the vector width of v.
func (v Value) Lanes() int {
	if v.Type.IsFloat() {
		return len(v.Floats)
	}
	return len(v.Ints)
}

// Lane returns lane i of v as a scalar.
func (v Value) Lane(i int) Value {
	if v.Type.IsFloat() {
		return Value{Type: v.Type.Element(), Floats: []float64{v.Floats[i]}}
	}
	return Value{Type: v.Type.Element(), Ints: []int64{v.Ints[i]}}
}

// Truth returns lane i of a boolean value.
func (v Value) Truth(i int) bool { return v.Ints[i] != 0 }

// Scalar returns the single integer of a scalar integer value.
func (v Value) Scalar() (int64, bool) {
	if v.Type.IsFloat() || len(v.Ints) != 1 {
		return 0, false
	}
	return v.Ints[0], true
}

// broadcast widens a scalar to n lanes.
func (v Value) broadcast(n int) Value {
	if v.Lanes() == n {
		return v
	}
	out := newValue(v.Type, n)
	for i := range n {
		out.set(i, v, 0)
	}
	return out
}

// set copies lane j of src into lane i of v.
func (v Value) set(i int, src Value, j int) {
	if v.Type.IsFloat() {
		v.Floats[i] = src.Floats[j]
	} else {
		v.Ints[i] = src.Ints[j]
	}
}

// Equal compares two values lane by lane. NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Lanes() != o.Lanes() {
		return false
	}
	for i := range v.Lanes() {
		if !sameLane(v, i, o, i) {
			return false
		}
	}
	return true
}

func sameLane(a Value, i int, b Value, j int) bool {
	if a.Type.IsFloat() {
		x, y := a.Floats[i], b.Floats[j]
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	}
	return a.Ints[i] == b.Ints[j]
}

func (v Value) String() string {
	parts := make([]string, v.Lanes())
	for i := range parts {
		switch {
		case v.Type.IsFloat():
			parts[i] = strconv.FormatFloat(v.Floats[i], 'g', -1, 64)
		case v.Type.IsBool():
			parts[i] = strconv.FormatBool(v.Ints[i] != 0)
		case v.Type.IsUInt() && v.Type.Bits == 64:
			parts[i] = strconv.FormatUint(uint64(v.Ints[i]), 10)
		default:
			parts[i] = strconv.FormatInt(v.Ints[i], 10)
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
