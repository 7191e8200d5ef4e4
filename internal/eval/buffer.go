package eval

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"fortio.org/safecast"

	"loopopt/internal/ir"
)

// Buffer is a one-dimensional array of scalars.
type Buffer struct {
	Elem ir.Type
	data Value
}

// NewBuffer returns a zero-filled buffer of size elements.
func NewBuffer(elem ir.Type, size int) *Buffer {
	return &Buffer{Elem: elem.Element(), data: newValue(elem.Element(), size)}
}

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.data.Lanes() }

// At returns element i.
func (b *Buffer) At(i int) Value { return b.data.Lane(i) }

// SetInt stores an integer at i, wrapped to the element type.
func (b *Buffer) SetInt(i int, v int64) {
	if b.Elem.IsFloat() {
		b.data.Floats[i] = round(b.Elem, float64(v))
		return
	}
	b.data.Ints[i] = ir.WrapInt(b.Elem, v)
}

// SetFloat stores a float at i. Integer buffers truncate.
func (b *Buffer) SetFloat(i int, f float64) {
	if b.Elem.IsFloat() {
		b.data.Floats[i] = round(b.Elem, f)
		return
	}
	b.data.Ints[i] = ir.WrapInt(b.Elem, int64(f))
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Elem: b.Elem, data: Value{Type: b.data.Type}}
	c.data.Ints = slices.Clone(b.data.Ints)
	c.data.Floats = slices.Clone(b.data.Floats)
	return c
}

// index converts a lane of an index value into a checked offset.
func (b *Buffer) index(name string, idx Value, lane int) (int, error) {
	n, err := safecast.Conv[int](idx.Ints[lane])
	if err != nil || n < 0 || n >= b.Len() {
		return 0, fault(ErrOutOfBounds, "%s[%d] outside [0, %d)", name, idx.Ints[lane], b.Len())
	}
	return n, nil
}

// Memory maps buffer names to buffers.
type Memory map[string]*Buffer

// Clone deep-copies every buffer.
func (m Memory) Clone() Memory {
	out := make(Memory, len(m))
	for name, b := range m {
		out[name] = b.Clone()
	}
	return out
}

// Diff returns nil when got holds the same buffers as want with the same
// contents. Otherwise the error lists the first mismatch of each buffer.
func Diff(want, got Memory) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(want)) {
		w, g := want[name], got[name]
		switch {
		case g == nil:
			errs = append(errs, fmt.Errorf("buffer %s: missing", name))
		case w.Elem != g.Elem || w.Len() != g.Len():
			errs = append(errs, fmt.Errorf("buffer %s: %s[%d] vs %s[%d]", name, w.Elem, w.Len(), g.Elem, g.Len()))
		default:
			for i := range w.Len() {
				if !sameLane(w.data, i, g.data, i) {
					errs = append(errs, fmt.Errorf("buffer %s: element %d is %s, want %s", name, i, g.At(i), w.At(i)))
					break
				}
			}
		}
	}
	for name := range got {
		if _, ok := want[name]; !ok {
			errs = append(errs, fmt.Errorf("buffer %s: unexpected", name))
		}
	}
	return errors.Join(errs...)
}
