// Package eval is a reference interpreter for loop nests. It is slow and
// exact, and serves as the oracle every rewrite is checked against.
package eval

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"loopopt/internal/ir"
)

// Func implements a call on scalar arguments. It is applied lane by lane
// to vector calls.
type Func func(t ir.Type, args []Value) (Value, error)

// DefaultStepLimit bounds the total number of loop iterations of a run.
const DefaultStepLimit = 1 << 24

// Machine runs statements against a Memory.
type Machine struct {
	mem   Memory
	vars  *ir.Scope[Value]
	funcs map[string]Func
	limit int
	steps int

	// Effects records every impure call in execution order.
	Effects []string
}

// Option configures a Machine.
type Option func(*Machine)

// WithFunc registers or replaces the function name.
func WithFunc(name string, f Func) Option {
	return func(m *Machine) { m.funcs[name] = f }
}

// WithStepLimit sets the iteration budget. Zero means unlimited.
func WithStepLimit(n int) Option {
	return func(m *Machine) { m.limit = n }
}

// New returns a machine operating on mem in place.
func New(mem Memory, opts ...Option) *Machine {
	m := &Machine{
		mem:   mem,
		vars:  ir.NewScope[Value](),
		funcs: builtins(),
		limit: DefaultStepLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind gives name a value for subsequent runs, shadowing earlier bindings.
func (m *Machine) Bind(name string, v Value) { m.vars.Push(name, v) }

// Unbind removes the innermost binding of name.
func (m *Machine) Unbind(name string) { m.vars.Pop(name) }

// Memory returns the buffers the machine runs against.
func (m *Machine) Memory() Memory { return m.mem }

// Run executes s.
func (m *Machine) Run(s *ir.Stmt) error {
	if s == nil {
		return nil
	}
	switch d := s.Data.(type) {
	case ir.ForData:
		return m.loop(d)
	case ir.LetStmtData:
		v, err := m.Eval(d.Value)
		if err != nil {
			return err
		}
		m.vars.Push(d.Name, v)
		defer m.vars.Pop(d.Name)
		return m.Run(d.Body)
	case ir.StoreData:
		return m.store(d)
	case ir.IfData:
		c, err := m.Eval(d.Cond)
		if err != nil {
			return err
		}
		if c.Truth(0) {
			return m.Run(d.Then)
		}
		return m.Run(d.Else)
	case ir.BlockData:
		for _, c := range d.Stmts {
			if err := m.Run(c); err != nil {
				return err
			}
		}
		return nil
	case ir.EvaluateData:
		_, err := m.Eval(d.Value)
		return err
	case ir.AllocateData:
		return m.allocate(d)
	}
	return fault(ErrBadValue, "unknown statement %s", s.Kind)
}

func (m *Machine) scalarInt(e *ir.Expr, what string) (int64, error) {
	v, err := m.Eval(e)
	if err != nil {
		return 0, err
	}
	n, ok := v.Scalar()
	if !ok {
		return 0, fault(ErrBadValue, "%s %s is not a scalar integer", what, e)
	}
	return n, nil
}

func (m *Machine) loop(d ir.ForData) error {
	lo, err := m.scalarInt(d.Min, "loop min")
	if err != nil {
		return err
	}
	extent, err := m.scalarInt(d.Extent, "loop extent")
	if err != nil {
		return err
	}
	for i := int64(0); i < extent; i++ {
		m.steps++
		if m.limit > 0 && m.steps > m.limit {
			return fault(ErrStepLimit, "more than %d loop iterations", m.limit)
		}
		m.vars.Push(d.Name, Int(d.Min.Type, lo+i))
		err := m.Run(d.Body)
		m.vars.Pop(d.Name)
		if err != nil {
			return fmt.Errorf("%s = %d: %w", d.Name, lo+i, err)
		}
	}
	return nil
}

func (m *Machine) store(d ir.StoreData) error {
	buf, ok := m.mem[d.Buffer]
	if !ok {
		return fault(ErrUnknownBuffer, "store to %s", d.Buffer)
	}
	v, err := m.Eval(d.Value)
	if err != nil {
		return err
	}
	idx, err := m.Eval(d.Index)
	if err != nil {
		return err
	}
	n := idx.Lanes()
	v = v.broadcast(n)
	for lane := range n {
		at, err := buf.index(d.Buffer, idx, lane)
		if err != nil {
			return err
		}
		if v.Type.IsFloat() {
			buf.SetFloat(at, v.Floats[lane])
		} else {
			buf.SetInt(at, v.Ints[lane])
		}
	}
	return nil
}

func (m *Machine) allocate(d ir.AllocateData) error {
	size, err := m.scalarInt(d.Size, "allocation size")
	if err != nil {
		return err
	}
	n, err := safecast.Conv[int](size)
	if err != nil || n < 0 {
		return fault(ErrBadValue, "allocation %s of %d elements", d.Name, size)
	}
	old, had := m.mem[d.Name]
	m.mem[d.Name] = NewBuffer(d.Type, n)
	defer func() {
		if had {
			m.mem[d.Name] = old
		} else {
			delete(m.mem, d.Name)
		}
	}()
	return m.Run(d.Body)
}

// Eval evaluates e under the current bindings.
func (m *Machine) Eval(e *ir.Expr) (Value, error) {
	switch d := e.Data.(type) {
	case ir.ConstData:
		if e.Type.IsFloat() {
			return Float(e.Type, d.Float), nil
		}
		return Int(e.Type, d.Int), nil
	case ir.InfData:
		return Value{}, fault(ErrBadValue, "infinity has no runtime value")
	case ir.VarData:
		v, ok := m.vars.Get(d.Name)
		if !ok {
			return Value{}, fault(ErrUnboundVar, "%s", d.Name)
		}
		return v, nil
	case ir.BinaryData:
		a, err := m.Eval(d.A)
		if err != nil {
			return Value{}, err
		}
		b, err := m.Eval(d.B)
		if err != nil {
			return Value{}, err
		}
		return binary(e.Kind, e.Type, a, b), nil
	case ir.UnaryData:
		a, err := m.Eval(d.A)
		if err != nil || e.Kind == ir.ExprLikely {
			return a, err
		}
		out := newValue(a.Type, a.Lanes())
		for i := range a.Lanes() {
			out.Ints[i] = 1 - a.Ints[i]
		}
		return out, nil
	case ir.SelectData:
		return m.selectValue(e, d)
	case ir.LetData:
		v, err := m.Eval(d.Value)
		if err != nil {
			return Value{}, err
		}
		m.vars.Push(d.Name, v)
		defer m.vars.Pop(d.Name)
		return m.Eval(d.Body)
	case ir.LoadData:
		return m.load(e, d)
	case ir.CallData:
		return m.call(e, d)
	case ir.RampData:
		base, err := m.Eval(d.Base)
		if err != nil {
			return Value{}, err
		}
		stride, err := m.Eval(d.Stride)
		if err != nil {
			return Value{}, err
		}
		return ramp(e.Type, base, stride, d.Lanes), nil
	case ir.BroadcastData:
		v, err := m.Eval(d.Value)
		if err != nil {
			return Value{}, err
		}
		return v.broadcast(d.Lanes), nil
	case ir.CastData:
		v, err := m.Eval(d.Value)
		if err != nil {
			return Value{}, err
		}
		return cast(e.Type, v), nil
	}
	return Value{}, fault(ErrBadValue, "cannot evaluate %s", e.Kind)
}

func (m *Machine) selectValue(e *ir.Expr, d ir.SelectData) (Value, error) {
	c, err := m.Eval(d.Cond)
	if err != nil {
		return Value{}, err
	}
	t, err := m.Eval(d.True)
	if err != nil {
		return Value{}, err
	}
	f, err := m.Eval(d.False)
	if err != nil {
		return Value{}, err
	}
	n := max(c.Lanes(), t.Lanes())
	c, t, f = c.broadcast(n), t.broadcast(n), f.broadcast(n)
	out := newValue(e.Type, n)
	for i := range n {
		if c.Truth(i) {
			out.set(i, t, i)
		} else {
			out.set(i, f, i)
		}
	}
	return out, nil
}

func (m *Machine) load(e *ir.Expr, d ir.LoadData) (Value, error) {
	buf, ok := m.mem[d.Buffer]
	if !ok {
		return Value{}, fault(ErrUnknownBuffer, "load from %s", d.Buffer)
	}
	idx, err := m.Eval(d.Index)
	if err != nil {
		return Value{}, err
	}
	out := newValue(e.Type, idx.Lanes())
	for lane := range idx.Lanes() {
		at, err := buf.index(d.Buffer, idx, lane)
		if err != nil {
			return Value{}, err
		}
		out.set(lane, cast(e.Type.Element(), buf.At(at)), 0)
	}
	return out, nil
}

func (m *Machine) call(e *ir.Expr, d ir.CallData) (Value, error) {
	f, ok := m.funcs[d.Name]
	if !ok {
		return Value{}, fault(ErrUnknownCall, "%s", d.Name)
	}
	args := make([]Value, len(d.Args))
	n := e.Type.Lanes
	for i, a := range d.Args {
		v, err := m.Eval(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	lanes := max(int(n), 1)
	out := newValue(e.Type, lanes)
	scalar := make([]Value, len(args))
	for lane := range lanes {
		for i, a := range args {
			scalar[i] = a.broadcast(lanes).Lane(lane)
		}
		r, err := f(e.Type.Element(), scalar)
		if err != nil {
			return Value{}, fmt.Errorf("call %s: %w", d.Name, err)
		}
		out.set(lane, cast(e.Type.Element(), r), 0)
	}
	if !d.Pure {
		m.Effects = append(m.Effects, fmt.Sprintf("%s%v", d.Name, args))
	}
	return out, nil
}

func builtins() map[string]Func {
	unary := func(f func(float64) float64) Func {
		return func(t ir.Type, args []Value) (Value, error) {
			if len(args) != 1 {
				return Value{}, fault(ErrBadValue, "want 1 argument, got %d", len(args))
			}
			return Float(t, f(cast(ir.Float(64), args[0]).Floats[0])), nil
		}
	}
	return map[string]Func{
		"sqrt":               unary(math.Sqrt),
		"sin":                unary(math.Sin),
		"cos":                unary(math.Cos),
		"floor":              unary(math.Floor),
		"abs":                unary(math.Abs),
		"print":              discard,
		"gpu_thread_barrier": discard,
	}
}

// discard implements calls evaluated only for their effect.
func discard(t ir.Type, _ []Value) (Value, error) { return newValue(t, 1), nil }
