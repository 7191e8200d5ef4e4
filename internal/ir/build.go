package ir

import "math"

func newExpr(kind ExprKind, t Type, data ExprData) *Expr {
	e := &Expr{Kind: kind, Type: t, Data: data}
	e.hash = computeHash(e)
	return e
}

// Const returns a literal of type t. Integer values wrap to the width of t;
// vector types produce a broadcast literal.
func Const(t Type, v int64) *Expr {
	if t.IsVector() {
		return Broadcast(Const(t.Element(), v), int(t.Lanes))
	}
	if t.IsFloat() {
		return newExpr(ExprConst, t, ConstData{Float: float64(v)})
	}
	return newExpr(ExprConst, t, ConstData{Int: WrapInt(t, v)})
}

// FloatConst returns a float literal of type t.
func FloatConst(t Type, f float64) *Expr {
	if t.IsVector() {
		return Broadcast(FloatConst(t.Element(), f), int(t.Lanes))
	}
	if !t.IsFloat() {
		return Const(t, int64(f))
	}
	if t.Bits == 32 {
		f = float64(float32(f))
	}
	return newExpr(ExprConst, t, ConstData{Float: f})
}

// IntImm returns an int32 literal.
func IntImm(v int64) *Expr { return Const(I32, v) }

// BoolConst returns a boolean literal with the lane count of t.
func BoolConst(t Type, b bool) *Expr {
	bt := Bool().WithLanes(int(max(t.Lanes, 1)))
	if b {
		return Const(bt, 1)
	}
	return Const(bt, 0)
}

// True returns the scalar true literal.
func True() *Expr { return Const(Bool(), 1) }

// False returns the scalar false literal.
func False() *Expr { return Const(Bool(), 0) }

// Zero returns the zero of type t.
func Zero(t Type) *Expr { return Const(t, 0) }

// One returns the one of type t.
func One(t Type) *Expr { return Const(t, 1) }

// Inf returns an infinity sentinel of type t.
func Inf(t Type, neg bool) *Expr { return newExpr(ExprInf, t, InfData{Neg: neg}) }

// PosInf returns the int32 positive infinity sentinel.
func PosInf() *Expr { return Inf(I32, false) }

// NegInf returns the int32 negative infinity sentinel.
func NegInf() *Expr { return Inf(I32, true) }

// Var returns a reference to the named variable.
func Var(name string, t Type) *Expr { return newExpr(ExprVar, t, VarData{Name: name}) }

// Add returns a + b.
func Add(a, b *Expr) *Expr { return Binary(ExprAdd, a, b) }

// Sub returns a - b.
func Sub(a, b *Expr) *Expr { return Binary(ExprSub, a, b) }

// Mul returns a * b.
func Mul(a, b *Expr) *Expr { return Binary(ExprMul, a, b) }

// Div returns a / b.
func Div(a, b *Expr) *Expr { return Binary(ExprDiv, a, b) }

// Mod returns a % b.
func Mod(a, b *Expr) *Expr { return Binary(ExprMod, a, b) }

// Min returns min(a, b).
func Min(a, b *Expr) *Expr { return Binary(ExprMin, a, b) }

// Max returns max(a, b).
func Max(a, b *Expr) *Expr { return Binary(ExprMax, a, b) }

// EQ returns a == b.
func EQ(a, b *Expr) *Expr { return Binary(ExprEQ, a, b) }

// NE returns a != b.
func NE(a, b *Expr) *Expr { return Binary(ExprNE, a, b) }

// LT returns a < b.
func LT(a, b *Expr) *Expr { return Binary(ExprLT, a, b) }

// LE returns a <= b.
func LE(a, b *Expr) *Expr { return Binary(ExprLE, a, b) }

// GT returns a > b.
func GT(a, b *Expr) *Expr { return Binary(ExprGT, a, b) }

// GE returns a >= b.
func GE(a, b *Expr) *Expr { return Binary(ExprGE, a, b) }

// And returns a && b.
func And(a, b *Expr) *Expr { return Binary(ExprAnd, a, b) }

// Or returns a || b.
func Or(a, b *Expr) *Expr { return Binary(ExprOr, a, b) }

// Clamp returns min(max(e, lo), hi).
func Clamp(e, lo, hi *Expr) *Expr { return Min(Max(e, lo), hi) }

// Binary builds a binary node of kind k, reconciling operand types:
// infinities and scalar literals adopt the other operand's type and a
// scalar operand is broadcast against a vector one.
func Binary(k ExprKind, a, b *Expr) *Expr {
	Assertf(k.IsBinary(), "Binary called with %s", k)
	Assertf(a != nil && b != nil, "nil operand to %s", k)
	a, b = matchTypes(a, b)
	t := a.Type
	switch {
	case k.IsCompare():
		t = Bool().WithLanes(int(a.Type.Lanes))
	case k == ExprAnd || k == ExprOr:
		Assertf(a.Type.IsBool(), "%s of non-boolean %s", k, a.Type)
	}
	return newExpr(k, t, BinaryData{A: a, B: b})
}

func matchTypes(a, b *Expr) (*Expr, *Expr) {
	if a.Type == b.Type {
		return a, b
	}
	switch {
	case a.Kind == ExprInf:
		return Inf(b.Type, a.Data.(InfData).Neg), b
	case b.Kind == ExprInf:
		return a, Inf(a.Type, b.Data.(InfData).Neg)
	case a.Kind == ExprConst && a.Type.IsScalar():
		return convertConst(a, b.Type), b
	case b.Kind == ExprConst && b.Type.IsScalar():
		return a, convertConst(b, a.Type)
	case a.Type.IsScalar() && a.Type == b.Type.Element():
		return Broadcast(a, int(b.Type.Lanes)), b
	case b.Type.IsScalar() && b.Type == a.Type.Element():
		return a, Broadcast(b, int(a.Type.Lanes))
	}
	panic(&InternalError{Msg: "type mismatch: " + a.Type.String() + " vs " + b.Type.String() +
		" in " + FormatExpr(a) + " and " + FormatExpr(b)})
}

func convertConst(c *Expr, t Type) *Expr {
	d := c.Data.(ConstData)
	if c.Type.IsFloat() {
		if t.Element().IsFloat() {
			return FloatConst(t, d.Float)
		}
		return Const(t, int64(d.Float))
	}
	if t.Element().IsFloat() {
		return FloatConst(t, float64(d.Int))
	}
	return Const(t, d.Int)
}

// Not returns !a.
func Not(a *Expr) *Expr {
	Assertf(a.Type.IsBool(), "Not of non-boolean %s", a.Type)
	return newExpr(ExprNot, a.Type, UnaryData{A: a})
}

// Likely tags a as the expected value.
func Likely(a *Expr) *Expr { return newExpr(ExprLikely, a.Type, UnaryData{A: a}) }

// Select returns cond ? t : f.
func Select(cond, t, f *Expr) *Expr {
	Assertf(cond.Type.IsBool(), "Select condition of type %s", cond.Type)
	t, f = matchTypes(t, f)
	return newExpr(ExprSelect, t.Type, SelectData{Cond: cond, True: t, False: f})
}

// Let binds name to value within body.
func Let(name string, value, body *Expr) *Expr {
	return newExpr(ExprLet, body.Type, LetData{Name: name, Value: value, Body: body})
}

// Load reads buffer at index. The result has the lane count of index.
func Load(elem Type, buffer string, index *Expr) *Expr {
	return newExpr(ExprLoad, elem.WithLanes(int(index.Type.Lanes)), LoadData{Buffer: buffer, Index: index})
}

// Call invokes name with args.
func Call(t Type, name string, pure bool, args ...*Expr) *Expr {
	return newExpr(ExprCall, t, CallData{Name: name, Args: args, Pure: pure})
}

// Ramp returns the vector [base, base+stride, ...] of the given width.
func Ramp(base, stride *Expr, lanes int) *Expr {
	base, stride = matchTypes(base, stride)
	Assertf(base.Type.IsScalar(), "Ramp of vector base %s", base.Type)
	return newExpr(ExprRamp, base.Type.WithLanes(lanes), RampData{Base: base, Stride: stride, Lanes: lanes})
}

// Broadcast replicates the scalar v across lanes. A width of one returns v.
func Broadcast(v *Expr, lanes int) *Expr {
	if lanes <= 1 {
		return v
	}
	Assertf(v.Type.IsScalar(), "Broadcast of vector %s", v.Type)
	return newExpr(ExprBroadcast, v.Type.WithLanes(lanes), BroadcastData{Value: v, Lanes: lanes})
}

// Cast converts v to t, keeping v's lane count.
func Cast(t Type, v *Expr) *Expr {
	t = t.WithLanes(int(v.Type.Lanes))
	if v.Type == t {
		return v
	}
	return newExpr(ExprCast, t, CastData{Value: v})
}

// AsInt returns the value of a scalar integer or boolean literal.
func AsInt(e *Expr) (int64, bool) {
	if e == nil || e.Kind != ExprConst || e.Type.IsFloat() || e.Type.IsVector() {
		return 0, false
	}
	return e.Data.(ConstData).Int, true
}

// AsFloat returns the value of a scalar float literal.
func AsFloat(e *Expr) (float64, bool) {
	if e == nil || e.Kind != ExprConst || !e.Type.IsFloat() || e.Type.IsVector() {
		return 0, false
	}
	return e.Data.(ConstData).Float, true
}

// ScalarConst looks through a broadcast to the scalar literal beneath.
func ScalarConst(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	if e.Kind == ExprBroadcast {
		e = e.Data.(BroadcastData).Value
	}
	if e.Kind == ExprConst {
		return e
	}
	return nil
}

// IsConst reports whether e is a literal or a broadcast literal.
func IsConst(e *Expr) bool { return ScalarConst(e) != nil }

// IsTrue reports whether e is the literal true (in every lane).
func IsTrue(e *Expr) bool {
	c := ScalarConst(e)
	return c != nil && c.Type.IsBool() && c.Data.(ConstData).Int == 1
}

// IsFalse reports whether e is the literal false (in every lane).
func IsFalse(e *Expr) bool {
	c := ScalarConst(e)
	return c != nil && c.Type.IsBool() && c.Data.(ConstData).Int == 0
}

// IsZero reports whether e is a zero literal of any numeric type.
func IsZero(e *Expr) bool { return constSign(e) == 0 && IsConst(e) && !e.Type.IsBool() }

// IsOne reports whether e is a numeric literal equal to one.
func IsOne(e *Expr) bool {
	c := ScalarConst(e)
	if c == nil || c.Type.IsBool() {
		return false
	}
	d := c.Data.(ConstData)
	if c.Type.IsFloat() {
		return d.Float == 1
	}
	return d.Int == 1
}

// IsPositiveConst reports whether e is a literal strictly greater than zero.
func IsPositiveConst(e *Expr) bool { return IsConst(e) && !e.Type.IsBool() && constSign(e) > 0 }

// IsNegativeConst reports whether e is a literal strictly less than zero.
func IsNegativeConst(e *Expr) bool { return IsConst(e) && !e.Type.IsBool() && constSign(e) < 0 }

func constSign(e *Expr) int {
	c := ScalarConst(e)
	if c == nil {
		return 0
	}
	d := c.Data.(ConstData)
	if c.Type.IsFloat() {
		switch {
		case d.Float > 0:
			return 1
		case d.Float < 0:
			return -1
		case math.IsNaN(d.Float):
			return 2
		}
		return 0
	}
	switch {
	case d.Int > 0:
		return 1
	case d.Int < 0 && !c.Type.IsUInt():
		return -1
	case d.Int < 0:
		return 1
	}
	return 0
}

// IsPosInf reports whether e is the positive infinity sentinel.
func IsPosInf(e *Expr) bool { return e != nil && e.Kind == ExprInf && !e.Data.(InfData).Neg }

// IsNegInf reports whether e is the negative infinity sentinel.
func IsNegInf(e *Expr) bool { return e != nil && e.Kind == ExprInf && e.Data.(InfData).Neg }

// IsInf reports whether e is either infinity sentinel.
func IsInf(e *Expr) bool { return e != nil && e.Kind == ExprInf }

// StripLikely removes a Likely wrapper, if present.
func StripLikely(e *Expr) *Expr {
	for e != nil && e.Kind == ExprLikely {
		e = e.Data.(UnaryData).A
	}
	return e
}
