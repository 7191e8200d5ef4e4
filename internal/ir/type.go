package ir

import "fmt"

// TypeKind enumerates scalar element kinds.
type TypeKind uint8

const (
	// TypeInt is a signed two's complement integer.
	TypeInt TypeKind = iota
	// TypeUInt is an unsigned integer.
	TypeUInt
	// TypeFloat is an IEEE float.
	TypeFloat
	// TypeBool is a one-bit truth value.
	TypeBool
	// TypeHandle is an opaque pointer-sized value.
	TypeHandle
)

// String returns a human-readable name for the type kind.
func (k TypeKind) String() string {
	switch k {
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Type describes the value produced by an expression.
// Lanes > 1 denotes a vector of Lanes elements.
type Type struct {
	Kind  TypeKind
	Bits  uint8
	Lanes uint16
}

// Int returns a scalar signed integer type.
func Int(bits int) Type { return Type{Kind: TypeInt, Bits: uint8(bits), Lanes: 1} }

// UInt returns a scalar unsigned integer type.
func UInt(bits int) Type { return Type{Kind: TypeUInt, Bits: uint8(bits), Lanes: 1} }

// Float returns a scalar float type.
func Float(bits int) Type { return Type{Kind: TypeFloat, Bits: uint8(bits), Lanes: 1} }

// Bool returns the scalar boolean type.
func Bool() Type { return Type{Kind: TypeBool, Bits: 1, Lanes: 1} }

// Handle returns the opaque handle type.
func Handle() Type { return Type{Kind: TypeHandle, Bits: 64, Lanes: 1} }

// I32 is the type of loop variables and loop bounds.
var I32 = Int(32)

// WithLanes returns t with the given vector width.
func (t Type) WithLanes(n int) Type {
	t.Lanes = uint16(n)
	return t
}

// Element returns the scalar element type of t.
func (t Type) Element() Type { return t.WithLanes(1) }

// IsVector reports whether t has more than one lane.
func (t Type) IsVector() bool { return t.Lanes > 1 }

// IsScalar reports whether t has exactly one lane.
func (t Type) IsScalar() bool { return t.Lanes <= 1 }

// IsInt reports whether t is a signed integer type.
func (t Type) IsInt() bool { return t.Kind == TypeInt }

// IsUInt reports whether t is an unsigned integer type.
func (t Type) IsUInt() bool { return t.Kind == TypeUInt }

// IsIntLike reports whether t is a signed or unsigned integer type.
func (t Type) IsIntLike() bool { return t.Kind == TypeInt || t.Kind == TypeUInt }

// IsFloat reports whether t is a float type.
func (t Type) IsFloat() bool { return t.Kind == TypeFloat }

// IsBool reports whether t is a boolean type.
func (t Type) IsBool() bool { return t.Kind == TypeBool }

// IsHandle reports whether t is a handle type.
func (t Type) IsHandle() bool { return t.Kind == TypeHandle }

// String renders t as e.g. "int32" or "float32x8".
func (t Type) String() string {
	var base string
	switch t.Kind {
	case TypeBool:
		base = "bool"
	case TypeHandle:
		base = "handle"
	default:
		base = fmt.Sprintf("%s%d", t.Kind, t.Bits)
	}
	if t.Lanes > 1 {
		return fmt.Sprintf("%sx%d", base, t.Lanes)
	}
	return base
}

// WrapInt reduces v to the range representable by the integer type t.
// Signed types sign-extend from their width, unsigned types zero-extend,
// and booleans collapse to 0 or 1.
func WrapInt(t Type, v int64) int64 {
	switch t.Kind {
	case TypeBool:
		if v != 0 {
			return 1
		}
		return 0
	case TypeInt:
		if t.Bits >= 64 || t.Bits == 0 {
			return v
		}
		shift := 64 - uint(t.Bits)
		return (v << shift) >> shift
	case TypeUInt:
		if t.Bits >= 64 || t.Bits == 0 {
			return v
		}
		return int64(uint64(v) & (uint64(1)<<t.Bits - 1))
	}
	return v
}
