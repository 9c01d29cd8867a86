package types

import (
	"fmt"
	"math/big"
)

// Constant is a compile-time value (spec §3 "Constant"). math/big backs the
// Integer arm because the language needs arbitrary-precision arithmetic with
// explicit bit-width/signedness semantics that no third-party library in the
// example pack provides an idiomatic replacement for (see DESIGN.md).
type Constant struct {
	Kind     Kind // Unit, Bool, UInt, SInt, Field, String, Range/RangeInclusive, Struct, Array, Tuple
	Int      *big.Int
	Signed   bool
	Bitlen   int
	Bool     bool
	Str      string
	EnumType *Type // non-nil when this Integer constant denotes an enum value
	Low, High *big.Int // Range/RangeInclusive
	Elems    []Constant // Array, Tuple
	Fields   map[string]Constant // Struct

	// Untyped marks an integer Constant that came from a literal with no
	// width suffix (spec §4.5): it defaults to u248 but may still retarget
	// to whatever narrower width the surrounding context requires.
	Untyped bool
}

// FieldModulus is the SNARK scalar field's prime modulus. The concrete curve
// is out of scope (spec §1); a BN254-scalar-sized prime stands in so Field
// constant folding and range checks have a concrete modulus to work against.
var FieldModulus = mustParse("21888242871839275222246405745257275088548364400416034343698204186575808495617")

func mustParse(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("types: invalid field modulus literal")
	}
	return n
}

// IntBounds returns the inclusive [lo, hi] range a value of the given
// signedness/width may hold (spec §3 invariants).
func IntBounds(signed bool, bitlen int) (lo, hi *big.Int) {
	if signed {
		hi = new(big.Int).Lsh(big.NewInt(1), uint(bitlen-1))
		lo = new(big.Int).Neg(hi)
		hi.Sub(hi, big.NewInt(1))
		return lo, hi
	}
	hi = new(big.Int).Lsh(big.NewInt(1), uint(bitlen))
	hi.Sub(hi, big.NewInt(1))
	return big.NewInt(0), hi
}

// InRange reports whether v satisfies the bounds for (signed, bitlen), or
// lies in [0, FieldModulus) when bitlen == 0 (meaning Field).
func InRange(v *big.Int, signed bool, bitlen int) bool {
	if bitlen == 0 {
		return v.Sign() >= 0 && v.Cmp(FieldModulus) < 0
	}
	lo, hi := IntBounds(signed, bitlen)
	return v.Cmp(lo) >= 0 && v.Cmp(hi) <= 0
}

// OverflowError reports a constant-fold-time range violation (spec §7
// "Constant": "integer overflow at fold time").
type OverflowError struct {
	Value  *big.Int
	Signed bool
	Bitlen int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("constant %s overflows %s", e.Value, widthName(e.Signed, e.Bitlen))
}

func widthName(signed bool, bitlen int) string {
	if bitlen == 0 {
		return "field"
	}
	if signed {
		return fmt.Sprintf("i%d", bitlen)
	}
	return fmt.Sprintf("u%d", bitlen)
}

// NewInteger builds an Integer Constant, validating the range invariant.
func NewInteger(v *big.Int, signed bool, bitlen int) (Constant, error) {
	if !InRange(v, signed, bitlen) {
		return Constant{}, &OverflowError{Value: v, Signed: signed, Bitlen: bitlen}
	}
	kind := UInt
	if signed {
		kind = SInt
	}
	if bitlen == 0 {
		kind = Field
	}
	return Constant{Kind: kind, Int: new(big.Int).Set(v), Signed: signed, Bitlen: bitlen}, nil
}

// Retarget reinterprets an untyped integer Constant at a caller-chosen
// (signed, bitlen), validating the value still fits (spec §4.5). The result
// is concretely typed: a retargeted Constant is no longer Untyped.
func (c Constant) Retarget(signed bool, bitlen int) (Constant, error) {
	return NewInteger(c.Int, signed, bitlen)
}

// DivByZeroError reports constant-fold-time division or remainder by zero.
type DivByZeroError struct{ Op string }

func (e *DivByZeroError) Error() string { return fmt.Sprintf("constant %s by zero", e.Op) }

// EuclidDivRem computes Euclidean division per spec §4.8/Glossary:
// a = q*b + m, 0 <= m < |b|. Division by zero returns DivByZeroError.
//
//	EuclidDivRem(9,4)   = (2,1)
//	EuclidDivRem(9,-4)  = (-2,1)
//	EuclidDivRem(-9,4)  = (-3,3)
//	EuclidDivRem(-9,-4) = (3,3)
func EuclidDivRem(a, b *big.Int) (q, m *big.Int, err error) {
	if b.Sign() == 0 {
		return nil, nil, &DivByZeroError{Op: "division"}
	}
	q, m = new(big.Int), new(big.Int)
	q.DivMod(a, b, m) // big.DivMod is exactly Euclidean division (0 <= m < |b|)
	return q, m, nil
}

// Type returns the Semantic Type of a Constant.
func (c Constant) Type() Type {
	switch c.Kind {
	case Unit:
		return TyUnit
	case Bool:
		return TyBool
	case UInt:
		return NewUInt(c.Bitlen)
	case SInt:
		return NewSInt(c.Bitlen)
	case Field:
		return TyField
	case String:
		return TyString
	default:
		return Type{Kind: c.Kind}
	}
}
