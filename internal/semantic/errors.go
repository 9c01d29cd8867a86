package semantic

import (
	"fmt"

	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/types"
)

// TypeMismatchError reports mismatched operand types (spec §7 "Element /
// Type": "operand-type mismatch").
type TypeMismatchError struct {
	Loc      diag.Location
	Op       string
	Left     types.Type
	Right    types.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: operand type mismatch for %q: %s vs %s", e.Loc, e.Op, e.Left.Kind, e.Right.Kind)
}

// NotConstantError reports a value used where a compile-time constant is
// required (spec §7: "non-constant where constant required").
type NotConstantError struct {
	Loc  diag.Location
	What string
}

func (e *NotConstantError) Error() string {
	return fmt.Sprintf("%s: %s must be a compile-time constant", e.Loc, e.What)
}

// NotEvaluableError reports an Element used where a runtime Value is
// required (spec §7: "non-evaluable where value required").
type NotEvaluableError struct {
	Loc  diag.Location
	What string
}

func (e *NotEvaluableError) Error() string {
	return fmt.Sprintf("%s: %s does not evaluate to a value", e.Loc, e.What)
}

// NotAPlaceError reports an assignment whose LHS is not an lvalue (spec §7:
// "assignment-to-non-place").
type NotAPlaceError struct{ Loc diag.Location }

func (e *NotAPlaceError) Error() string {
	return fmt.Sprintf("%s: left-hand side of assignment is not an assignable place", e.Loc)
}

// ImmutablePlaceError reports an assignment to a Place declared without
// `mut`.
type ImmutablePlaceError struct {
	Loc  diag.Location
	Name string
}

func (e *ImmutablePlaceError) Error() string {
	return fmt.Sprintf("%s: cannot assign to immutable variable %q", e.Loc, e.Name)
}

// CastNotPermittedError reports a disallowed `as` conversion (spec §7:
// "cast-not-permitted").
type CastNotPermittedError struct {
	Loc  diag.Location
	From types.Type
	To   types.Type
}

func (e *CastNotPermittedError) Error() string {
	return fmt.Sprintf("%s: cannot cast %s as %s", e.Loc, e.From.Kind, e.To.Kind)
}

// DuplicateFieldError reports a repeated field name in a struct literal or
// declaration (spec §7: "duplicate-field").
type DuplicateFieldError struct {
	Loc  diag.Location
	Name string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s: duplicate field %q", e.Loc, e.Name)
}

// StructNotInitializedError reports a struct literal missing required
// fields (spec §7: "structure-not-initialized").
type StructNotInitializedError struct {
	Loc     diag.Location
	Missing []string
}

func (e *StructNotInitializedError) Error() string {
	return fmt.Sprintf("%s: missing field(s) %v in struct literal", e.Loc, e.Missing)
}

// BitwiseForbiddenError reports a bitwise op on a signed integer or Field
// (spec §4.4: "forbidden on signed integers and Field").
type BitwiseForbiddenError struct {
	Loc diag.Location
	On  types.Type
}

func (e *BitwiseForbiddenError) Error() string {
	return fmt.Sprintf("%s: bitwise operators are forbidden on %s", e.Loc, e.On.Kind)
}

// NonConstantShiftError reports a shift whose RHS is not a compile-time
// constant (spec §4.4: "<</>> require the RHS to be a compile-time
// constant").
type NonConstantShiftError struct{ Loc diag.Location }

func (e *NonConstantShiftError) Error() string {
	return fmt.Sprintf("%s: shift amount must be a compile-time constant", e.Loc)
}

// FieldRemainderError reports `%` applied to Field (spec §4.4: "% is
// forbidden on Field").
type FieldRemainderError struct{ Loc diag.Location }

func (e *FieldRemainderError) Error() string {
	return fmt.Sprintf("%s: remainder (%%) is not defined on field", e.Loc)
}

// BadGenericsArityError reports a generic type/function instantiated with
// the wrong number of type arguments (spec §7: "bad generics arity").
type BadGenericsArityError struct {
	Loc      diag.Location
	Name     string
	Expected int
	Got      int
}

func (e *BadGenericsArityError) Error() string {
	return fmt.Sprintf("%s: %q expects %d generic argument(s), got %d", e.Loc, e.Name, e.Expected, e.Got)
}

// SelfPositionError reports a `self` parameter not in position 0 (spec
// §4.4: "a self parameter must be in position 0").
type SelfPositionError struct{ Loc diag.Location }

func (e *SelfPositionError) Error() string {
	return fmt.Sprintf("%s: 'self' parameter must be the first parameter", e.Loc)
}

// ReturnTypeMismatchError reports a function body whose result type
// disagrees with its declared return type (spec §4.4).
type ReturnTypeMismatchError struct {
	Loc      diag.Location
	Declared types.Type
	Actual   types.Type
}

func (e *ReturnTypeMismatchError) Error() string {
	return fmt.Sprintf("%s: function body produces %s, declared return type is %s", e.Loc, e.Actual.Kind, e.Declared.Kind)
}
