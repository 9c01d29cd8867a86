package semantic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vikkkko/zinc/internal/ast"
	"github.com/vikkkko/zinc/internal/diag"
	"github.com/vikkkko/zinc/internal/scope"
	"github.com/vikkkko/zinc/internal/types"
)

// resolveBuiltinScalar recognizes "bool", "field", "uN", "iN".
func resolveBuiltinScalar(name string) (types.Type, bool) {
	switch name {
	case "bool":
		return types.TyBool, true
	case "field":
		return types.TyField, true
	case "string":
		return types.TyString, true
	}
	if len(name) < 2 {
		return types.Type{}, false
	}
	signed := name[0] == 'i'
	unsigned := name[0] == 'u'
	if !signed && !unsigned {
		return types.Type{}, false
	}
	bits, err := strconv.Atoi(name[1:])
	if err != nil || !types.ValidBitlen(bits) {
		return types.Type{}, false
	}
	if signed {
		return types.NewSInt(bits), true
	}
	return types.NewUInt(bits), true
}

// resolveType turns a syntactic TypeExpr into a Semantic Type, resolving
// named composites through the analyzer's scope.
func (a *Analyzer) resolveType(te ast.TypeExpr) (types.Type, error) {
	switch {
	case te.Elem != nil && te.ArrayLen != nil:
		elem, err := a.resolveType(*te.Elem)
		if err != nil {
			return types.Type{}, err
		}
		n, err := a.constEvalArrayLen(te.ArrayLen)
		if err != nil {
			return types.Type{}, err
		}
		return types.Type{Kind: types.Array, Elem: &elem, Len: n}, nil
	case te.Tuple != nil:
		elems := make([]types.Type, len(te.Tuple))
		for i, t := range te.Tuple {
			et, err := a.resolveType(t)
			if err != nil {
				return types.Type{}, err
			}
			elems[i] = et
		}
		return types.Type{Kind: types.Tuple, Elems: elems}, nil
	default:
		if builtin, ok := resolveBuiltinScalar(te.Name); ok {
			return builtin, nil
		}
		item, found := a.root.Lookup(te.Name)
		if item == nil || found == nil {
			return types.Type{}, &UnresolvedTypeError{Loc: te.Location(), Name: te.Name}
		}
		if item.Kind != scope.KindType && item.Kind != scope.KindModule {
			return types.Type{}, &UnresolvedTypeError{Loc: te.Location(), Name: te.Name}
		}
		if err := a.define(item, te.Location()); err != nil {
			return types.Type{}, err
		}
		t, ok := item.Value.(types.Type)
		if !ok {
			return types.Type{}, &UnresolvedTypeError{Loc: te.Location(), Name: te.Name}
		}
		return t, nil
	}
}

func (a *Analyzer) constEvalArrayLen(e ast.Expr) (int, error) {
	c, err := a.constEvalExpr(e)
	if err != nil {
		return 0, err
	}
	if c.Kind != types.UInt && c.Kind != types.SInt {
		return 0, &NotConstantError{Loc: e.Location(), What: "array length"}
	}
	return int(c.Int.Int64()), nil
}

// UnresolvedTypeError reports a type name that does not resolve to any
// built-in scalar or declared composite.
type UnresolvedTypeError struct {
	Loc  diag.Location
	Name string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("%s: unresolved type %q", e.Loc, e.Name)
}

func typeExprName(te ast.TypeExpr) string {
	if te.Elem != nil {
		return "[" + typeExprName(*te.Elem) + "; N]"
	}
	if te.Tuple != nil {
		parts := make([]string, len(te.Tuple))
		for i, t := range te.Tuple {
			parts[i] = typeExprName(t)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return te.Name
}
