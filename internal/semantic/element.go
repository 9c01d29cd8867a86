// Package semantic implements Zinc's semantic analyzer (spec §4.4): type
// checking, constant folding, method resolution, and lowering to IR. It
// fuses spec components D (analyzer) and E (IR generator) into a single
// tree walk that both classifies each expression as an Element and emits
// the corresponding instructions, the way the teacher's own
// runtime/planner/planner.go drives its IR builder inline as it walks the
// parsed tree rather than materializing a separate analyzed-tree stage.
package semantic

import (
	"github.com/vikkkko/zinc/internal/scope"
	"github.com/vikkkko/zinc/internal/types"
)

// ElementKind tags the Element sum (spec §3 "Element").
type ElementKind int

const (
	ElemValue ElementKind = iota
	ElemConstant
	ElemType
	ElemPath
	ElemPlace
	ElemIdentifier
	ElemModule
	ElemArgumentList
	ElemTupleIndex
)

// MemoryKind is where a Place's storage lives (spec §3 "Place").
type MemoryKind int

const (
	MemStack MemoryKind = iota
	MemContractStorage
	MemData
)

// Place is an lvalue (spec §3 "Place").
type Place struct {
	RootIdentifier string
	Type           types.Type
	IsMutable      bool
	Memory         MemoryKind
	StorageIndex   int // meaningful when Memory == MemContractStorage
	LocalSlot      int // meaningful when Memory == MemStack
}

// Element is the analyzer's value-stack entry (spec §3 "Element").
type Element struct {
	Kind ElementKind

	ValueType types.Type      // ElemValue
	Const     types.Constant  // ElemConstant
	Typ       types.Type      // ElemType
	Path      []string        // ElemPath
	Place     Place           // ElemPlace
	Ident     string          // ElemIdentifier
	Module    *scope.Scope    // ElemModule
	Args      []Element       // ElemArgumentList
	TupleIdx  int             // ElemTupleIndex
}

// Rule is the translation hint passed down while resolving a path/identifier
// (spec §4.4: "a rule hint: Place | Value | Constant | Type | Path | Field").
type Rule int

const (
	RulePlace Rule = iota
	RuleValue
	RuleConstant
	RuleType
	RulePath
	RuleField
)

func valueElem(t types.Type) Element   { return Element{Kind: ElemValue, ValueType: t} }
func constElem(c types.Constant) Element { return Element{Kind: ElemConstant, Const: c, ValueType: c.Type()} }
func placeElem(p Place) Element        { return Element{Kind: ElemPlace, Place: p, ValueType: p.Type} }

// TypeOf returns the Semantic Type an Element evaluates to, auto-loading a
// Place the way every operator does except on the LHS of assignment (spec
// §4.4).
func TypeOf(e Element) types.Type {
	switch e.Kind {
	case ElemValue:
		return e.ValueType
	case ElemConstant:
		return e.Const.Type()
	case ElemPlace:
		return e.Place.Type
	default:
		return types.TyUnit
	}
}
