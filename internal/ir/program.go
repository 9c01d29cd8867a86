package ir

import "github.com/vikkkko/zinc/internal/types"

// ApplicationKind distinguishes the two bytecode program shapes (spec §3
// "Application").
type ApplicationKind uint8

const (
	KindCircuit ApplicationKind = iota
	KindContract
)

// Method describes one contract entry point (spec §3 "methods:
// map<name,{address, input, output, is_mutable}>").
type Method struct {
	Address   int
	Input     types.Type
	Output    types.Type
	IsMutable bool
}

// UnitTest describes one #[test] function compiled into a contract or
// circuit program.
type UnitTest struct {
	Address    int
	IsIgnored  bool
	ShouldPanic bool
}

// Program is the output of IR generation: either a Circuit or a Contract
// application (spec §3).
type Program struct {
	Kind ApplicationKind

	// Circuit
	InputType  types.Type
	OutputType types.Type

	// Contract
	StorageFields []types.Field
	Methods       map[string]Method
	UnitTests     map[string]UnitTest

	Instructions []Instruction
}
