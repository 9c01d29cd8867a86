// Package stdlib is the compile-time name registry for the standard library
// surface reachable from Zinc source via `std::...`/`zksync::...` paths
// (spec §6 "External Interfaces"). It supplies each binding's result type to
// the semantic analyzer; the matching runtime implementation is looked up by
// the same name at VM dispatch time (internal/vm's callLibrary, which calls
// into internal/gadget for some bindings), grounded on the teacher's runtime/decorators/registry.go
// name -> implementation table.
package stdlib

import "github.com/vikkkko/zinc/internal/types"

// Binding describes one library call's static signature.
type Binding struct {
	Name      string
	Result    types.Type
	IsMutable bool // true for calls that touch contract storage (zksync::transfer)
}

var table = buildTable()

func buildTable() map[string]Binding {
	eccPoint := types.Type{Kind: types.Struct, ID: types.IntrinsicECCPoint, Name: "ECCPoint"}
	transaction := types.Type{Kind: types.Struct, ID: types.IntrinsicTransaction, Name: "Transaction"}
	hash := types.NewUInt(248)
	bitsArray := func(n int) types.Type {
		b := types.TyBool
		return types.Type{Kind: types.Array, Elem: &b, Len: n}
	}

	bindings := []Binding{
		{Name: "dbg", Result: types.TyUnit},
		{Name: "require", Result: types.TyUnit},

		{Name: "std::crypto::sha256", Result: hash},
		{Name: "std::crypto::pedersen", Result: hash},
		{Name: "std::crypto::schnorr::Signature::verify", Result: types.TyBool},

		{Name: "std::convert::to_bits", Result: bitsArray(248)},
		{Name: "std::convert::from_bits_u8", Result: types.NewUInt(8)},
		{Name: "std::convert::from_bits_u16", Result: types.NewUInt(16)},
		{Name: "std::convert::from_bits_u32", Result: types.NewUInt(32)},
		{Name: "std::convert::from_bits_u64", Result: types.NewUInt(64)},
		{Name: "std::convert::from_bits_field", Result: types.TyField},

		{Name: "std::array::reverse", Result: types.TyUnit},
		{Name: "std::array::truncate", Result: types.TyUnit},
		{Name: "std::array::pad", Result: types.TyUnit},

		{Name: "std::ff::invert", Result: types.TyField},

		{Name: "std::collections::MTreeMap::get", Result: types.TyField},
		{Name: "std::collections::MTreeMap::set", Result: types.TyUnit, IsMutable: true},
		{Name: "std::collections::MTreeMap::root", Result: hash},

		{Name: "zksync::Transaction::sender", Result: eccPoint},
		{Name: "zksync::Transaction::current", Result: transaction},
		{Name: "zksync::transfer", Result: types.TyUnit, IsMutable: true},
	}

	m := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		m[b.Name] = b
	}
	return m
}

// Lookup returns the static Binding for a fully qualified library call name,
// or false if name is not a recognized std::/zksync:: surface.
func Lookup(name string) (Binding, bool) {
	b, ok := table[name]
	return b, ok
}

// Names returns every bound call name, for "did you mean" suggestions on an
// unrecognized path (spec §4.3 fuzzy suggestions).
func Names() []string {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	return names
}
