// This file implements the host-boundary value codec (spec §6 "External
// Interfaces"). Unlike the instruction stream, these trees are open-ended —
// a caller may add fields over time without breaking old decoders — so they
// ride on CBOR (github.com/fxamacker/cbor/v2) instead of the fixed binary
// layout writeType/writeInstruction use.
package bytecode

import (
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Value is a typed host value crossing the circuit/contract boundary: a
// circuit's input_type/output_type tree, a contract method's argument or
// return tree, or a field inside a storage Leaf. Kind names a Semantic Type
// shape ("unit", "bool", "int", "string", "array", "tuple", "struct"; field,
// enum and integer values all use "int") by name, rather than reusing
// types.Kind's numeric tag,
// so an older or foreign decoder can still make sense of an unrecognized
// Value without importing this module's type registry.
type Value struct {
	Kind   string           `cbor:"kind"`
	Bool   bool             `cbor:"bool,omitempty"`
	Int    *big.Int         `cbor:"int,omitempty"`
	Str    string           `cbor:"str,omitempty"`
	Elems  []Value          `cbor:"elems,omitempty"`
	Fields map[string]Value `cbor:"fields,omitempty"`
}

func BoolValue(b bool) Value     { return Value{Kind: "bool", Bool: b} }
func IntValue(v *big.Int) Value  { return Value{Kind: "int", Int: v} }
func StringValue(s string) Value { return Value{Kind: "string", Str: s} }
func ArrayValue(elems []Value) Value {
	return Value{Kind: "array", Elems: elems}
}
func TupleValue(elems []Value) Value {
	return Value{Kind: "tuple", Elems: elems}
}
func StructValue(fields map[string]Value) Value {
	return Value{Kind: "struct", Fields: fields}
}

// addressWidth is the ETH address width in bytes (spec §6: "of ETH-address
// width for addresses").
const addressWidth = 20

// TransactionMsg is one zksync::Transaction the host supplies to a contract
// call (spec §6: "zero or more TransactionMsg{sender, recipient,
// token_address, amount} records").
type TransactionMsg struct {
	Sender       [addressWidth]byte `cbor:"sender"`
	Recipient    [addressWidth]byte `cbor:"recipient"`
	TokenAddress [addressWidth]byte `cbor:"token_address"`
	Amount       *big.Int           `cbor:"amount"`
}

// Transfer is one outbound transfer a contract method emits via
// zksync::transfer (spec §6: "a sequence of Transfer{recipient,
// token_address, amount} records").
type Transfer struct {
	Recipient    [addressWidth]byte `cbor:"recipient"`
	TokenAddress [addressWidth]byte `cbor:"token_address"`
	Amount       *big.Int           `cbor:"amount"`
}

// Leaf is one entry of a contract's storage vector (spec §4.9): either a
// fixed-size Array of scalars or a Map from encoded keys to values.
type Leaf struct {
	Kind    string           `cbor:"kind"` // "array" | "map"
	Elems   []Value          `cbor:"elems,omitempty"`
	Entries map[string]Value `cbor:"entries,omitempty"`
}

func ArrayLeaf(elems []Value) Leaf { return Leaf{Kind: "array", Elems: elems} }
func MapLeaf(entries map[string]Value) Leaf {
	return Leaf{Kind: "map", Entries: entries}
}

// StorageSnapshot is the ordered vector of leaves a contract call receives
// as input and returns as output (spec §6: "a storage snapshot (vector of
// leaves)").
type StorageSnapshot []Leaf

// ContractCallRequest bundles everything a contract method invocation needs
// from the host (spec §6 "Inputs" for the Contract case).
type ContractCallRequest struct {
	Method       string            `cbor:"method"`
	Args         Value             `cbor:"args"`
	Storage      StorageSnapshot   `cbor:"storage"`
	Transactions []TransactionMsg  `cbor:"transactions,omitempty"`
}

// ContractCallResult bundles everything a contract method invocation
// produces for the host (spec §6 "Outputs" for the Contract case).
type ContractCallResult struct {
	Output       Value           `cbor:"output"`
	Storage      StorageSnapshot `cbor:"storage"`
	Transfers    []Transfer      `cbor:"transfers,omitempty"`
}

// EncodeValue/DecodeValue, and the bundle variants below, are thin CBOR
// marshal wrappers: the canonical representation is whatever
// fxamacker/cbor's default struct encoding produces, the same "let the
// library own the wire format" choice the teacher makes for its own
// CBOR-adjacent config/plan encodings.
func EncodeValue(v Value) ([]byte, error) { return cbor.Marshal(v) }

func DecodeValue(data []byte) (Value, error) {
	var v Value
	err := cbor.Unmarshal(data, &v)
	return v, err
}

func EncodeContractCallRequest(req ContractCallRequest) ([]byte, error) {
	return cbor.Marshal(req)
}

func DecodeContractCallRequest(data []byte) (ContractCallRequest, error) {
	var req ContractCallRequest
	err := cbor.Unmarshal(data, &req)
	return req, err
}

func EncodeContractCallResult(res ContractCallResult) ([]byte, error) {
	return cbor.Marshal(res)
}

func DecodeContractCallResult(data []byte) (ContractCallResult, error) {
	var res ContractCallResult
	err := cbor.Unmarshal(data, &res)
	return res, err
}
