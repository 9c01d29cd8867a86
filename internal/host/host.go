// Package host implements the VM <-> host program boundary (spec §6
// "Program boundary (VM <-> host)"): converting the open-ended
// bytecode.Value trees a caller supplies/receives into the flat
// types.Constant sequences the VM's locals and evaluation stack actually
// hold, and driving one circuit or contract-method invocation end to end.
// Grounded on the teacher's top-level runtime/executor.Execute(steps,
// config) entry point, which is likewise the single place a caller hands
// typed input to the runner and gets a typed result back.
package host

import (
	"fmt"
	"math/big"

	"github.com/vikkkko/zinc/internal/bytecode"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/storage"
	"github.com/vikkkko/zinc/internal/types"
	"github.com/vikkkko/zinc/internal/vm"
)

// FlattenValue lowers one typed bytecode.Value into the scalar
// types.Constant sequence the generator's slot layout assumes, in the same
// depth-first field order types.Size walks (spec §3 "Place.memory_type
// determines load/store opcode"; a composite value occupies the sum of its
// parts' sizes).
func FlattenValue(v bytecode.Value, t types.Type) ([]types.Constant, error) {
	switch t.Kind {
	case types.Unit:
		return nil, nil

	case types.Bool:
		return []types.Constant{{Kind: types.Bool, Bool: v.Bool}}, nil

	case types.UInt, types.SInt, types.Field:
		if v.Int == nil {
			return nil, fmt.Errorf("host: expected an integer value for %s", t.Kind)
		}
		c, err := types.NewInteger(v.Int, t.Kind == types.SInt, t.Bitlen)
		if err != nil {
			return nil, err
		}
		return []types.Constant{c}, nil

	case types.Enum:
		if v.Int == nil {
			return nil, fmt.Errorf("host: expected an integer discriminant for enum %s", t.Name)
		}
		tCopy := t
		return []types.Constant{{Kind: types.UInt, Int: new(big.Int).Set(v.Int), Bitlen: t.Bitlen, EnumType: &tCopy}}, nil

	case types.Array:
		if len(v.Elems) != t.Len {
			return nil, fmt.Errorf("host: array length mismatch: type wants %d, value has %d", t.Len, len(v.Elems))
		}
		out := make([]types.Constant, 0, t.Len)
		for _, e := range v.Elems {
			flat, err := FlattenValue(e, *t.Elem)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		}
		return out, nil

	case types.Tuple:
		if len(v.Elems) != len(t.Elems) {
			return nil, fmt.Errorf("host: tuple arity mismatch: type wants %d, value has %d", len(t.Elems), len(v.Elems))
		}
		var out []types.Constant
		for i, et := range t.Elems {
			flat, err := FlattenValue(v.Elems[i], et)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		}
		return out, nil

	case types.Struct, types.Contract:
		var out []types.Constant
		for _, f := range t.Fields {
			fv, ok := v.Fields[f.Name]
			if !ok {
				return nil, fmt.Errorf("host: value missing field %q of %s", f.Name, t.Name)
			}
			flat, err := FlattenValue(fv, *f.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("host: cannot flatten type kind %s", t.Kind)
	}
}

// UnflattenValue is FlattenValue's inverse: it rebuilds a typed
// bytecode.Value tree from a flat scalar sequence (the VM's output stack,
// or one storage leaf's elements), consuming exactly types.Size(t)
// constants and returning the remainder for the caller's next field.
func UnflattenValue(cs []types.Constant, t types.Type) (bytecode.Value, []types.Constant, error) {
	switch t.Kind {
	case types.Unit:
		return bytecode.Value{Kind: "unit"}, cs, nil

	case types.Bool:
		if len(cs) < 1 {
			return bytecode.Value{}, nil, fmt.Errorf("host: ran out of values unflattening bool")
		}
		return bytecode.BoolValue(cs[0].Bool), cs[1:], nil

	case types.UInt, types.SInt, types.Field, types.Enum:
		if len(cs) < 1 {
			return bytecode.Value{}, nil, fmt.Errorf("host: ran out of values unflattening %s", t.Kind)
		}
		return bytecode.IntValue(new(big.Int).Set(cs[0].Int)), cs[1:], nil

	case types.Array:
		elems := make([]bytecode.Value, t.Len)
		rest := cs
		for i := 0; i < t.Len; i++ {
			var (
				v   bytecode.Value
				err error
			)
			v, rest, err = UnflattenValue(rest, *t.Elem)
			if err != nil {
				return bytecode.Value{}, nil, err
			}
			elems[i] = v
		}
		return bytecode.ArrayValue(elems), rest, nil

	case types.Tuple:
		elems := make([]bytecode.Value, len(t.Elems))
		rest := cs
		for i, et := range t.Elems {
			var (
				v   bytecode.Value
				err error
			)
			v, rest, err = UnflattenValue(rest, et)
			if err != nil {
				return bytecode.Value{}, nil, err
			}
			elems[i] = v
		}
		return bytecode.TupleValue(elems), rest, nil

	case types.Struct, types.Contract:
		fields := make(map[string]bytecode.Value, len(t.Fields))
		rest := cs
		for _, f := range t.Fields {
			var (
				v   bytecode.Value
				err error
			)
			v, rest, err = UnflattenValue(rest, *f.Type)
			if err != nil {
				return bytecode.Value{}, nil, err
			}
			fields[f.Name] = v
		}
		return bytecode.StructValue(fields), rest, nil

	default:
		return bytecode.Value{}, nil, fmt.Errorf("host: cannot unflatten type kind %s", t.Kind)
	}
}

// leafToStorage converts one host-supplied bytecode.Leaf into the
// storage.Leaf shape the Store operates on. Array-leaf elements are decoded
// as raw Field scalars (a storage leaf's size is asserted by the IR's
// storageLoad/storageStore operand, not re-derived here).
func leafToStorage(l bytecode.Leaf) (storage.Leaf, error) {
	switch l.Kind {
	case "array":
		elems := make([]types.Constant, 0, len(l.Elems))
		for _, v := range l.Elems {
			if v.Int == nil {
				return storage.Leaf{}, fmt.Errorf("host: array leaf element missing an integer value")
			}
			elems = append(elems, types.Constant{Kind: types.Field, Int: new(big.Int).Set(v.Int)})
		}
		return storage.Leaf{Kind: storage.ArrayLeaf, Elems: elems}, nil
	case "map":
		entries := make(map[string]types.Constant, len(l.Entries))
		for k, v := range l.Entries {
			if v.Int == nil {
				return storage.Leaf{}, fmt.Errorf("host: map leaf entry %q missing an integer value", k)
			}
			entries[k] = types.Constant{Kind: types.Field, Int: new(big.Int).Set(v.Int)}
		}
		return storage.Leaf{Kind: storage.MapLeaf, Entries: entries}, nil
	default:
		return storage.Leaf{}, fmt.Errorf("host: unknown leaf kind %q", l.Kind)
	}
}

func storageToLeaf(l storage.Leaf) bytecode.Leaf {
	switch l.Kind {
	case storage.ArrayLeaf:
		elems := make([]bytecode.Value, len(l.Elems))
		for i, c := range l.Elems {
			elems[i] = bytecode.IntValue(new(big.Int).Set(c.Int))
		}
		return bytecode.ArrayLeaf(elems)
	default: // storage.MapLeaf
		entries := make(map[string]bytecode.Value, len(l.Entries))
		for k, c := range l.Entries {
			entries[k] = bytecode.IntValue(new(big.Int).Set(c.Int))
		}
		return bytecode.MapLeaf(entries)
	}
}

func snapshotToStore(snap bytecode.StorageSnapshot) (*storage.Store, error) {
	leaves := make([]storage.Leaf, len(snap))
	for i, l := range snap {
		sl, err := leafToStorage(l)
		if err != nil {
			return nil, fmt.Errorf("host: storage leaf %d: %w", i, err)
		}
		leaves[i] = sl
	}
	return storage.New(leaves), nil
}

func storeToSnapshot(st *storage.Store) bytecode.StorageSnapshot {
	leaves := st.Snapshot()
	out := make(bytecode.StorageSnapshot, len(leaves))
	for i, l := range leaves {
		out[i] = storageToLeaf(l)
	}
	return out
}

// RunCircuit drives a Circuit-kind Program to completion: flattens input
// into the initial call frame's locals, runs to OpExit, and rebuilds a
// typed bytecode.Value from the output stack (spec §6 "Inputs: ... a typed
// tree of values matching input_type").
func RunCircuit(prog *ir.Program, input bytecode.Value, cfg vm.Config) (bytecode.Value, []vm.DebugEvent, error) {
	if prog.Kind != ir.KindCircuit {
		return bytecode.Value{}, nil, fmt.Errorf("host: RunCircuit requires a Circuit program")
	}
	args, err := FlattenValue(input, prog.InputType)
	if err != nil {
		return bytecode.Value{}, nil, fmt.Errorf("host: flattening circuit input: %w", err)
	}
	m := vm.New(prog, nil, nil, cfg)
	for i, a := range args {
		m.SeedLocal(i, a)
	}
	res, err := m.Run()
	if err != nil {
		return bytecode.Value{}, nil, err
	}
	out, rest, err := UnflattenValue(res.Output, prog.OutputType)
	if err != nil {
		return bytecode.Value{}, nil, fmt.Errorf("host: unflattening circuit output: %w", err)
	}
	if len(rest) != 0 {
		return bytecode.Value{}, nil, fmt.Errorf("host: circuit produced %d more output scalars than output_type expects", len(rest))
	}
	return out, res.DebugEvents, nil
}

// RunContractMethod drives one contract method invocation end to end: binds
// the request's storage snapshot into a live Store, any leading transaction
// into a vm.TransactionCtx, flattens the method argument tree into the
// entry frame's locals, runs the method from its recorded bytecode address,
// and rebuilds the typed output, updated storage snapshot, and any emitted
// transfers (spec §6 "Outputs" for the Contract case).
func RunContractMethod(prog *ir.Program, req bytecode.ContractCallRequest, cfg vm.Config) (bytecode.ContractCallResult, error) {
	if prog.Kind != ir.KindContract {
		return bytecode.ContractCallResult{}, fmt.Errorf("host: RunContractMethod requires a Contract program")
	}
	method, ok := prog.Methods[req.Method]
	if !ok {
		return bytecode.ContractCallResult{}, fmt.Errorf("host: method %q not found", req.Method)
	}

	store, err := snapshotToStore(req.Storage)
	if err != nil {
		return bytecode.ContractCallResult{}, err
	}

	var tx *vm.TransactionCtx
	if len(req.Transactions) > 0 {
		t := req.Transactions[0]
		amount, err := types.NewInteger(t.Amount, false, 248)
		if err != nil {
			return bytecode.ContractCallResult{}, fmt.Errorf("host: transaction amount: %w", err)
		}
		tx = &vm.TransactionCtx{Sender: t.Sender, Recipient: t.Recipient, Token: t.TokenAddress, Amount: &amount}
	}

	args, err := FlattenValue(req.Args, method.Input)
	if err != nil {
		return bytecode.ContractCallResult{}, fmt.Errorf("host: flattening method input: %w", err)
	}

	// Every method's first local slot(s) hold `self`, occupying as many
	// slots as the contract's storage fields flatten to (spec §4.4 "a self
	// parameter must be in position 0"); self is never itself loaded (field
	// access resolves straight to storage ops), but real arguments still
	// start only after its reserved space.
	selfSize := types.Size(types.Type{Kind: types.Contract, Fields: prog.StorageFields})

	m := vm.New(prog, store, tx, cfg)
	for i, a := range args {
		m.SeedLocal(selfSize+i, a)
	}
	res, err := m.RunFrom(method.Address)
	if err != nil {
		return bytecode.ContractCallResult{}, err
	}

	out, rest, err := UnflattenValue(res.Output, method.Output)
	if err != nil {
		return bytecode.ContractCallResult{}, fmt.Errorf("host: unflattening method output: %w", err)
	}
	if len(rest) != 0 {
		return bytecode.ContractCallResult{}, fmt.Errorf("host: method produced %d more output scalars than its return type expects", len(rest))
	}

	transfers := make([]bytecode.Transfer, len(res.Transfers))
	for i, t := range res.Transfers {
		transfers[i] = bytecode.Transfer{Recipient: t.Recipient, TokenAddress: t.TokenAddr, Amount: new(big.Int).Set(t.Amount.Int)}
	}

	return bytecode.ContractCallResult{
		Output:    out,
		Storage:   storeToSnapshot(res.Storage),
		Transfers: transfers,
	}, nil
}
