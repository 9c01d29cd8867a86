package vm

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"

	"github.com/vikkkko/zinc/internal/gadget"
	"github.com/vikkkko/zinc/internal/storage"
	"github.com/vikkkko/zinc/internal/types"
)

// callLibrary dispatches one std::/zksync:: binding (internal/stdlib's
// compile-time name table) to its runtime implementation, popping argCount
// operands and pushing the binding's result (spec §6 "External
// Interfaces"). Grounded on the teacher's registry.go name -> handler
// lookup, generalized from shell builtins to library gadgets.
func (m *Machine) callLibrary(name string, argCount int) error {
	args := m.popN(argCount)
	switch name {
	case "dbg":
		if m.cfg.Debug >= DebugDetailed {
			m.events = append(m.events, DebugEvent{Note: fmt.Sprintf("dbg: %v", constantsToAny(args))})
		}
		return nil

	case "require":
		if len(args) < 1 {
			return fmt.Errorf("vm: require needs a condition argument")
		}
		msg := ""
		if len(args) > 1 {
			msg = args[1].Str
		}
		if m.mask() {
			return gadget.Require(m.cs, args[0].Bool, msg)
		}
		return nil

	case "std::crypto::sha256", "std::crypto::pedersen":
		// The concrete hash/curve backend is out of scope; blake2b-256
		// stands in uniformly for both bindings (see DESIGN.md).
		h := blake2b.Sum256(concatConstantBytes(args))
		v, err := types.NewInteger(new(big.Int).SetBytes(h[:]), false, 248)
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case "std::crypto::schnorr::Signature::verify":
		m.push(types.Constant{Kind: types.Bool, Bool: schnorrVerifyToy(args)})
		return nil

	case "std::convert::to_bits":
		if len(args) != 1 {
			return fmt.Errorf("vm: to_bits takes one argument")
		}
		m.push(toBits(args[0], 248))
		return nil

	case "std::convert::from_bits_u8":
		return m.pushFromBits(args, false, 8)
	case "std::convert::from_bits_u16":
		return m.pushFromBits(args, false, 16)
	case "std::convert::from_bits_u32":
		return m.pushFromBits(args, false, 32)
	case "std::convert::from_bits_u64":
		return m.pushFromBits(args, false, 64)
	case "std::convert::from_bits_field":
		return m.pushFromBits(args, false, 0)

	case "std::array::reverse":
		if len(args) != 1 {
			return fmt.Errorf("vm: reverse takes one argument")
		}
		m.push(reverseArray(args[0]))
		return nil
	case "std::array::truncate":
		if len(args) != 2 {
			return fmt.Errorf("vm: truncate takes (array, len)")
		}
		n := int(args[1].Int.Int64())
		if n > len(args[0].Elems) {
			n = len(args[0].Elems)
		}
		m.push(types.Constant{Kind: types.Array, Elems: append([]types.Constant(nil), args[0].Elems[:n]...)})
		return nil
	case "std::array::pad":
		if len(args) != 3 {
			return fmt.Errorf("vm: pad takes (array, len, fill)")
		}
		m.push(padArray(args[0], int(args[1].Int.Int64()), args[2]))
		return nil

	case "std::ff::invert":
		if len(args) != 1 {
			return fmt.Errorf("vm: invert takes one argument")
		}
		v, err := gadget.Inverse(m.cs, args[0])
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case "std::collections::MTreeMap::get":
		return m.mtreeGet(args)
	case "std::collections::MTreeMap::set":
		return m.mtreeSet(args)
	case "std::collections::MTreeMap::root":
		h := m.store.RootHash()
		v, err := types.NewInteger(new(big.Int).SetBytes(h[:]), false, 248)
		if err != nil {
			return err
		}
		m.push(v)
		return nil

	case "zksync::Transaction::sender":
		m.push(types.Constant{Kind: types.Struct, Fields: map[string]types.Constant{
			"address": addressConstant(m.currentTx.Sender),
		}})
		return nil
	case "zksync::Transaction::current":
		m.push(types.Constant{Kind: types.Struct, Fields: map[string]types.Constant{
			"sender":    addressConstant(m.currentTx.Sender),
			"recipient": addressConstant(m.currentTx.Recipient),
			"token":     addressConstant(m.currentTx.Token),
			"amount":    *m.currentTx.Amount,
		}})
		return nil
	case "zksync::transfer":
		if len(args) != 3 {
			return fmt.Errorf("vm: transfer takes (recipient, token, amount)")
		}
		if m.mask() {
			amt := args[2]
			m.transfers = append(m.transfers, Transfer{
				Recipient: addressFromConstant(args[0]),
				TokenAddr: addressFromConstant(args[1]),
				Amount:    &amt,
			})
		}
		return nil

	default:
		return fmt.Errorf("vm: unrecognized library call %q", name)
	}
}

func concatConstantBytes(cs []types.Constant) []byte {
	var buf []byte
	for _, c := range cs {
		if c.Int != nil {
			buf = append(buf, c.Int.Bytes()...)
		}
		buf = append(buf, 0)
	}
	return buf
}

// schnorrVerifyToy checks a MAC-style relation (hash(pubkey||msg) ==
// signature) rather than real elliptic-curve Schnorr verification: the
// concrete curve is out of scope (see DESIGN.md), so this stands in as a
// structurally equivalent three-argument boolean gadget.
func schnorrVerifyToy(args []types.Constant) bool {
	if len(args) != 3 {
		return false
	}
	h := blake2b.Sum256(concatConstantBytes(args[:2]))
	expect := new(big.Int).SetBytes(h[:])
	return args[2].Int != nil && new(big.Int).Mod(expect, types.FieldModulus).Cmp(args[2].Int) == 0
}

func toBits(c types.Constant, n int) types.Constant {
	elems := make([]types.Constant, n)
	v := new(big.Int).Set(c.Int)
	for i := 0; i < n; i++ {
		bit := new(big.Int).And(v, big.NewInt(1)).Int64() == 1
		elems[i] = types.Constant{Kind: types.Bool, Bool: bit}
		v.Rsh(v, 1)
	}
	return types.Constant{Kind: types.Array, Elems: elems}
}

func (m *Machine) pushFromBits(args []types.Constant, signed bool, bitlen int) error {
	if len(args) != 1 {
		return fmt.Errorf("vm: from_bits takes one argument")
	}
	v := big.NewInt(0)
	for i := len(args[0].Elems) - 1; i >= 0; i-- {
		v.Lsh(v, 1)
		if args[0].Elems[i].Bool {
			v.Or(v, big.NewInt(1))
		}
	}
	out, err := types.NewInteger(v, signed, bitlen)
	if err != nil {
		return err
	}
	m.push(out)
	return nil
}

func reverseArray(c types.Constant) types.Constant {
	n := len(c.Elems)
	out := make([]types.Constant, n)
	for i, e := range c.Elems {
		out[n-1-i] = e
	}
	return types.Constant{Kind: types.Array, Elems: out}
}

func padArray(c types.Constant, n int, fill types.Constant) types.Constant {
	if len(c.Elems) >= n {
		return types.Constant{Kind: types.Array, Elems: append([]types.Constant(nil), c.Elems[:n]...)}
	}
	out := append([]types.Constant(nil), c.Elems...)
	for len(out) < n {
		out = append(out, fill)
	}
	return types.Constant{Kind: types.Array, Elems: out}
}

func (m *Machine) mtreeGet(args []types.Constant) error {
	if len(args) != 1 {
		return fmt.Errorf("vm: MTreeMap::get takes one key argument")
	}
	leaf, path, err := m.store.Load(0)
	if err != nil {
		return err
	}
	if !storage.VerifyPath(m.storageRoot, 0, storage.LeafHash(leaf), path) {
		return &storage.AuthenticationError{Index: 0}
	}
	key := args[0].Int.String()
	if leaf.Kind != storage.MapLeaf {
		return fmt.Errorf("vm: MTreeMap::get against a non-map leaf")
	}
	v, ok := leaf.Entries[key]
	if !ok {
		v = types.Constant{Kind: types.Field, Int: big.NewInt(0)}
	}
	m.push(v)
	return nil
}

func (m *Machine) mtreeSet(args []types.Constant) error {
	if len(args) != 2 {
		return fmt.Errorf("vm: MTreeMap::set takes (key, value)")
	}
	if !m.mask() {
		return nil
	}
	leaf, path, err := m.store.Load(0)
	if err != nil {
		return err
	}
	if !storage.VerifyPath(m.storageRoot, 0, storage.LeafHash(leaf), path) {
		return &storage.AuthenticationError{Index: 0}
	}
	if leaf.Kind != storage.MapLeaf {
		leaf = storage.Leaf{Kind: storage.MapLeaf, Entries: map[string]types.Constant{}}
	}
	if leaf.Entries == nil {
		leaf.Entries = map[string]types.Constant{}
	}
	leaf.Entries[args[0].Int.String()] = args[1]
	newRoot, _, err := m.store.Set(0, leaf)
	if err != nil {
		return err
	}
	m.storageRoot = newRoot
	return nil
}

func addressConstant(addr [20]byte) types.Constant {
	return types.Constant{Kind: types.Field, Int: new(big.Int).SetBytes(addr[:])}
}

func addressFromConstant(c types.Constant) [20]byte {
	var out [20]byte
	if c.Int != nil {
		b := c.Int.Bytes()
		copy(out[20-len(b):], b)
	}
	return out
}
