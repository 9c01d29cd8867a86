package vm_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/storage"
	"github.com/vikkkko/zinc/internal/types"
	"github.com/vikkkko/zinc/internal/vm"
)

func u32Const(v int64) types.Constant {
	c, err := types.NewInteger(big.NewInt(v), false, 32)
	if err != nil {
		panic(err)
	}
	return c
}

func u32() types.Type { return types.NewUInt(32) }

// TestLoopAccumulatesPerIterationVariable exercises the OpLoopVar fix: a
// for-loop body emitted once must still see a fresh loop variable on every
// rewind (sum of 0+1+2 == 3).
func TestLoopAccumulatesPerIterationVariable(t *testing.T) {
	zero := u32Const(0)
	prog := &ir.Program{
		Kind: ir.KindCircuit,
		Instructions: []ir.Instruction{
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &zero}},
			{Op: ir.OpStoreLocal, Arg: ir.Operand{Int: 1, Type: u32()}}, // acc = 0
			{Op: ir.OpLoopBegin, Arg: ir.Operand{Int: 3, Int2: 0, Type: u32()}},
			{Op: ir.OpLoopVar, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpStoreLocal, Arg: ir.Operand{Int: 0, Type: u32()}}, // x = loop var
			{Op: ir.OpLoadLocal, Arg: ir.Operand{Int: 1, Type: u32()}},
			{Op: ir.OpLoadLocal, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpAdd, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpStoreLocal, Arg: ir.Operand{Int: 1, Type: u32()}}, // acc += x
			{Op: ir.OpLoopEnd},
			{Op: ir.OpLoadLocal, Arg: ir.Operand{Int: 1, Type: u32()}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
	m := vm.New(prog, nil, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	require.Len(t, res.Output, 1)
	assert.Equal(t, big.NewInt(3), res.Output[0].Int)
}

// TestZeroIterationLoopSkipsBody ensures a loop bound to a zero count at
// compile time does not execute its body even once.
func TestZeroIterationLoopSkipsBody(t *testing.T) {
	one := u32Const(1)
	prog := &ir.Program{
		Kind: ir.KindCircuit,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoopBegin, Arg: ir.Operand{Int: 0, Int2: 0, Type: u32()}},
			{Op: ir.OpLoopVar, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpPop},
			{Op: ir.OpLoopEnd},
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &one}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
	m := vm.New(prog, nil, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), res.Output[0].Int)
}

// TestIfElseMergeSelectsByPredicate exercises the branch-merge gadget: both
// arms execute structurally, the selection picks the taken one.
func TestIfElseMergeSelectsByPredicate(t *testing.T) {
	cond := types.Constant{Kind: types.Bool, Bool: true}
	ten := u32Const(10)
	twenty := u32Const(20)
	prog := &ir.Program{
		Kind: ir.KindCircuit,
		Instructions: []ir.Instruction{
			{Op: ir.OpPush, Arg: ir.Operand{Type: types.TyBool, Const: &cond}},
			{Op: ir.OpIf},
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &ten}},
			{Op: ir.OpElse},
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &twenty}},
			{Op: ir.OpEndIf, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
	m := vm.New(prog, nil, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), res.Output[0].Int)
	assert.Equal(t, 1, m.Constraints(), "exactly one select constraint emitted for the merged value")
}

// TestRequireFailureSurfacesAsError checks require(false, ...) halts
// execution with the failure message.
func TestRequireFailureSurfacesAsError(t *testing.T) {
	f := types.Constant{Kind: types.Bool, Bool: false}
	prog := &ir.Program{
		Kind: ir.KindCircuit,
		Instructions: []ir.Instruction{
			{Op: ir.OpPush, Arg: ir.Operand{Type: types.TyBool, Const: &f}},
			{Op: ir.OpRequire, Arg: ir.Operand{Str: "balance too low"}},
		},
	}
	m := vm.New(prog, nil, nil, vm.Config{})
	_, err := m.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance too low")
}

// TestStorageLoadStoreRoundTrips exercises OpStorageLoad/OpStorageStore
// against a live Store.
func TestStorageLoadStoreRoundTrips(t *testing.T) {
	st := storage.New([]storage.Leaf{{
		Kind:  storage.ArrayLeaf,
		Elems: []types.Constant{u32Const(7)},
	}})
	v := u32Const(42)
	prog := &ir.Program{
		Kind: ir.KindContract,
		Instructions: []ir.Instruction{
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &v}},
			{Op: ir.OpStorageStore, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpStorageLoad, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
	m := vm.New(prog, st, nil, vm.Config{})
	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), res.Output[0].Int)
}

// TestStorageLoadRejectsLeafNotUnderCommittedRoot exercises the Merkle
// authentication wiring: loading against a Store whose leaves were mutated
// out from under the Machine's committed root must fail, not silently
// return whatever the backing Store now holds.
func TestStorageLoadRejectsLeafNotUnderCommittedRoot(t *testing.T) {
	st := storage.New([]storage.Leaf{{
		Kind:  storage.ArrayLeaf,
		Elems: []types.Constant{u32Const(7)},
	}})
	prog := &ir.Program{
		Kind: ir.KindContract,
		Instructions: []ir.Instruction{
			{Op: ir.OpStorageLoad, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
	m := vm.New(prog, st, nil, vm.Config{})
	// Mutate the store directly after the Machine has already committed to
	// its initial root, simulating a host that swapped the leaf vector
	// without re-authenticating: load must now fail.
	_, _, err := st.Set(0, storage.Leaf{Kind: storage.ArrayLeaf, Elems: []types.Constant{u32Const(99)}})
	require.NoError(t, err)
	_, err = m.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Merkle path authentication")
}

func TestMaxStepsStopsRunawayLoop(t *testing.T) {
	prog := &ir.Program{
		Kind: ir.KindCircuit,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoopBegin, Arg: ir.Operand{Int: 1000, Int2: 0, Type: u32()}},
			{Op: ir.OpLoopVar, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpPop},
			{Op: ir.OpLoopEnd},
		},
	}
	m := vm.New(prog, nil, nil, vm.Config{MaxSteps: 5})
	_, err := m.Run()
	require.Error(t, err)
}
