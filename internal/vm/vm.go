// Package vm executes a lowered ir.Program (spec §4.7 "Execution"). The
// dispatch loop and its debug-event hook are grounded on the teacher's
// runtime/executor/executor.go Config/DebugLevel/DebugEvent shape;
// instruction dispatch itself follows runtime/executor/tree_runner.go's
// switch-on-kind pattern, generalized from tree nodes to opcodes.
package vm

import (
	"fmt"
	"math/big"

	"github.com/vikkkko/zinc/internal/gadget"
	"github.com/vikkkko/zinc/internal/invariant"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/storage"
	"github.com/vikkkko/zinc/internal/types"
)

// DebugLevel controls how much of the execution trace is recorded (spec
// §1.3 "Configuration" in SPEC_FULL.md).
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugPaths
	DebugDetailed
)

// DebugEvent is one recorded step of execution, emitted when Config.Debug
// is at least DebugPaths.
type DebugEvent struct {
	PC     int
	Opcode ir.Opcode
	Note   string
}

// Config bounds and instruments one Run call.
type Config struct {
	Debug DebugLevel

	// MaxSteps stops a runaway program (e.g. a miscompiled loop) instead of
	// spinning forever; 0 means unbounded.
	MaxSteps int
}

// RuntimeError reports a failure encountered while executing an
// instruction, carrying the PC for diagnostics.
type RuntimeError struct {
	PC     int
	Opcode ir.Opcode
	Err    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("vm: pc=%d op=%d: %v", e.PC, e.Opcode, e.Err)
}
func (e *RuntimeError) Unwrap() error { return e.Err }

// Result is the outcome of running a Program to completion.
type Result struct {
	Output      []types.Constant
	DebugEvents []DebugEvent
	Storage     *storage.Store
	Transfers   []Transfer
}

// Transfer is one outgoing token transfer recorded by zksync::transfer.
type Transfer struct {
	Recipient   [20]byte
	TokenAddr   [20]byte
	Amount      *types.Constant
}

// frame is one call activation: its own local-variable slots (matching
// ir.State's per-function slot numbering, which restarts at 0 on
// EnterFunction) and the PC to resume at on OpReturn.
type frame struct {
	locals    []types.Constant
	returnPC  int
}

func newFrame() *frame { return &frame{locals: make([]types.Constant, 0, 16)} }

func (f *frame) slot(i int) types.Constant {
	invariant.Precondition(i >= 0 && i < len(f.locals), "vm: local slot %d out of range", i)
	return f.locals[i]
}

func (f *frame) store(i int, v types.Constant) {
	for len(f.locals) <= i {
		f.locals = append(f.locals, types.Constant{})
	}
	f.locals[i] = v
}

// branchCtx tracks one active if/else merge (spec §4.7: both arms execute
// structurally; the predicate only masks side effects and selects the
// final value).
type branchCtx struct {
	cond      bool
	inElse    bool
	height    int // data stack height when OpIf was dispatched
	thenVals  []types.Constant
}

// loopCtx tracks one active bounded loop (spec §4.5/§4.7): the body is
// emitted once, so the VM rewinds the PC back to bodyStart until count
// iterations have run.
type loopCtx struct {
	bodyStart int
	lo        int64
	count     int64
	iter      int64
}

// Machine is one execution of a Program.
type Machine struct {
	prog    *ir.Program
	cfg     Config
	stack   []types.Constant
	globals []types.Constant
	frames  []*frame
	loops   []loopCtx
	branch  []branchCtx
	store   *storage.Store
	events  []DebugEvent
	transfers []Transfer
	steps   int

	currentTx *TransactionCtx

	// cs is the namespaced constraint allocator gadget calls route through
	// (spec §4.7 State.counter). storageRoot is the Merkle root every
	// storage load/store is checked against, advanced on each store (spec
	// §4.9); it starts at the store's initial root and is unused when no
	// contract storage is attached.
	cs          *gadget.CountingCS
	storageRoot storage.Hash
}

// TransactionCtx supplies zksync::Transaction::{sender,current} and the
// transaction slots a contract entry is invoked with (spec §6).
type TransactionCtx struct {
	Sender    [20]byte
	Recipient [20]byte
	Token     [20]byte
	Amount    *types.Constant
}

// New creates a Machine ready to execute prog's instruction stream from
// address 0.
func New(prog *ir.Program, st *storage.Store, tx *TransactionCtx, cfg Config) *Machine {
	m := &Machine{prog: prog, cfg: cfg, store: st, currentTx: tx, cs: gadget.NewCountingCS()}
	if st != nil {
		m.storageRoot = st.RootHash()
	}
	m.frames = append(m.frames, newFrame())
	return m
}

// Constraints reports how many constraints this Machine's gadgets have
// enforced so far, the Go analogue of the original's cs.num_constraints().
func (m *Machine) Constraints() int { return m.cs.NumConstraints() }

func (m *Machine) curFrame() *frame { return m.frames[len(m.frames)-1] }

// SeedLocal writes v into the outermost call frame's local slot i before
// execution starts. This is how a host binds a circuit's input_type tree or
// a contract method's argument tree into the entry frame (spec §6 "Program
// boundary"); it must be called before Run/RunFrom.
func (m *Machine) SeedLocal(i int, v types.Constant) {
	m.frames[0].store(i, v)
}

func (m *Machine) push(v types.Constant) { m.stack = append(m.stack, v) }

func (m *Machine) pop() types.Constant {
	invariant.Precondition(len(m.stack) > 0, "vm: pop from empty stack")
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *Machine) popN(n int) []types.Constant {
	invariant.Precondition(len(m.stack) >= n, "vm: popN(%d) exceeds stack height %d", n, len(m.stack))
	out := append([]types.Constant(nil), m.stack[len(m.stack)-n:]...)
	m.stack = m.stack[:len(m.stack)-n]
	return out
}

// mask is the conjunction of every active branch predicate along the
// current path, i.e. whether side effects dispatched right now actually
// take effect (spec §4.7 "predicate-masked side effects").
func (m *Machine) mask() bool {
	active := true
	for _, b := range m.branch {
		want := b.cond
		if b.inElse {
			want = !b.cond
		}
		active = active && want
	}
	return active
}

// Run executes the program to its first OpExit (circuit) or to the end of
// a method body (contract), whichever the instruction stream encodes, and
// returns the output value plus recorded side effects.
func (m *Machine) Run() (Result, error) {
	return m.RunFrom(0)
}

// RunFrom executes starting at instruction address pc, used both for a
// circuit's single entry point and for invoking one contract method.
func (m *Machine) RunFrom(pc int) (Result, error) {
	instrs := m.prog.Instructions
	for {
		if pc >= len(instrs) {
			return Result{Output: m.stack, DebugEvents: m.events, Storage: m.store, Transfers: m.transfers}, nil
		}
		if m.cfg.MaxSteps > 0 && m.steps >= m.cfg.MaxSteps {
			return Result{}, &RuntimeError{PC: pc, Err: fmt.Errorf("vm: exceeded MaxSteps=%d", m.cfg.MaxSteps)}
		}
		m.steps++
		in := instrs[pc]
		if m.cfg.Debug >= DebugPaths {
			m.events = append(m.events, DebugEvent{PC: pc, Opcode: in.Op})
		}
		next, halt, out, err := m.step(pc, in)
		if err != nil {
			return Result{}, &RuntimeError{PC: pc, Opcode: in.Op, Err: err}
		}
		if halt {
			return Result{Output: out, DebugEvents: m.events, Storage: m.store, Transfers: m.transfers}, nil
		}
		pc = next
	}
}

// step executes one instruction and returns the next PC, or (halt=true,
// out) if this instruction ends execution (OpExit at the outermost frame).
func (m *Machine) step(pc int, in ir.Instruction) (next int, halt bool, out []types.Constant, err error) {
	next = pc + 1
	m.cs.Namespace(fmt.Sprintf("step=%d, addr=%d", m.steps, pc))
	switch in.Op {
	case ir.OpPush:
		m.push(*in.Arg.Const)

	case ir.OpPop:
		m.pop()

	case ir.OpLoadLocal:
		m.push(m.curFrame().slot(int(in.Arg.Int)))
	case ir.OpStoreLocal:
		if m.mask() {
			m.curFrame().store(int(in.Arg.Int), m.pop())
		} else {
			m.pop()
		}

	case ir.OpLoadGlobal:
		idx := int(in.Arg.Int)
		invariant.Precondition(idx < len(m.globals), "vm: global slot %d not initialized", idx)
		m.push(m.globals[idx])
	case ir.OpStoreGlobal:
		idx := int(in.Arg.Int)
		v := m.pop()
		for len(m.globals) <= idx {
			m.globals = append(m.globals, types.Constant{})
		}
		m.globals[idx] = v

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem,
		ir.OpBitAnd, ir.OpBitOr, ir.OpBitXor, ir.OpShl, ir.OpShr,
		ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe,
		ir.OpLogAnd, ir.OpLogOr, ir.OpLogXor:
		r := m.pop()
		l := m.pop()
		v, e := gadget.Binary(m.cs, in.Op, l, r, in.Arg.Type)
		if e != nil {
			return 0, false, nil, e
		}
		m.push(v)

	case ir.OpNeg, ir.OpBitNot, ir.OpLogNot:
		v := m.pop()
		r, e := gadget.Unary(m.cs, in.Op, v, in.Arg.Type)
		if e != nil {
			return 0, false, nil, e
		}
		m.push(r)

	case ir.OpCast:
		v := m.pop()
		r, e := gadget.Cast(m.cs, v, v.Type(), in.Arg.Type)
		if e != nil {
			return 0, false, nil, e
		}
		m.push(r)

	case ir.OpIf:
		cond := m.pop()
		m.branch = append(m.branch, branchCtx{cond: cond.Bool, height: len(m.stack)})

	case ir.OpElse:
		b := &m.branch[len(m.branch)-1]
		b.thenVals = m.popN(len(m.stack) - b.height)
		b.inElse = true

	case ir.OpEndIf:
		b := m.branch[len(m.branch)-1]
		m.branch = m.branch[:len(m.branch)-1]
		elseVals := m.popN(len(m.stack) - b.height)
		n := types.Size(in.Arg.Type)
		invariant.Invariant(len(b.thenVals) == n && len(elseVals) == n,
			"vm: if/else branch widths disagree: then=%d else=%d want=%d", len(b.thenVals), len(elseVals), n)
		for i := 0; i < n; i++ {
			m.push(gadget.Select(m.cs, b.cond, b.thenVals[i], elseVals[i]))
		}

	case ir.OpLoopBegin:
		m.loops = append(m.loops, loopCtx{bodyStart: pc + 1, lo: in.Arg.Int2, count: in.Arg.Int})
		if in.Arg.Int == 0 {
			// Zero-iteration loop: skip straight past the matching OpLoopEnd.
			m.loops = m.loops[:len(m.loops)-1]
			end, e := matchingLoopEnd(m.prog.Instructions, pc)
			if e != nil {
				return 0, false, nil, e
			}
			next = end + 1
		}

	case ir.OpLoopVar:
		lp := m.loops[len(m.loops)-1]
		v, e := types.NewInteger(big.NewInt(lp.lo+lp.iter), in.Arg.Type.Kind == types.SInt, in.Arg.Type.Bitlen)
		if e != nil {
			return 0, false, nil, e
		}
		m.push(v)

	case ir.OpLoopEnd:
		lp := &m.loops[len(m.loops)-1]
		lp.iter++
		if lp.iter < lp.count {
			next = lp.bodyStart
		} else {
			m.loops = m.loops[:len(m.loops)-1]
		}

	case ir.OpCall:
		args := m.popN(int(in.Arg.Int))
		f := newFrame()
		f.returnPC = pc + 1
		for i, a := range args {
			f.store(i, a)
		}
		m.frames = append(m.frames, f)
		next = int(in.Arg.Int2)

	case ir.OpReturn:
		n := types.Size(in.Arg.Type)
		vals := m.popN(n)
		rp := m.curFrame().returnPC
		m.frames = m.frames[:len(m.frames)-1]
		for _, v := range vals {
			m.push(v)
		}
		next = rp

	case ir.OpExit:
		n := types.Size(in.Arg.Type)
		return 0, true, m.popN(n), nil

	case ir.OpRequire:
		cond := m.pop()
		if m.mask() {
			if e := gadget.Require(m.cs, cond.Bool, in.Arg.Str); e != nil {
				return 0, false, nil, e
			}
		}

	case ir.OpStorageLoad:
		idx := int(in.Arg.Int)
		leaf, path, e := m.store.Load(idx)
		if e != nil {
			return 0, false, nil, e
		}
		if !storage.VerifyPath(m.storageRoot, idx, storage.LeafHash(leaf), path) {
			return 0, false, nil, &storage.AuthenticationError{Index: idx}
		}
		for _, c := range leaf.Elems {
			m.push(c)
		}

	case ir.OpStorageStore:
		n := types.Size(in.Arg.Type)
		vals := m.popN(n)
		if m.mask() {
			idx := int(in.Arg.Int)
			oldLeaf, oldPath, e := m.store.Load(idx)
			if e != nil {
				return 0, false, nil, e
			}
			if !storage.VerifyPath(m.storageRoot, idx, storage.LeafHash(oldLeaf), oldPath) {
				return 0, false, nil, &storage.AuthenticationError{Index: idx}
			}
			newRoot, _, e := m.store.Set(idx, storage.Leaf{Kind: storage.ArrayLeaf, Elems: vals})
			if e != nil {
				return 0, false, nil, e
			}
			m.storageRoot = newRoot
		}

	case ir.OpCallLibrary:
		if e := m.callLibrary(in.Arg.Str, int(in.Arg.Int)); e != nil {
			return 0, false, nil, e
		}

	case ir.OpCopy:
		n := types.Size(in.Arg.Type)
		start := len(m.stack) - n - int(in.Arg.Int)
		invariant.Precondition(start >= 0, "vm: OpCopy reaches before stack base")
		cp := append([]types.Constant(nil), m.stack[start:start+n]...)
		m.stack = append(m.stack, cp...)

	case ir.OpSlice:
		arr := m.pop()
		lo, hi := int(in.Arg.Int), int(in.Arg.Int2)
		invariant.Precondition(lo >= 0 && hi <= len(arr.Elems) && lo <= hi, "vm: slice bounds out of range")
		m.push(types.Constant{Kind: types.Array, Elems: append([]types.Constant(nil), arr.Elems[lo:hi]...)})

	case ir.OpDbg:
		if m.cfg.Debug >= DebugDetailed {
			args := m.popN(int(in.Arg.Int))
			m.events = append(m.events, DebugEvent{PC: pc, Opcode: in.Op, Note: fmt.Sprintf(in.Arg.Str, constantsToAny(args)...)})
		} else {
			m.popN(int(in.Arg.Int))
		}

	case ir.OpMakeArray:
		n := int(in.Arg.Int)
		m.push(types.Constant{Kind: types.Array, Elems: m.popN(n)})
	case ir.OpMakeTuple:
		n := int(in.Arg.Int)
		m.push(types.Constant{Kind: types.Tuple, Elems: m.popN(n)})

	case ir.OpIndex:
		idx := m.pop()
		arr := m.pop()
		i := int(idx.Int.Int64())
		invariant.Precondition(i >= 0 && i < len(arr.Elems), "vm: index %d out of range", i)
		m.push(arr.Elems[i])

	case ir.OpFieldGet:
		s := m.pop()
		names := sortedFieldNames(s.Fields)
		i := int(in.Arg.Int)
		invariant.Precondition(i < len(names), "vm: field index %d out of range", i)
		m.push(s.Fields[names[i]])

	default:
		invariant.Invariant(false, "vm: unhandled opcode %d", in.Op)
	}
	return next, false, nil, nil
}

func matchingLoopEnd(instrs []ir.Instruction, begin int) (int, error) {
	depth := 0
	for i := begin; i < len(instrs); i++ {
		switch instrs[i].Op {
		case ir.OpLoopBegin:
			depth++
		case ir.OpLoopEnd:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("vm: unterminated loop starting at %d", begin)
}

func sortedFieldNames(fields map[string]types.Constant) []string {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func constantsToAny(cs []types.Constant) []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		if c.Int != nil {
			out[i] = c.Int.String()
		} else {
			out[i] = c.Bool
		}
	}
	return out
}
