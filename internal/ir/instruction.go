// Package ir defines Zinc's flat bytecode instruction set (spec §3
// "Instruction", §4.5) and the generator that lowers an analyzed syntax
// tree into it.
package ir

import "github.com/vikkkko/zinc/internal/types"

// Opcode tags an Instruction.
type Opcode uint8

const (
	OpPush Opcode = iota // push a constant operand
	OpPop

	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal
	OpStoreGlobal

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg

	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpBitNot

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpLogAnd
	OpLogOr
	OpLogXor
	OpLogNot

	OpCast

	OpIf
	OpElse
	OpEndIf

	OpLoopBegin
	OpLoopVar // push the current iteration index (offset by OpLoopBegin's Int2) as Arg.Type
	OpLoopEnd

	OpCall
	OpReturn
	OpExit

	OpRequire

	OpStorageLoad
	OpStorageStore

	OpCallLibrary

	OpCopy
	OpSlice
	OpDbg

	// Composite/array support.
	OpMakeArray
	OpMakeTuple
	OpIndex
	OpFieldGet
)

// Operand carries the typed, variable-length arguments an Instruction needs
// (spec §3 "Instruction": "Each carries typed operands as specified by
// §6"). Only the fields relevant to an Instruction's Opcode are populated.
type Operand struct {
	Int     int64      // generic integer operand: slot index, storage index, loop count, usize arg count...
	Int2    int64      // a second integer operand (e.g. OpCall target address, OpLoopBegin first loop value, OpCast target width)
	Type    types.Type // the scalar/value type an operation is parameterized over
	Str     string     // names: require message, library call name, dbg format
	Const   *types.Constant // folded compile-time constant for OpPush
}

// Instruction is one entry in the flat bytecode stream.
type Instruction struct {
	Op  Opcode
	Arg Operand
}
