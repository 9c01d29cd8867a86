package bytecode

import (
	"io"

	"github.com/vikkkko/zinc/internal/ir"
)

// operandFields is a bitmask of which Operand fields a given Opcode
// populates. It is derived empirically from every Emit/EmitCall call site in
// internal/semantic, not from the runtime value of the field (a slot index
// or storage index of 0 is meaningful, not "absent"): the flag says "this
// opcode carries this field", the zero value included.
type operandFields uint8

const (
	fInt operandFields = 1 << iota
	fInt2
	fType
	fStr
	fConst
)

var opFields = map[ir.Opcode]operandFields{
	ir.OpPush:        fType | fConst,
	ir.OpPop:         0,
	ir.OpLoadLocal:   fInt | fType,
	ir.OpStoreLocal:  fInt | fType,
	ir.OpLoadGlobal:  fInt | fType,
	ir.OpStoreGlobal: fInt | fType,
	ir.OpAdd:         fType,
	ir.OpSub:         fType,
	ir.OpMul:         fType,
	ir.OpDiv:         fType,
	ir.OpRem:         fType,
	ir.OpNeg:         fType,
	ir.OpBitAnd:      fType,
	ir.OpBitOr:       fType,
	ir.OpBitXor:      fType,
	ir.OpShl:         fType,
	ir.OpShr:         fType,
	ir.OpBitNot:      fType,
	ir.OpEq:          fType,
	ir.OpNe:          fType,
	ir.OpLt:          fType,
	ir.OpLe:          fType,
	ir.OpGt:          fType,
	ir.OpGe:          fType,
	ir.OpLogAnd:      fType,
	ir.OpLogOr:       fType,
	ir.OpLogXor:      fType,
	ir.OpLogNot:      fType,
	ir.OpCast:        fType | fInt2,
	ir.OpIf:          0,
	ir.OpElse:        0,
	ir.OpEndIf:       fType,
	ir.OpLoopBegin:   fInt | fInt2 | fType,
	ir.OpLoopVar:     fType,
	ir.OpLoopEnd:     0,
	ir.OpCall:        fStr | fInt | fInt2,
	ir.OpReturn:      fType,
	ir.OpExit:        fType,
	ir.OpRequire:     fStr,
	ir.OpStorageLoad:  fInt | fType,
	ir.OpStorageStore: fInt | fType,
	ir.OpCallLibrary:  fStr | fInt,
	ir.OpCopy:         fInt | fType,
	ir.OpSlice:        fInt | fInt2 | fType,
	ir.OpDbg:          fStr | fInt,
	ir.OpMakeArray:    fInt | fType,
	ir.OpMakeTuple:    fInt | fType,
	ir.OpIndex:        fType,
	ir.OpFieldGet:     fInt | fType,
}

func writeInt64(w io.Writer, v int64) error { return writeUint64(w, uint64(v)) }

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

// writeInstruction encodes one Instruction as the opcode tag plus exactly
// the operand fields opFields says the opcode carries (spec §4.6: "u8
// opcode, then its typed operands").
func writeInstruction(w io.Writer, in ir.Instruction) error {
	if err := writeByte(w, byte(in.Op)); err != nil {
		return err
	}
	fields, ok := opFields[in.Op]
	if !ok {
		return decodeErr(in.Op, 0, "unknown opcode %d", in.Op)
	}
	if fields&fInt != 0 {
		if err := writeInt64(w, in.Arg.Int); err != nil {
			return err
		}
	}
	if fields&fInt2 != 0 {
		if err := writeInt64(w, in.Arg.Int2); err != nil {
			return err
		}
	}
	if fields&fType != 0 {
		if err := writeType(w, in.Arg.Type); err != nil {
			return err
		}
	}
	if fields&fStr != 0 {
		if err := writeString(w, in.Arg.Str); err != nil {
			return err
		}
	}
	if fields&fConst != 0 {
		if in.Arg.Const == nil {
			return decodeErr(in.Op, 0, "opcode %d requires a constant operand", in.Op)
		}
		if err := writeConstant(w, *in.Arg.Const); err != nil {
			return err
		}
	}
	return nil
}

func readInstruction(r *countingReader) (ir.Instruction, error) {
	opByte, err := readByte(r)
	if err != nil {
		return ir.Instruction{}, err
	}
	op := ir.Opcode(opByte)
	fields, ok := opFields[op]
	if !ok {
		return ir.Instruction{}, decodeErr(op, r.n, "unknown opcode %d", opByte)
	}
	var arg ir.Operand
	if fields&fInt != 0 {
		v, err := readInt64(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		arg.Int = v
	}
	if fields&fInt2 != 0 {
		v, err := readInt64(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		arg.Int2 = v
	}
	if fields&fType != 0 {
		t, err := readType(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		arg.Type = t
	}
	if fields&fStr != 0 {
		s, err := readString(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		arg.Str = s
	}
	if fields&fConst != 0 {
		c, err := readConstant(r)
		if err != nil {
			return ir.Instruction{}, err
		}
		arg.Const = &c
	}
	return ir.Instruction{Op: op, Arg: arg}, nil
}

// writeInstructions encodes the flat bytecode stream: a u32 count followed
// by each instruction in order (spec §3 "Instruction stream").
func writeInstructions(w io.Writer, instrs []ir.Instruction) error {
	if err := writeUint32(w, uint32(len(instrs))); err != nil {
		return err
	}
	for _, in := range instrs {
		if err := writeInstruction(w, in); err != nil {
			return err
		}
	}
	return nil
}

func readInstructions(r *countingReader) ([]ir.Instruction, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Instruction, n)
	for i := range out {
		in, err := readInstruction(r)
		if err != nil {
			return nil, err
		}
		out[i] = in
	}
	return out, nil
}
