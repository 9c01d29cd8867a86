package bytecode

import (
	"io"

	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/types"
)

// writeType encodes a Semantic Type as the {tag, bitlen?} pairs §4.6
// describes, extended recursively for composites. Generic formal
// parameters and substitution maps are compile-time-only bookkeeping the
// generator never reads back out of a Type once bytecode is emitted, so
// they are not carried across the wire (see DESIGN.md).
func writeType(w io.Writer, t types.Type) error {
	if err := writeByte(w, byte(t.Kind)); err != nil {
		return err
	}
	switch t.Kind {
	case types.Unit, types.Bool, types.Field, types.String:
		return nil
	case types.UInt, types.SInt:
		return writeUint16(w, uint16(t.Bitlen))
	case types.Range, types.RangeInclusive:
		return writeType(w, *t.Elem)
	case types.Array:
		if err := writeType(w, *t.Elem); err != nil {
			return err
		}
		return writeUint32(w, uint32(t.Len))
	case types.Tuple:
		if err := writeUint16(w, uint16(len(t.Elems))); err != nil {
			return err
		}
		for _, e := range t.Elems {
			if err := writeType(w, e); err != nil {
				return err
			}
		}
		return nil
	case types.Struct, types.Contract:
		if err := writeUint64(w, uint64(t.ID)); err != nil {
			return err
		}
		if err := writeString(w, t.Name); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(len(t.Fields))); err != nil {
			return err
		}
		for _, f := range t.Fields {
			if err := writeString(w, f.Name); err != nil {
				return err
			}
			if err := writeType(w, *f.Type); err != nil {
				return err
			}
		}
		return nil
	case types.Enum:
		if err := writeUint64(w, uint64(t.ID)); err != nil {
			return err
		}
		if err := writeString(w, t.Name); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(t.Bitlen)); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(len(t.Values))); err != nil {
			return err
		}
		for _, v := range t.Values {
			if err := writeString(w, v.Name); err != nil {
				return err
			}
			if err := writeUint64(w, uint64(v.Value)); err != nil {
				return err
			}
		}
		return nil
	case types.Function:
		if err := writeByte(w, byte(t.FuncKind)); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(len(t.Args))); err != nil {
			return err
		}
		for _, a := range t.Args {
			if err := writeType(w, a); err != nil {
				return err
			}
		}
		hasRet := byte(0)
		if t.Ret != nil {
			hasRet = 1
		}
		if err := writeByte(w, hasRet); err != nil {
			return err
		}
		if t.Ret != nil {
			return writeType(w, *t.Ret)
		}
		return nil
	default:
		return decodeErr(0, 0, "unknown type kind %d", t.Kind)
	}
}

func readType(r *countingReader) (types.Type, error) {
	tagByte, err := readByte(r)
	if err != nil {
		return types.Type{}, err
	}
	kind := types.Kind(tagByte)
	switch kind {
	case types.Unit, types.Bool, types.Field, types.String:
		return types.Type{Kind: kind}, nil
	case types.UInt, types.SInt:
		bitlen, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		return types.Type{Kind: kind, Bitlen: int(bitlen)}, nil
	case types.Range, types.RangeInclusive:
		elem, err := readType(r)
		if err != nil {
			return types.Type{}, err
		}
		return types.Type{Kind: kind, Elem: &elem}, nil
	case types.Array:
		elem, err := readType(r)
		if err != nil {
			return types.Type{}, err
		}
		n, err := readUint32(r)
		if err != nil {
			return types.Type{}, err
		}
		return types.Type{Kind: kind, Elem: &elem, Len: int(n)}, nil
	case types.Tuple:
		n, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		elems := make([]types.Type, n)
		for i := range elems {
			e, err := readType(r)
			if err != nil {
				return types.Type{}, err
			}
			elems[i] = e
		}
		return types.Type{Kind: kind, Elems: elems}, nil
	case types.Struct, types.Contract:
		id, err := readUint64(r)
		if err != nil {
			return types.Type{}, err
		}
		name, err := readString(r)
		if err != nil {
			return types.Type{}, err
		}
		n, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		fields := make([]types.Field, n)
		for i := range fields {
			fn, err := readString(r)
			if err != nil {
				return types.Type{}, err
			}
			ft, err := readType(r)
			if err != nil {
				return types.Type{}, err
			}
			fields[i] = types.Field{Name: fn, Type: &ft}
		}
		return types.Type{Kind: kind, ID: int64(id), Name: name, Fields: fields}, nil
	case types.Enum:
		id, err := readUint64(r)
		if err != nil {
			return types.Type{}, err
		}
		name, err := readString(r)
		if err != nil {
			return types.Type{}, err
		}
		bitlen, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		n, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		values := make([]types.EnumValue, n)
		for i := range values {
			vn, err := readString(r)
			if err != nil {
				return types.Type{}, err
			}
			vv, err := readUint64(r)
			if err != nil {
				return types.Type{}, err
			}
			values[i] = types.EnumValue{Name: vn, Value: int64(vv)}
		}
		return types.Type{Kind: kind, ID: int64(id), Name: name, Bitlen: int(bitlen), Values: values}, nil
	case types.Function:
		fk, err := readByte(r)
		if err != nil {
			return types.Type{}, err
		}
		n, err := readUint16(r)
		if err != nil {
			return types.Type{}, err
		}
		args := make([]types.Type, n)
		for i := range args {
			a, err := readType(r)
			if err != nil {
				return types.Type{}, err
			}
			args[i] = a
		}
		hasRet, err := readByte(r)
		if err != nil {
			return types.Type{}, err
		}
		t := types.Type{Kind: kind, FuncKind: types.FunctionKind(fk), Args: args}
		if hasRet != 0 {
			ret, err := readType(r)
			if err != nil {
				return types.Type{}, err
			}
			t.Ret = &ret
		}
		return t, nil
	default:
		return types.Type{}, decodeErr(ir.Opcode(0), r.n, "unknown type tag %d", tagByte)
	}
}
