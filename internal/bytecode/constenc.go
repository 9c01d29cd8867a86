package bytecode

import (
	"io"
	"math/big"
	"sort"

	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/types"
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeBigInt(w io.Writer, v *big.Int) error {
	sign := boolByte(v.Sign() < 0)
	if err := writeByte(w, sign); err != nil {
		return err
	}
	mag := new(big.Int).Abs(v).Bytes()
	if err := writeUint32(w, uint32(len(mag))); err != nil {
		return err
	}
	_, err := w.Write(mag)
	return err
}

func readBigInt(r *countingReader) (*big.Int, error) {
	sign, err := readByte(r)
	if err != nil {
		return nil, err
	}
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(buf)
	if sign != 0 {
		v.Neg(v)
	}
	return v, nil
}

// writeConstant encodes a folded compile-time Constant (spec §3 "Constant"),
// recursing into composite arms the same way writeType does for Type.
// Struct field order is not significant to the language, so field names are
// sorted before encoding to keep the wire form deterministic.
func writeConstant(w io.Writer, c types.Constant) error {
	if err := writeByte(w, byte(c.Kind)); err != nil {
		return err
	}
	switch c.Kind {
	case types.Unit:
		return nil
	case types.Bool:
		return writeByte(w, boolByte(c.Bool))
	case types.UInt, types.SInt:
		if err := writeByte(w, boolByte(c.Signed)); err != nil {
			return err
		}
		if err := writeUint16(w, uint16(c.Bitlen)); err != nil {
			return err
		}
		if err := writeBigInt(w, c.Int); err != nil {
			return err
		}
		hasEnum := c.EnumType != nil
		if err := writeByte(w, boolByte(hasEnum)); err != nil {
			return err
		}
		if hasEnum {
			return writeType(w, *c.EnumType)
		}
		return nil
	case types.Field:
		return writeBigInt(w, c.Int)
	case types.String:
		return writeString(w, c.Str)
	case types.Range, types.RangeInclusive:
		if err := writeBigInt(w, c.Low); err != nil {
			return err
		}
		return writeBigInt(w, c.High)
	case types.Array, types.Tuple:
		if err := writeUint32(w, uint32(len(c.Elems))); err != nil {
			return err
		}
		for _, e := range c.Elems {
			if err := writeConstant(w, e); err != nil {
				return err
			}
		}
		return nil
	case types.Struct:
		keys := make([]string, 0, len(c.Fields))
		for k := range c.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if err := writeUint16(w, uint16(len(keys))); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := writeConstant(w, c.Fields[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		return decodeErr(0, 0, "unknown constant kind %d", c.Kind)
	}
}

func readConstant(r *countingReader) (types.Constant, error) {
	tagByte, err := readByte(r)
	if err != nil {
		return types.Constant{}, err
	}
	kind := types.Kind(tagByte)
	switch kind {
	case types.Unit:
		return types.Constant{Kind: kind}, nil
	case types.Bool:
		b, err := readByte(r)
		if err != nil {
			return types.Constant{}, err
		}
		return types.Constant{Kind: kind, Bool: b != 0}, nil
	case types.UInt, types.SInt:
		signed, err := readByte(r)
		if err != nil {
			return types.Constant{}, err
		}
		bitlen, err := readUint16(r)
		if err != nil {
			return types.Constant{}, err
		}
		v, err := readBigInt(r)
		if err != nil {
			return types.Constant{}, err
		}
		hasEnum, err := readByte(r)
		if err != nil {
			return types.Constant{}, err
		}
		c := types.Constant{Kind: kind, Signed: signed != 0, Bitlen: int(bitlen), Int: v}
		if hasEnum != 0 {
			et, err := readType(r)
			if err != nil {
				return types.Constant{}, err
			}
			c.EnumType = &et
		}
		return c, nil
	case types.Field:
		v, err := readBigInt(r)
		if err != nil {
			return types.Constant{}, err
		}
		return types.Constant{Kind: kind, Int: v}, nil
	case types.String:
		s, err := readString(r)
		if err != nil {
			return types.Constant{}, err
		}
		return types.Constant{Kind: kind, Str: s}, nil
	case types.Range, types.RangeInclusive:
		lo, err := readBigInt(r)
		if err != nil {
			return types.Constant{}, err
		}
		hi, err := readBigInt(r)
		if err != nil {
			return types.Constant{}, err
		}
		return types.Constant{Kind: kind, Low: lo, High: hi}, nil
	case types.Array, types.Tuple:
		n, err := readUint32(r)
		if err != nil {
			return types.Constant{}, err
		}
		elems := make([]types.Constant, n)
		for i := range elems {
			e, err := readConstant(r)
			if err != nil {
				return types.Constant{}, err
			}
			elems[i] = e
		}
		return types.Constant{Kind: kind, Elems: elems}, nil
	case types.Struct:
		n, err := readUint16(r)
		if err != nil {
			return types.Constant{}, err
		}
		fields := make(map[string]types.Constant, n)
		for i := uint16(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return types.Constant{}, err
			}
			v, err := readConstant(r)
			if err != nil {
				return types.Constant{}, err
			}
			fields[k] = v
		}
		return types.Constant{Kind: kind, Fields: fields}, nil
	default:
		return types.Constant{}, decodeErr(ir.Opcode(0), r.n, "unknown constant tag %d", tagByte)
	}
}
