package bytecode

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/types"
)

// Encode writes p in the canonical binary layout (spec §4.6): a fixed
// preamble (magic, format version, application kind, body length) followed
// by a kind-specific body. The body is built into a buffer first and the
// preamble written with the resulting length, the same two-pass shape the
// teacher's planfmt.Writer uses for its header/body split.
func Encode(w io.Writer, p *ir.Program) error {
	var body bytes.Buffer
	switch p.Kind {
	case ir.KindCircuit:
		if err := writeType(&body, p.InputType); err != nil {
			return err
		}
		if err := writeType(&body, p.OutputType); err != nil {
			return err
		}
	case ir.KindContract:
		if err := writeFields(&body, p.StorageFields); err != nil {
			return err
		}
		if err := writeMethods(&body, p.Methods); err != nil {
			return err
		}
		if err := writeUnitTests(&body, p.UnitTests); err != nil {
			return err
		}
	default:
		return fmt.Errorf("bytecode: unknown application kind %d", p.Kind)
	}
	if err := writeInstructions(&body, p.Instructions); err != nil {
		return err
	}

	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if err := writeByte(w, FormatMajor); err != nil {
		return err
	}
	if err := writeByte(w, FormatMinor); err != nil {
		return err
	}
	if err := writeByte(w, byte(p.Kind)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(body.Len())); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Decode reads a Program written by Encode, validating the magic prefix and
// format version before touching the body. An unknown program kind, type
// tag, constant tag or opcode is reported as a DecodingError carrying the
// byte offset within the body where it occurred; a bad magic prefix, an
// unsupported version and a truncated stream are reported as plain errors,
// not as a DecodingError.
func Decode(r io.Reader) (*ir.Program, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("bytecode: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("bytecode: bad magic %q, want %q", magic, Magic)
	}
	major, err := readByte(r)
	if err != nil {
		return nil, err
	}
	minor, err := readByte(r)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(major, minor); err != nil {
		return nil, err
	}
	kindByte, err := readByte(r)
	if err != nil {
		return nil, err
	}
	bodyLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	bodyBytes := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, bodyBytes); err != nil {
		return nil, fmt.Errorf("bytecode: reading body: %w", err)
	}
	body := &countingReader{r: bytes.NewReader(bodyBytes)}

	p := &ir.Program{Kind: ir.ApplicationKind(kindByte)}
	switch p.Kind {
	case ir.KindCircuit:
		in, err := readType(body)
		if err != nil {
			return nil, err
		}
		out, err := readType(body)
		if err != nil {
			return nil, err
		}
		p.InputType, p.OutputType = in, out
	case ir.KindContract:
		fields, err := readFields(body)
		if err != nil {
			return nil, err
		}
		methods, err := readMethods(body)
		if err != nil {
			return nil, err
		}
		tests, err := readUnitTests(body)
		if err != nil {
			return nil, err
		}
		p.StorageFields, p.Methods, p.UnitTests = fields, methods, tests
	default:
		return nil, decodeErr(0, body.n, "unknown application kind %d", kindByte)
	}
	instrs, err := readInstructions(body)
	if err != nil {
		return nil, err
	}
	p.Instructions = instrs
	return p, nil
}

func writeFields(w io.Writer, fields []types.Field) error {
	if err := writeUint16(w, uint16(len(fields))); err != nil {
		return err
	}
	for _, f := range fields {
		if err := writeString(w, f.Name); err != nil {
			return err
		}
		if err := writeType(w, *f.Type); err != nil {
			return err
		}
	}
	return nil
}

func readFields(r *countingReader) ([]types.Field, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	fields := make([]types.Field, n)
	for i := range fields {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		t, err := readType(r)
		if err != nil {
			return nil, err
		}
		fields[i] = types.Field{Name: name, Type: &t}
	}
	return fields, nil
}

// writeMethods encodes the contract method table sorted by name, so two
// encodings of the same Program always produce identical bytes (spec §8
// Invariant 2: decode(encode(p)) = p, checked by byte-for-byte comparison in
// the round-trip test).
func writeMethods(w io.Writer, methods map[string]ir.Method) error {
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	if err := writeUint16(w, uint16(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		m := methods[name]
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(m.Address)); err != nil {
			return err
		}
		if err := writeType(w, m.Input); err != nil {
			return err
		}
		if err := writeType(w, m.Output); err != nil {
			return err
		}
		if err := writeByte(w, boolByte(m.IsMutable)); err != nil {
			return err
		}
	}
	return nil
}

func readMethods(r *countingReader) (map[string]ir.Method, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ir.Method, n)
	for i := uint16(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		addr, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		in, err := readType(r)
		if err != nil {
			return nil, err
		}
		out2, err := readType(r)
		if err != nil {
			return nil, err
		}
		mut, err := readByte(r)
		if err != nil {
			return nil, err
		}
		out[name] = ir.Method{Address: int(addr), Input: in, Output: out2, IsMutable: mut != 0}
	}
	return out, nil
}

func writeUnitTests(w io.Writer, tests map[string]ir.UnitTest) error {
	names := make([]string, 0, len(tests))
	for n := range tests {
		names = append(names, n)
	}
	sort.Strings(names)
	if err := writeUint16(w, uint16(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		t := tests[name]
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeUint64(w, uint64(t.Address)); err != nil {
			return err
		}
		if err := writeByte(w, boolByte(t.IsIgnored)); err != nil {
			return err
		}
		if err := writeByte(w, boolByte(t.ShouldPanic)); err != nil {
			return err
		}
	}
	return nil
}

func readUnitTests(r *countingReader) (map[string]ir.UnitTest, error) {
	n, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ir.UnitTest, n)
	for i := uint16(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		addr, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		ignored, err := readByte(r)
		if err != nil {
			return nil, err
		}
		panics, err := readByte(r)
		if err != nil {
			return nil, err
		}
		out[name] = ir.UnitTest{Address: int(addr), IsIgnored: ignored != 0, ShouldPanic: panics != 0}
	}
	return out, nil
}
