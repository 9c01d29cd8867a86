// Package bytecode implements component F (spec §4.6): the canonical,
// versioned binary encoding of a compiled Application, plus the CBOR-backed
// value-tree codec and JSON Schema validation for the host boundary (§6
// "Inputs/Outputs").
//
// The instruction stream keeps the fixed binary layout the spec mandates
// (u8 opcode, 8-byte little-endian usize arguments, {tag,bitlen?} scalar
// types, length-prefixed UTF-8 strings); CBOR is reserved for the
// surrounding, openly-extensible value trees, the same split the teacher's
// planfmt package draws between its fixed preamble and its variable body.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/mod/semver"

	"github.com/vikkkko/zinc/internal/ir"
)

// Magic identifies a Zinc bytecode file (spec §6 "Magic prefix").
const Magic = "ZINC"

// Format version. Major bumps are breaking; minor bumps are additive.
const (
	FormatMajor byte = 1
	FormatMinor byte = 0
)

// DecodingError is the single error variant §4.6 requires, carrying the
// opcode under decode and the byte offset it was found at.
type DecodingError struct {
	Op     ir.Opcode
	Offset int64
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("bytecode: decode error at offset %d (opcode %d): %s", e.Offset, e.Op, e.Reason)
}

func decodeErr(op ir.Opcode, offset int64, format string, args ...interface{}) error {
	return &DecodingError{Op: op, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func versionString(major, minor byte) string {
	return fmt.Sprintf("v%d.%d.0", major, minor)
}

// checkVersion rejects a file whose major version differs from this
// package's (a breaking format change), the same comparison the teacher's
// planfmt performs against its own fixed Version constant, except here
// golang.org/x/mod/semver distinguishes major/minor compatibility instead
// of requiring exact equality.
func checkVersion(major, minor byte) error {
	file := versionString(major, minor)
	current := versionString(FormatMajor, FormatMinor)
	if !semver.IsValid(file) {
		return fmt.Errorf("bytecode: malformed format version %d.%d", major, minor)
	}
	if semver.Major(file) != semver.Major(current) {
		return fmt.Errorf("bytecode: incompatible format version %d.%d (this build supports %d.x)", major, minor, FormatMajor)
	}
	return nil
}

// countingReader tracks bytes read, so a decode failure can report the
// byte offset it occurred at (spec §4.6 "DecodingError ... carrying the
// opcode and byte offset").
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
