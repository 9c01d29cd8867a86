package bytecode_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/bytecode"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/types"
)

func u32() types.Type { return types.NewUInt(32) }

func sampleCircuit() *ir.Program {
	c, _ := types.NewInteger(big.NewInt(7), false, 32) // 7 always fits in u32
	return &ir.Program{
		Kind:       ir.KindCircuit,
		InputType:  u32(),
		OutputType: types.TyBool,
		Instructions: []ir.Instruction{
			{Op: ir.OpLoadLocal, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpPush, Arg: ir.Operand{Type: u32(), Const: &c}},
			{Op: ir.OpAdd, Arg: ir.Operand{Type: u32()}},
			{Op: ir.OpReturn, Arg: ir.Operand{Type: u32()}},
		},
	}
}

func sampleContract() *ir.Program {
	return &ir.Program{
		Kind: ir.KindContract,
		StorageFields: []types.Field{
			{Name: "balance", Type: ptrType(u32())},
		},
		Methods: map[string]ir.Method{
			"transfer": {Address: 3, Input: u32(), Output: types.TyUnit, IsMutable: true},
			"balance":  {Address: 9, Input: types.TyUnit, Output: u32(), IsMutable: false},
		},
		UnitTests: map[string]ir.UnitTest{
			"test_transfer": {Address: 20, IsIgnored: false, ShouldPanic: false},
		},
		Instructions: []ir.Instruction{
			{Op: ir.OpStorageLoad, Arg: ir.Operand{Int: 0, Type: u32()}},
			{Op: ir.OpExit, Arg: ir.Operand{Type: u32()}},
		},
	}
}

func ptrType(t types.Type) *types.Type { return &t }

// bigIntComparer lets cmp.Diff look inside Program/Instruction trees that
// carry *big.Int constants without tripping over big.Int's unexported
// fields.
var bigIntComparer = cmp.Comparer(func(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
})

// TestRoundTripIsBijective checks spec §8 Invariant 2: decode(encode(p)) ==
// p, for both Application shapes, and that encoding is itself deterministic
// (two encodes of the same Program produce identical bytes) despite Methods
// and UnitTests being Go maps with unspecified iteration order.
func TestRoundTripIsBijective(t *testing.T) {
	for name, p := range map[string]*ir.Program{
		"circuit":  sampleCircuit(),
		"contract": sampleContract(),
	} {
		p := p
		t.Run(name, func(t *testing.T) {
			var buf1, buf2 bytes.Buffer
			require.NoError(t, bytecode.Encode(&buf1, p))
			require.NoError(t, bytecode.Encode(&buf2, p))
			assert.Equal(t, buf1.Bytes(), buf2.Bytes(), "encoding must be deterministic")

			got, err := bytecode.Decode(bytes.NewReader(buf1.Bytes()))
			require.NoError(t, err)

			if diff := cmp.Diff(p, got, bigIntComparer); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Decode(bytes.NewReader([]byte("NOPE\x01\x00\x00\x00\x00\x00\x00")))
	assert.Error(t, err)
}

func TestDecodeRejectsIncompatibleMajorVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(&buf, sampleCircuit()))
	raw := buf.Bytes()
	raw[len(bytecode.Magic)] = bytecode.FormatMajor + 1

	_, err := bytecode.Decode(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestValueCodecRoundTrips(t *testing.T) {
	v := bytecode.StructValue(map[string]bytecode.Value{
		"amount": bytecode.IntValue(big.NewInt(42)),
		"ok":     bytecode.BoolValue(true),
		"tags":   bytecode.ArrayValue([]bytecode.Value{bytecode.StringValue("a"), bytecode.StringValue("b")}),
	})
	data, err := bytecode.EncodeValue(v)
	require.NoError(t, err)

	got, err := bytecode.DecodeValue(data)
	require.NoError(t, err)
	assert.Equal(t, v.Kind, got.Kind)
	assert.Equal(t, 0, v.Fields["amount"].Int.Cmp(got.Fields["amount"].Int))
	assert.Equal(t, v.Fields["ok"].Bool, got.Fields["ok"].Bool)
	assert.Len(t, got.Fields["tags"].Elems, 2)
}

func TestJSONSchemaRejectsOutOfRangeInteger(t *testing.T) {
	err := bytecode.ValidateAgainstType(u32(), float64(1)<<40)
	assert.Error(t, err)

	err = bytecode.ValidateAgainstType(u32(), float64(100))
	assert.NoError(t, err)
}
