package gadget_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/gadget"
	"github.com/vikkkko/zinc/internal/ir"
	"github.com/vikkkko/zinc/internal/types"
)

func u8(v int64) types.Constant {
	c, err := types.NewInteger(big.NewInt(v), false, 8)
	if err != nil {
		panic(err)
	}
	return c
}

func TestBinaryArithmeticRejectsOverflow(t *testing.T) {
	cs := gadget.NewCountingCS()
	sum, err := gadget.Binary(cs, ir.OpAdd, u8(250), u8(5), types.NewUInt(8))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(255), sum.Int)
	assert.Equal(t, 1, cs.NumConstraints())

	_, err = gadget.Binary(cs, ir.OpAdd, u8(250), u8(6), types.NewUInt(8))
	assert.Error(t, err, "250+6 overflows u8")
}

func TestEuclideanDivRem(t *testing.T) {
	cs := gadget.NewCountingCS()
	q, err := gadget.Binary(cs, ir.OpDiv, u8(9), u8(4), types.NewUInt(8))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2), q.Int)

	r, err := gadget.Binary(cs, ir.OpRem, u8(9), u8(4), types.NewUInt(8))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), r.Int)
}

func TestFieldResultsReduceModModulus(t *testing.T) {
	a := types.Constant{Kind: types.Field, Int: new(big.Int).Sub(types.FieldModulus, big.NewInt(1))}
	b := types.Constant{Kind: types.Field, Int: big.NewInt(2)}
	v, err := gadget.Binary(gadget.NewCountingCS(), ir.OpAdd, a, b, types.TyField)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v.Int)
}

func TestCompareAndLogical(t *testing.T) {
	cs := gadget.NewCountingCS()
	lt, err := gadget.Binary(cs, ir.OpLt, u8(3), u8(4), types.TyBool)
	require.NoError(t, err)
	assert.True(t, lt.Bool)

	xor, err := gadget.Binary(cs, ir.OpLogXor, types.Constant{Kind: types.Bool, Bool: true}, types.Constant{Kind: types.Bool, Bool: true}, types.TyBool)
	require.NoError(t, err)
	assert.False(t, xor.Bool)
	assert.Equal(t, 2, cs.NumConstraints())
}

func TestSelectPicksByCondWithoutShortCircuit(t *testing.T) {
	cs := gadget.NewCountingCS()
	got := gadget.Select(cs, false, u8(1), u8(2))
	assert.Equal(t, big.NewInt(2), got.Int)
	assert.Equal(t, 1, cs.NumConstraints(), "exactly one select constraint emitted")
}

func TestRequire(t *testing.T) {
	assert.NoError(t, gadget.Require(gadget.NewCountingCS(), true, "ok"))
	err := gadget.Require(gadget.NewCountingCS(), false, "balance too low")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance too low")
}

func TestInverse(t *testing.T) {
	cs := gadget.NewCountingCS()
	v := types.Constant{Kind: types.Field, Int: big.NewInt(5)}
	inv, err := gadget.Inverse(cs, v)
	require.NoError(t, err)
	prod := new(big.Int).Mul(v.Int, inv.Int)
	prod.Mod(prod, types.FieldModulus)
	assert.Equal(t, big.NewInt(1), prod)
	assert.Equal(t, 1, cs.NumConstraints())

	_, err = gadget.Inverse(cs, types.Constant{Kind: types.Field, Int: big.NewInt(0)})
	assert.Error(t, err)
}

func TestCastNarrowingTruncates(t *testing.T) {
	wide, err := types.NewInteger(big.NewInt(300), false, 16)
	require.NoError(t, err)
	narrow, err := gadget.Cast(gadget.NewCountingCS(), wide, types.NewUInt(16), types.NewUInt(8))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300%256), narrow.Int)
}

func TestCastBoolToUInt(t *testing.T) {
	v, err := gadget.Cast(gadget.NewCountingCS(), types.Constant{Kind: types.Bool, Bool: true}, types.TyBool, types.NewUInt(8))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v.Int)
}
