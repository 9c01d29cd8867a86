package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEuclidDivRemFourSignCombinations(t *testing.T) {
	tests := []struct {
		a, b   int64
		wantQ  int64
		wantM  int64
	}{
		{9, 4, 2, 1},
		{9, -4, -2, 1},
		{-9, 4, -3, 3},
		{-9, -4, 3, 3},
	}
	for _, tt := range tests {
		q, m, err := EuclidDivRem(big.NewInt(tt.a), big.NewInt(tt.b))
		require.NoError(t, err)
		require.Equal(t, big.NewInt(tt.wantQ), q, "q for %d/%d", tt.a, tt.b)
		require.Equal(t, big.NewInt(tt.wantM), m, "m for %d/%d", tt.a, tt.b)
		require.True(t, m.Sign() >= 0 && m.CmpAbs(big.NewInt(tt.b)) < 0)
	}
}

func TestEuclidDivRemByZero(t *testing.T) {
	_, _, err := EuclidDivRem(big.NewInt(9), big.NewInt(0))
	require.Error(t, err)
}

func TestNewIntegerOverflow(t *testing.T) {
	_, err := NewInteger(big.NewInt(256), false, 8)
	require.Error(t, err)

	_, err = NewInteger(big.NewInt(255), false, 8)
	require.NoError(t, err)

	_, err = NewInteger(big.NewInt(-129), true, 8)
	require.Error(t, err)

	_, err = NewInteger(big.NewInt(-128), true, 8)
	require.NoError(t, err)
}

func TestTypeEquality(t *testing.T) {
	a := Type{Kind: Struct, ID: 7}
	b := Type{Kind: Struct, ID: 7}
	c := Type{Kind: Struct, ID: 8}
	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))

	require.True(t, Equal(NewUInt(8), NewUInt(8)))
	require.False(t, Equal(NewUInt(8), NewUInt(16)))
	require.False(t, Equal(NewUInt(8), NewSInt(8)))
}

func TestRegistryMonotonic(t *testing.T) {
	r := NewRegistry()
	a := r.Next()
	b := r.Next()
	require.Equal(t, a+1, b)
	require.GreaterOrEqual(t, a, int64(4))
}
