package storage_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikkkko/zinc/internal/storage"
	"github.com/vikkkko/zinc/internal/types"
)

func intLeaf(v int64) storage.Leaf {
	return storage.Leaf{Kind: storage.ArrayLeaf, Elems: []types.Constant{{Kind: types.Field, Int: big.NewInt(v)}}}
}

func TestRootHashChangesWithLeafAndPathVerifies(t *testing.T) {
	s := storage.New([]storage.Leaf{intLeaf(1), intLeaf(2), intLeaf(3)})
	root0 := s.RootHash()

	leaf, path, err := s.Load(1)
	require.NoError(t, err)
	assert.True(t, storage.VerifyPath(root0, 1, storage.LeafHash(leaf), path))
	assert.Equal(t, int64(2), leaf.Elems[0].Int.Int64())

	root1, path1, err := s.Set(1, intLeaf(99))
	require.NoError(t, err)
	assert.NotEqual(t, root0, root1)
	assert.True(t, storage.VerifyPath(root1, 1, storage.LeafHash(intLeaf(99)), path1))
	assert.False(t, storage.VerifyPath(root0, 1, storage.LeafHash(intLeaf(99)), path1),
		"a leaf must not authenticate against a root it was never stored under")
}

func TestLoadOutOfRange(t *testing.T) {
	s := storage.New([]storage.Leaf{intLeaf(1)})
	_, _, err := s.Load(5)
	assert.Error(t, err)
}

func TestSnapshotPreservesUpdates(t *testing.T) {
	s := storage.New([]storage.Leaf{intLeaf(1), intLeaf(2)})
	_, _, err := s.Set(0, intLeaf(42))
	require.NoError(t, err)
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(42), snap[0].Elems[0].Int.Int64())
}

func TestMapLeafDigestIsOrderIndependent(t *testing.T) {
	a := storage.Leaf{Kind: storage.MapLeaf, Entries: map[string]types.Constant{
		"x": {Kind: types.Field, Int: big.NewInt(1)},
		"y": {Kind: types.Field, Int: big.NewInt(2)},
	}}
	b := storage.Leaf{Kind: storage.MapLeaf, Entries: map[string]types.Constant{
		"y": {Kind: types.Field, Int: big.NewInt(2)},
		"x": {Kind: types.Field, Int: big.NewInt(1)},
	}}
	sa := storage.New([]storage.Leaf{a})
	sb := storage.New([]storage.Leaf{b})
	assert.Equal(t, sa.RootHash(), sb.RootHash())
}
