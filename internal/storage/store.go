// Package storage implements the contract storage gadget (spec §4.9): an
// ordered vector of Merkle-authenticated leaves, each either a fixed-size
// Array of scalars or a key/value Map. Every load/store is accompanied by
// the sibling path connecting the touched leaf to the stored root hash, the
// same "declare -> store -> resolve by a content-derived ID" shape as the
// teacher's runtime/vault/vault.go, reimplemented here over
// golang.org/x/crypto/blake2b for the Merkle hashing spec.md leaves
// unspecified but requires unconditionally (spec §9 "an implementation must
// provide the full path-enforcement using the stdlib hasher").
package storage

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/vikkkko/zinc/internal/invariant"
	"github.com/vikkkko/zinc/internal/types"
)

// LeafKind distinguishes the two shapes a storage slot may hold (spec §4.9).
type LeafKind int

const (
	ArrayLeaf LeafKind = iota
	MapLeaf
)

// Leaf is one entry of a contract's storage vector.
type Leaf struct {
	Kind LeafKind

	// ArrayLeaf
	Elems []types.Constant

	// MapLeaf
	KeyType   types.Type
	ValueType types.Type
	Entries   map[string]types.Constant // key encoded via encodeKey
}

// Hash is a blake2b-256 digest, used both as a leaf digest and as an
// internal Merkle node.
type Hash [32]byte

var emptyLeafHash = hashBytes([]byte("zinc/storage/empty-leaf"))

func hashBytes(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}

// leafDigest deterministically serializes a Leaf before hashing: field
// values as big-endian bytes, map entries in sorted key order so two
// semantically identical leaves always hash the same.
func leafDigest(l Leaf) Hash {
	var buf []byte
	buf = append(buf, byte(l.Kind))
	switch l.Kind {
	case ArrayLeaf:
		for _, c := range l.Elems {
			buf = appendConstant(buf, c)
		}
	case MapLeaf:
		keys := make([]string, 0, len(l.Entries))
		for k := range l.Entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = append(buf, []byte(k)...)
			buf = appendConstant(buf, l.Entries[k])
		}
	}
	return hashBytes(buf)
}

// LeafHash exports leafDigest for callers outside this package that need to
// authenticate a leaf they already hold (the VM, verifying a Load/Set
// result against a previously observed root without re-touching the Store).
func LeafHash(l Leaf) Hash { return leafDigest(l) }

func appendConstant(buf []byte, c types.Constant) []byte {
	if c.Int != nil {
		buf = append(buf, c.Int.Bytes()...)
	}
	buf = append(buf, 0) // separator, bounds each field against its neighbor
	return buf
}

// encodeKey canonicalizes a map key Constant to the string Entries is keyed
// by.
func encodeKey(c types.Constant) string {
	if c.Int != nil {
		return c.Int.String()
	}
	return c.Str
}

// Store is the Merkle-authenticated leaf vector backing one contract's
// storage (spec §4.9 "the backing store exposes load(index), store(index,
// leaf), root_hash()"). Leaves are padded up to the next power of two with
// emptyLeafHash so the tree is a perfect binary tree.
type Store struct {
	leaves []Leaf
	hashes []Hash // leaf hashes, padded to a power of two
	size   int    // original, unpadded leaf count
}

// New builds a Store over an initial leaf vector (spec §6: "a storage
// snapshot (vector of leaves)" supplied by the host).
func New(leaves []Leaf) *Store {
	s := &Store{leaves: append([]Leaf(nil), leaves...), size: len(leaves)}
	s.rebuildHashes()
	return s
}

func paddedSize(n int) int {
	if n == 0 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

func (s *Store) rebuildHashes() {
	n := paddedSize(s.size)
	s.hashes = make([]Hash, n)
	for i := 0; i < n; i++ {
		if i < s.size {
			s.hashes[i] = leafDigest(s.leaves[i])
		} else {
			s.hashes[i] = emptyLeafHash
		}
	}
}

// Path is the sibling chain from a leaf up to the root, used to verify that
// a specific leaf is authenticated against RootHash (spec §4.9: "emits the
// Merkle path constraints connecting the stated leaf to the root").
type Path [][32]byte

// RootHash folds the padded hash vector bottom-up into a single root.
func (s *Store) RootHash() Hash {
	level := append([]Hash(nil), s.hashes...)
	for len(level) > 1 {
		next := make([]Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func hashPair(l, r Hash) Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, l[:]...)
	buf = append(buf, r[:]...)
	return hashBytes(buf)
}

// pathFor returns the sibling hash at each level on the way from leaf index
// to the root. It hashes a copy of the leaf level, so s.hashes is left
// unchanged and the intermediate levels are not kept.
func (s *Store) pathFor(index int) Path {
	level := append([]Hash(nil), s.hashes...)
	idx := index
	var path Path
	for len(level) > 1 {
		sibling := idx ^ 1
		path = append(path, level[sibling])
		next := make([]Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
		idx /= 2
	}
	return path
}

// Load reads the leaf at index, returning it alongside the Merkle Path that
// authenticates it against RootHash() (spec §4.9 "storageLoad(index,
// size)").
func (s *Store) Load(index int) (Leaf, Path, error) {
	if index < 0 || index >= s.size {
		return Leaf{}, nil, fmt.Errorf("storage: load index %d out of range [0,%d)", index, s.size)
	}
	return s.leaves[index], s.pathFor(index), nil
}

// Set replaces the leaf at index, recomputes the affected hash chain, and
// returns the new root alongside the Merkle Path used to reach it (spec
// §4.9 "storageStore(index, values) replaces the leaf").
func (s *Store) Set(index int, leaf Leaf) (Hash, Path, error) {
	if index < 0 || index >= s.size {
		return Hash{}, nil, fmt.Errorf("storage: store index %d out of range [0,%d)", index, s.size)
	}
	path := s.pathFor(index)
	s.leaves[index] = leaf
	s.hashes[index] = leafDigest(leaf)
	return s.RootHash(), path, nil
}

// AuthenticationError reports a leaf/path pair that fails to reconstruct
// the root it was checked against (spec §4.9, §9: load/store must not skip
// the Merkle path connecting the stated leaf to the root).
type AuthenticationError struct{ Index int }

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("storage: leaf %d failed Merkle path authentication against the current root", e.Index)
}

// VerifyPath checks that leafHash authenticates against root via path at
// the given index, recomputing each ancestor exactly as pathFor's
// construction does.
func VerifyPath(root Hash, index int, leafHash Hash, path Path) bool {
	cur := leafHash
	idx := index
	for _, sib := range path {
		if idx%2 == 0 {
			cur = hashPair(cur, sib)
		} else {
			cur = hashPair(sib, cur)
		}
		idx /= 2
	}
	return cur == root
}

// Snapshot returns the current leaf vector (spec §6 "Outputs": "the updated
// storage snapshot").
func (s *Store) Snapshot() []Leaf {
	invariant.Invariant(len(s.leaves) == s.size, "storage: leaf vector length drifted from recorded size")
	return append([]Leaf(nil), s.leaves...)
}

// Len reports the number of storage leaves.
func (s *Store) Len() int { return s.size }
