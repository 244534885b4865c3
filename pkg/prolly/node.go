// Copyright 2025 Certen Protocol
//
// Prolly tree node implementation.
//
// A node is a sorted run of keys paired with either leaf values (CIDs to
// data) or child CIDs (for internal nodes). Inserts and removes are
// copy-on-write: they return a new node rather than mutating the receiver,
// so existing references to a node remain valid after a tree update.

package prolly

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
)

// Node is a single level of the Prolly tree. It carries the level, keys and
// values fields of the vault's cas.ProllyNode CBOR representation (without
// its type, version, node_hash and metadata fields) and is kept separate so
// tree operations can carry a mutable, uncached-hash working copy.
type Node struct {
	Level  uint8     `cbor:"level"`
	Keys   [][]byte  `cbor:"keys"`
	Values []cid.Cid `cbor:"values"`

	cachedHash []byte
}

// NewLeaf builds a leaf node (level 0) from already-sorted keys and values.
func NewLeaf(keys [][]byte, values []cid.Cid) *Node {
	if len(keys) != len(values) {
		panic("prolly: keys and values must have same length")
	}
	return &Node{Level: 0, Keys: keys, Values: values}
}

// NewInternal builds an internal node at the given level (> 0) from sorted
// keys and child CIDs.
func NewInternal(level uint8, keys [][]byte, children []cid.Cid) *Node {
	if level == 0 {
		panic("prolly: internal nodes must have level > 0")
	}
	if len(keys) != len(children) {
		panic("prolly: keys and children must have same length")
	}
	return &Node{Level: level, Keys: keys, Values: children}
}

func (n *Node) IsLeaf() bool { return n.Level == 0 }

func (n *Node) Len() int { return len(n.Keys) }

func (n *Node) IsEmpty() bool { return len(n.Keys) == 0 }

// search returns the index of key if present, and whether it was found,
// mirroring sort.Search's "first index not less than key" semantics.
func (n *Node) search(key []byte) (int, bool) {
	idx := sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(n.Keys[i], key) >= 0
	})
	if idx < len(n.Keys) && bytes.Equal(n.Keys[idx], key) {
		return idx, true
	}
	return idx, false
}

// Get returns the value associated with key, if present.
func (n *Node) Get(key []byte) (cid.Cid, bool) {
	idx, ok := n.search(key)
	if !ok {
		return cid.Undef, false
	}
	return n.Values[idx], true
}

// FindChildIndex returns the index of the child subtree that may contain
// key, for internal nodes. It never returns an out-of-range index on a
// non-empty node.
func (n *Node) FindChildIndex(key []byte) int {
	idx, found := n.search(key)
	if found {
		return idx
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// Insert returns a new node with key bound to value, preserving key order.
// An existing key's value is overwritten in place.
func (n *Node) Insert(key []byte, value cid.Cid) *Node {
	keys := make([][]byte, len(n.Keys))
	copy(keys, n.Keys)
	values := make([]cid.Cid, len(n.Values))
	copy(values, n.Values)

	idx, found := n.search(key)
	if found {
		values[idx] = value
	} else {
		keys = append(keys, nil)
		copy(keys[idx+1:], keys[idx:])
		keys[idx] = key

		values = append(values, cid.Undef)
		copy(values[idx+1:], values[idx:])
		values[idx] = value
	}

	return &Node{Level: n.Level, Keys: keys, Values: values}
}

// Remove returns a new node with key removed, or nil if key is not present.
func (n *Node) Remove(key []byte) *Node {
	idx, found := n.search(key)
	if !found {
		return nil
	}
	keys := make([][]byte, 0, len(n.Keys)-1)
	keys = append(keys, n.Keys[:idx]...)
	keys = append(keys, n.Keys[idx+1:]...)

	values := make([]cid.Cid, 0, len(n.Values)-1)
	values = append(values, n.Values[:idx]...)
	values = append(values, n.Values[idx+1:]...)

	return &Node{Level: n.Level, Keys: keys, Values: values}
}

// Hash returns the SHA-256 content hash of the node's encoding: level, key
// count, each length-prefixed key, then each value's raw CID bytes. The
// result is cached on the node since nodes are otherwise treated as
// immutable once built.
func (n *Node) Hash() [32]byte {
	if n.cachedHash != nil {
		var out [32]byte
		copy(out[:], n.cachedHash)
		return out
	}

	var buf bytes.Buffer
	buf.WriteByte(n.Level)

	var numKeys [2]byte
	binary.BigEndian.PutUint16(numKeys[:], uint16(len(n.Keys)))
	buf.Write(numKeys[:])

	for _, key := range n.Keys {
		var keyLen [2]byte
		binary.BigEndian.PutUint16(keyLen[:], uint16(len(key)))
		buf.Write(keyLen[:])
		buf.Write(key)
	}

	for _, value := range n.Values {
		buf.Write(value.Bytes())
	}

	sum := canon.HashBytes(buf.Bytes())
	n.cachedHash = sum[:]
	return sum
}

// SplitAtBoundaries partitions the node's entries into a sequence of
// same-level chunks, starting a new chunk whenever a boundary key is seen
// (except at the very start of the run), implementing content-defined
// chunking so that inserts/removes elsewhere in the tree don't reshuffle
// chunk boundaries unrelated to the edit.
func (n *Node) SplitAtBoundaries() []*Node {
	if n.IsEmpty() {
		return nil
	}

	var chunks []*Node
	var curKeys [][]byte
	var curValues []cid.Cid

	for i, key := range n.Keys {
		if IsBoundary(key) && len(curKeys) > 0 {
			chunks = append(chunks, &Node{Level: n.Level, Keys: curKeys, Values: curValues})
			curKeys = nil
			curValues = nil
		}
		curKeys = append(curKeys, key)
		curValues = append(curValues, n.Values[i])
	}

	if len(curKeys) > 0 {
		chunks = append(chunks, &Node{Level: n.Level, Keys: curKeys, Values: curValues})
	}

	return chunks
}

func (n *Node) String() string {
	kind := "internal"
	if n.IsLeaf() {
		kind = "leaf"
	}
	return fmt.Sprintf("prolly.Node{%s level=%d entries=%d}", kind, n.Level, n.Len())
}
