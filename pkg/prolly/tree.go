// Copyright 2025 Certen Protocol
//
// Prolly tree: a history-independent Merkle tree over sorted key/value
// pairs, with content-defined chunking so edits only touch the chunks
// whose boundaries the edit actually crosses.

package prolly

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
)

var ErrNodeNotFound = errors.New("prolly: node not found")

// NodeStore persists and retrieves tree nodes by content address.
type NodeStore interface {
	Get(ctx context.Context, id cid.Cid) (*Node, error)
	Put(ctx context.Context, node *Node) (cid.Cid, error)
	Contains(ctx context.Context, id cid.Cid) (bool, error)
}

// CASNodeStore adapts a cas.Store into a NodeStore, encoding nodes as
// canonical CBOR the same way every other vault object is addressed.
type CASNodeStore struct {
	store cas.Store
}

func NewCASNodeStore(store cas.Store) *CASNodeStore {
	return &CASNodeStore{store: store}
}

func (s *CASNodeStore) Get(ctx context.Context, id cid.Cid) (*Node, error) {
	data, err := s.store.GetBytes(ctx, id)
	if err != nil {
		if errors.Is(err, cas.ErrNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("prolly: get node %s: %w", id, err)
	}
	var n Node
	if err := cas.Decode(data, &n); err != nil {
		return nil, fmt.Errorf("prolly: decode node %s: %w", id, err)
	}
	return &n, nil
}

func (s *CASNodeStore) Put(ctx context.Context, node *Node) (cid.Cid, error) {
	id, err := cas.Put(ctx, s.store, node)
	if err != nil {
		return cid.Undef, fmt.Errorf("prolly: put node: %w", err)
	}
	return id, nil
}

func (s *CASNodeStore) Contains(ctx context.Context, id cid.Cid) (bool, error) {
	return s.store.Contains(ctx, id)
}

// MemoryNodeStore is an in-memory NodeStore, useful for tests and for
// building a tree before it has a durable backing store.
type MemoryNodeStore struct {
	mu    sync.RWMutex
	nodes map[cid.Cid]*Node
}

func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{nodes: make(map[cid.Cid]*Node)}
}

func (s *MemoryNodeStore) Get(ctx context.Context, id cid.Cid) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

func (s *MemoryNodeStore) Put(ctx context.Context, node *Node) (cid.Cid, error) {
	data, err := cas.Encode(node)
	if err != nil {
		return cid.Undef, err
	}
	id, err := cas.ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	s.mu.Lock()
	s.nodes[id] = node
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryNodeStore) Contains(ctx context.Context, id cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok, nil
}

// Tree is a Prolly tree rooted at a single node CID. The zero value (via
// New) is an empty tree; Tree is not safe for concurrent mutation, callers
// needing concurrent access should serialize Insert/Remove externally.
type Tree struct {
	store NodeStore
	root  *cid.Cid
}

// New creates a new, empty tree backed by store.
func New(store NodeStore) *Tree {
	return &Tree{store: store}
}

// WithRoot creates a tree backed by store and rooted at an existing node.
func WithRoot(store NodeStore, root cid.Cid) *Tree {
	return &Tree{store: store, root: &root}
}

// Root returns the tree's root CID, or false if the tree is empty.
func (t *Tree) Root() (cid.Cid, bool) {
	if t.root == nil {
		return cid.Undef, false
	}
	return *t.root, true
}

// Get looks up key, walking down from the root through internal nodes to
// the leaf that would contain it.
func (t *Tree) Get(ctx context.Context, key []byte) (cid.Cid, bool, error) {
	if t.root == nil {
		return cid.Undef, false, nil
	}

	current := *t.root
	for {
		node, err := t.store.Get(ctx, current)
		if err != nil {
			return cid.Undef, false, err
		}

		if node.IsLeaf() {
			value, ok := node.Get(key)
			return value, ok, nil
		}

		idx := node.FindChildIndex(key)
		if idx >= len(node.Values) {
			return cid.Undef, false, nil
		}
		current = node.Values[idx]
	}
}

// Insert binds key to value, creating the tree's first leaf if it is
// currently empty.
//
// This is a v0.1 single-leaf implementation: the tree never splits a leaf
// across boundary-aligned chunks on write, matching the scope the vault
// currently needs (small working sets per conversation). SplitAtBoundaries
// is implemented and exercised by tests, and Get, Prove and Diff walk
// internal nodes, but no test builds a multi-level tree, and Insert/Remove
// only ever rewrite the root node, so they never grow the tree past one
// level.
func (t *Tree) Insert(ctx context.Context, key []byte, value cid.Cid) error {
	if t.root == nil {
		leaf := NewLeaf([][]byte{key}, []cid.Cid{value})
		id, err := t.store.Put(ctx, leaf)
		if err != nil {
			return err
		}
		t.root = &id
		return nil
	}

	node, err := t.store.Get(ctx, *t.root)
	if err != nil {
		return err
	}
	updated := node.Insert(key, value)
	id, err := t.store.Put(ctx, updated)
	if err != nil {
		return err
	}
	t.root = &id
	return nil
}

// Remove unbinds key, if present. It is a no-op if the tree is empty or
// the key is absent.
func (t *Tree) Remove(ctx context.Context, key []byte) error {
	if t.root == nil {
		return nil
	}
	node, err := t.store.Get(ctx, *t.root)
	if err != nil {
		return err
	}
	updated := node.Remove(key)
	if updated == nil {
		return nil
	}
	id, err := t.store.Put(ctx, updated)
	if err != nil {
		return err
	}
	t.root = &id
	return nil
}

// Prove builds a membership proof for key, or returns (nil, false) if the
// key is not present.
func (t *Tree) Prove(ctx context.Context, key []byte) (*Proof, bool, error) {
	if t.root == nil {
		return nil, false, nil
	}

	rootNode, err := t.store.Get(ctx, *t.root)
	if err != nil {
		return nil, false, err
	}
	rootHash := rootNode.Hash()

	leaf, valueCID, path, found, err := t.proveIterative(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	return &Proof{
		Key:      key,
		ValueCID: valueCID,
		Leaf:     leaf,
		Path:     path,
		RootHash: rootHash,
	}, true, nil
}

func (t *Tree) proveIterative(ctx context.Context, key []byte) (*Node, cid.Cid, []ProofStep, bool, error) {
	current := *t.root
	var path []ProofStep

	for {
		node, err := t.store.Get(ctx, current)
		if err != nil {
			return nil, cid.Undef, nil, false, err
		}

		if node.IsLeaf() {
			value, ok := node.Get(key)
			if !ok {
				return nil, cid.Undef, nil, false, nil
			}
			return node, value, path, true, nil
		}

		childIdx := node.FindChildIndex(key)

		var siblingHashes [][32]byte
		for i, childID := range node.Values {
			if i == childIdx {
				continue
			}
			child, err := t.store.Get(ctx, childID)
			if err != nil {
				return nil, cid.Undef, nil, false, err
			}
			siblingHashes = append(siblingHashes, child.Hash())
		}

		path = append(path, ProofStep{
			Level:         node.Level,
			NodeHash:      node.Hash(),
			SiblingHashes: siblingHashes,
			Position:      uint16(childIdx),
		})

		if childIdx >= len(node.Values) {
			return nil, cid.Undef, nil, false, nil
		}
		current = node.Values[childIdx]
	}
}
