// Copyright 2025 Certen Protocol

package prolly

import (
	"context"
	"testing"

	cid "github.com/ipfs/go-cid"
)

func TestLeafNode(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	values := []cid.Cid{cid.Undef, cid.Undef, cid.Undef}

	node := NewLeaf(keys, values)
	if !node.IsLeaf() {
		t.Fatal("expected leaf node")
	}
	if node.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", node.Len())
	}
}

func TestNodeGet(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	values := []cid.Cid{cid.Undef, cid.Undef, cid.Undef}
	node := NewLeaf(keys, values)

	if _, ok := node.Get([]byte("a")); !ok {
		t.Fatal("expected key a to be present")
	}
	if _, ok := node.Get([]byte("d")); ok {
		t.Fatal("expected key d to be absent")
	}
}

func TestNodeInsert(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("c")}
	values := []cid.Cid{cid.Undef, cid.Undef}
	node := NewLeaf(keys, values)

	node2 := node.Insert([]byte("b"), cid.Undef)
	if node2.Len() != 3 {
		t.Fatalf("expected 3 entries after insert, got %d", node2.Len())
	}
	if _, ok := node2.Get([]byte("b")); !ok {
		t.Fatal("expected key b to be present after insert")
	}
	if node.Len() != 2 {
		t.Fatal("expected original node to be unmodified")
	}
}

func TestNodeRemove(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	values := []cid.Cid{cid.Undef, cid.Undef, cid.Undef}
	node := NewLeaf(keys, values)

	node2 := node.Remove([]byte("b"))
	if node2 == nil {
		t.Fatal("expected removal to succeed")
	}
	if node2.Len() != 2 {
		t.Fatalf("expected 2 entries after remove, got %d", node2.Len())
	}
	if _, ok := node2.Get([]byte("b")); ok {
		t.Fatal("expected key b to be gone")
	}

	if node.Remove([]byte("z")) != nil {
		t.Fatal("expected removal of missing key to return nil")
	}
}

func TestNodeHashDeterministic(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b")}
	values := []cid.Cid{cid.Undef, cid.Undef}

	node1 := NewLeaf(keys, values)
	node2 := NewLeaf(append([][]byte{}, keys...), append([]cid.Cid{}, values...))

	if node1.Hash() != node2.Hash() {
		t.Fatal("expected identical nodes to hash identically")
	}
}

func TestBoundaryDeterministic(t *testing.T) {
	key := []byte("test_key")
	if IsBoundary(key) != IsBoundary(key) {
		t.Fatal("expected boundary check to be deterministic")
	}
}

func TestTreeEmptyLookup(t *testing.T) {
	store := NewMemoryNodeStore()
	tree := New(store)

	if _, ok := tree.Root(); ok {
		t.Fatal("expected empty tree to have no root")
	}
	ctx := context.Background()
	if _, ok, err := tree.Get(ctx, []byte("key")); err != nil || ok {
		t.Fatalf("expected empty lookup to miss, got ok=%v err=%v", ok, err)
	}
}

func TestTreeInsertAndGet(t *testing.T) {
	store := NewMemoryNodeStore()
	tree := New(store)
	ctx := context.Background()

	data, _ := store.Put(ctx, NewLeaf(nil, nil))
	if err := tree.Insert(ctx, []byte("key1"), data); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, ok := tree.Root(); !ok {
		t.Fatal("expected non-empty root after insert")
	}

	got, ok, err := tree.Get(ctx, []byte("key1"))
	if err != nil || !ok {
		t.Fatalf("expected key1 to be found, ok=%v err=%v", ok, err)
	}
	if !got.Equals(data) {
		t.Fatalf("expected value round-trip, got %s want %s", got, data)
	}

	if _, ok, err := tree.Get(ctx, []byte("key2")); err != nil || ok {
		t.Fatal("expected key2 to be absent")
	}
}

func TestTreeMultipleInserts(t *testing.T) {
	store := NewMemoryNodeStore()
	tree := New(store)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		key := []byte{byte('a' + i%26), byte(i)}
		if err := tree.Insert(ctx, key, cid.Undef); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < 50; i++ {
		key := []byte{byte('a' + i%26), byte(i)}
		if _, ok, err := tree.Get(ctx, key); err != nil || !ok {
			t.Fatalf("expected key %d present, ok=%v err=%v", i, ok, err)
		}
	}
}

func TestProveAndVerify(t *testing.T) {
	store := NewMemoryNodeStore()
	tree := New(store)
	ctx := context.Background()

	if err := tree.Insert(ctx, []byte("key1"), cid.Undef); err != nil {
		t.Fatalf("insert: %v", err)
	}

	proof, ok, err := tree.Prove(ctx, []byte("key1"))
	if err != nil || !ok {
		t.Fatalf("expected proof for key1, ok=%v err=%v", ok, err)
	}
	if !proof.Verify() {
		t.Fatal("expected proof to verify")
	}

	if _, ok, err := tree.Prove(ctx, []byte("nonexistent")); err != nil || ok {
		t.Fatal("expected no proof for missing key")
	}
}

func TestProveRejectsTamperedValue(t *testing.T) {
	store := NewMemoryNodeStore()
	tree := New(store)
	ctx := context.Background()

	if err := tree.Insert(ctx, []byte("key1"), cid.Undef); err != nil {
		t.Fatalf("insert: %v", err)
	}
	proof, ok, err := tree.Prove(ctx, []byte("key1"))
	if err != nil || !ok {
		t.Fatalf("expected proof, ok=%v err=%v", ok, err)
	}

	other, _ := store.Put(ctx, NewLeaf(nil, nil))
	proof.ValueCID = other
	if proof.Verify() {
		t.Fatal("expected tampered proof to fail verification")
	}
}

func TestDiffIdenticalRootsIsEmpty(t *testing.T) {
	store := NewMemoryNodeStore()
	ctx := context.Background()
	root, err := store.Put(ctx, NewLeaf([][]byte{[]byte("a")}, []cid.Cid{cid.Undef}))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	changes, err := Diff(ctx, store, root, store, root)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes between identical roots, got %d", len(changes))
	}
}

func TestDiffLeafAddRemoveModify(t *testing.T) {
	store := NewMemoryNodeStore()
	ctx := context.Background()

	valA, _ := store.Put(ctx, NewLeaf(nil, nil))
	valB, _ := store.Put(ctx, NewLeaf([][]byte{[]byte("x")}, []cid.Cid{cid.Undef}))
	valC, _ := store.Put(ctx, NewLeaf([][]byte{[]byte("y")}, []cid.Cid{cid.Undef}))

	fromRoot, err := store.Put(ctx, NewLeaf(
		[][]byte{[]byte("a"), []byte("b")},
		[]cid.Cid{valA, valB},
	))
	if err != nil {
		t.Fatalf("put from: %v", err)
	}

	toRoot, err := store.Put(ctx, NewLeaf(
		[][]byte{[]byte("b"), []byte("c")},
		[]cid.Cid{valC, valA},
	))
	if err != nil {
		t.Fatalf("put to: %v", err)
	}

	changes, err := Diff(ctx, store, fromRoot, store, toRoot)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	byKind := map[ChangeKind]int{}
	for _, c := range changes {
		byKind[c.Kind]++
	}
	if byKind[ChangeRemove] != 1 {
		t.Fatalf("expected 1 removal (key a), got %d", byKind[ChangeRemove])
	}
	if byKind[ChangeAdd] != 1 {
		t.Fatalf("expected 1 addition (key c), got %d", byKind[ChangeAdd])
	}
	if byKind[ChangeModify] != 1 {
		t.Fatalf("expected 1 modification (key b), got %d", byKind[ChangeModify])
	}
}

func TestSplitAtBoundaries(t *testing.T) {
	var keys [][]byte
	var values []cid.Cid
	for i := 0; i < 500; i++ {
		keys = append(keys, []byte{byte(i >> 8), byte(i)})
		values = append(values, cid.Undef)
	}
	node := NewLeaf(keys, values)

	chunks := node.SplitAtBoundaries()
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	var total int
	for _, c := range chunks {
		total += c.Len()
	}
	if total != len(keys) {
		t.Fatalf("expected chunking to preserve all %d entries, got %d", len(keys), total)
	}
}
