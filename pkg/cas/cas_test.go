// Copyright 2025 Certen Protocol

package cas

import (
	"context"
	"errors"
	"testing"

	cid "github.com/ipfs/go-cid"
)

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("hello world")

	id, err := store.PutBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetBytes(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round-trip mismatch: got %q, want %q", got, data)
	}
}

func TestMemoryStore_PutIsDeterministic(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("hello world")

	id1, err := store.PutBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	id2, err := store.PutBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if !id1.Equals(id2) {
		t.Fatalf("expected identical content to produce identical CIDs: %s != %s", id1, id2)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single stored entry, got %d", store.Len())
	}
}

func TestMemoryStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetBytes(context.Background(), cid.Undef)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	id, err := store.PutBytes(context.Background(), []byte("gone soon"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.Contains(context.Background(), id); ok {
		t.Fatal("expected entry to be gone after delete")
	}
}

func TestTypedPutGetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	source := Source{Kind: SourceUser, PrincipalID: "did:key:z6Mktest"}
	event := NewEvent(1706764800000, cid.Undef, source)

	id, err := Put(ctx, store, event)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	roundTripped, err := Get[Event](ctx, store, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if roundTripped.Type != "event" || roundTripped.Timestamp != event.Timestamp {
		t.Fatalf("round-trip mismatch: got %+v", roundTripped)
	}
}

func TestTypedPutIsContentAddressed(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	source := Source{Kind: SourceUser, PrincipalID: "did:key:z6Mktest"}

	e1 := NewEvent(1706764800000, cid.Undef, source)
	e2 := NewEvent(1706764800000, cid.Undef, source)

	id1, err := Put(ctx, store, e1)
	if err != nil {
		t.Fatalf("put 1: %v", err)
	}
	id2, err := Put(ctx, store, e2)
	if err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if !id1.Equals(id2) {
		t.Fatalf("expected identical events to share a CID: %s != %s", id1, id2)
	}
}

func TestClaimBundleValueType(t *testing.T) {
	source := Source{Kind: SourceUser, PrincipalID: "did:key:z6Mktest"}
	claim := NewClaimBundle("user:alice", "preference:food", "vegetarian", source)
	if claim.ValueType != "string" {
		t.Fatalf("expected value_type \"string\", got %q", claim.ValueType)
	}
	if claim.Type != "claim_bundle" {
		t.Fatalf("expected type \"claim_bundle\", got %q", claim.Type)
	}
}
