// Copyright 2025 Certen Protocol

package evidencelog

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/merkle"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func testEnvelope(t *testing.T, n int) *envelope.Envelope {
	t.Helper()
	body, err := json.Marshal(map[string]any{"n": n})
	if err != nil {
		t.Fatal(err)
	}
	env, err := envelope.NewBuilder().
		Actor(envelope.Actor{PrincipalID: "user:alice", Kind: envelope.ActorHuman}).
		Resource(envelope.Resource{ID: "file:/tmp/report.txt", Kind: "file"}).
		Action(envelope.NewAction("file", "write")).
		Authority(envelope.Authority{Cap: envelope.CapabilityRef{CapRef: "cap:test"}}).
		Body(body).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestMemoryStoreAppendAssignsSequentialLeafIndices(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := store.AppendEnvelope(ctx, testEnvelope(t, i))
		if err != nil {
			t.Fatal(err)
		}
		if res.LeafIndex != int64(i) {
			t.Fatalf("expected leaf index %d, got %d", i, res.LeafIndex)
		}
	}

	count, err := store.LeafCount(ctx, TreeVakya)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("expected 5 leaves, got %d", count)
	}
}

func TestMemoryStoreCheckpointSignatureVerifies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.AppendEnvelope(ctx, testEnvelope(t, i)); err != nil {
			t.Fatal(err)
		}
	}

	cp, err := store.Checkpoint(ctx, TreeVakya, kp)
	if err != nil {
		t.Fatal(err)
	}
	if cp.TreeSize != 3 {
		t.Fatalf("expected tree size 3, got %d", cp.TreeSize)
	}
	if cp.PrevCheckpointID != nil {
		t.Fatal("expected no previous checkpoint for the first one")
	}

	ok, err := VerifyCheckpoint(cp, kp.ToPublicInfo())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected checkpoint signature to verify")
	}

	latest, found, err := store.LatestCheckpoint(ctx, TreeVakya)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected a latest checkpoint")
	}
	if latest.ID != cp.ID {
		t.Fatalf("expected latest checkpoint id %d, got %d", cp.ID, latest.ID)
	}
}

func TestMemoryStoreInclusionProofVerifies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var appended []*Appended
	for i := 0; i < 7; i++ {
		res, err := store.AppendEnvelope(ctx, testEnvelope(t, i))
		if err != nil {
			t.Fatal(err)
		}
		appended = append(appended, res)
	}

	for _, a := range appended {
		proof, err := store.InclusionProof(ctx, TreeVakya, a.LeafIndex)
		if err != nil {
			t.Fatal(err)
		}
		root, err := hex.DecodeString(proof.MerkleRoot)
		if err != nil {
			t.Fatal(err)
		}
		ok, err := merkle.VerifyProof(a.LeafHash, proof, root)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("expected inclusion proof for leaf %d to verify", a.LeafIndex)
		}
	}
}

func TestMemoryStoreCheckpointEmptyLogErrors(t *testing.T) {
	store := NewMemoryStore()
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Checkpoint(context.Background(), TreeVakya, kp); err == nil {
		t.Fatal("expected checkpointing an empty log to fail")
	}
}

func TestMemoryStoreCheckpointUnknownKindErrors(t *testing.T) {
	store := NewMemoryStore()
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Checkpoint(context.Background(), TreeKind("bogus"), kp); err == nil {
		t.Fatal("expected an unknown tree kind to error")
	}
}

func TestMemoryStoreAppendEffectAndReceiptAreSeparateTrees(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	env := testEnvelope(t, 0)

	eff := effect.New(env.ID, envelope.EffectCreate, string(env.Resource.ID))
	effAppended, err := store.AppendEffect(ctx, env.ID, eff)
	if err != nil {
		t.Fatal(err)
	}
	if effAppended.LeafIndex != 0 {
		t.Fatalf("expected effect tree's first leaf index to be 0, got %d", effAppended.LeafIndex)
	}

	receipt, err := envelope.NewReceipt(env, "gateway-1")
	if err != nil {
		t.Fatal(err)
	}
	receipt.Reason = envelope.ReasonSuccess
	receiptAppended, err := store.AppendReceipt(ctx, receipt)
	if err != nil {
		t.Fatal(err)
	}
	if receiptAppended.LeafIndex != 0 {
		t.Fatalf("expected receipt tree's first leaf index to be 0, got %d", receiptAppended.LeafIndex)
	}

	if _, err := store.AppendAudit(ctx, "user:alice", "policy.update", "success", map[string]any{"bundle": "v3"}); err != nil {
		t.Fatal(err)
	}

	vakyaCount, err := store.LeafCount(ctx, TreeVakya)
	if err != nil {
		t.Fatal(err)
	}
	if vakyaCount != 0 {
		t.Fatalf("expected 0 vakya leaves (none appended in this test), got %d", vakyaCount)
	}
	effectCount, err := store.LeafCount(ctx, TreeEffect)
	if err != nil {
		t.Fatal(err)
	}
	if effectCount != 1 {
		t.Fatalf("expected 1 effect leaf, got %d", effectCount)
	}
	receiptCount, err := store.LeafCount(ctx, TreeReceipt)
	if err != nil {
		t.Fatal(err)
	}
	if receiptCount != 1 {
		t.Fatalf("expected 1 receipt leaf, got %d", receiptCount)
	}
}
