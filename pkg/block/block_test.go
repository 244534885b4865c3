// Copyright 2025 Certen Protocol

package block

import (
	"context"
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func buildBlock(t *testing.T, kp *signing.KeyPair, vault *MemoryVault, blockNo uint64, prevHash [32]byte) *cas.BlockHeader {
	t.Helper()
	ctx := context.Background()

	patch := &cas.VaultPatch{Type: "vault_patch", Version: 1, ParentBlockHash: prevHash}
	patchCID, err := vault.PutPatch(ctx, patch)
	if err != nil {
		t.Fatalf("put patch: %v", err)
	}

	manifest := &cas.ManifestRoot{Type: "manifest_root", Version: 1, BlockNo: blockNo}
	manifestCID, err := cas.Put(ctx, vault.store, manifest)
	if err != nil {
		t.Fatalf("put manifest: %v", err)
	}

	header := &cas.BlockHeader{
		Type:          "block_header",
		Version:       1,
		BlockNo:       blockNo,
		PrevBlockHash: prevHash,
		Timestamp:     1706764800000 + int64(blockNo),
		Links:         cas.BlockLinks{Patch: patchCID, Manifest: manifestCID},
	}

	message := Message(header)
	sig, err := Sign(kp, message)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	header.Signatures = []cas.Signature{sig}

	hash, err := ComputeBlockHash(header.BlockNo, header.PrevBlockHash, header.Timestamp, header.Links.Patch, header.Links.Manifest, header.Signatures)
	if err != nil {
		t.Fatalf("compute block hash: %v", err)
	}
	header.BlockHash = hash

	return header
}

func TestVerifyAcceptsWellFormedBlock(t *testing.T) {
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeGeneral)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	vault := NewMemoryVault(cas.NewMemoryStore())

	header := buildBlock(t, kp, vault, 1, [32]byte{})
	if err := Verify(header, [32]byte{}); err != nil {
		t.Fatalf("expected well-formed block to verify, got %v", err)
	}
}

func TestVerifyRejectsPrevHashMismatch(t *testing.T) {
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeGeneral)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	vault := NewMemoryVault(cas.NewMemoryStore())

	header := buildBlock(t, kp, vault, 1, [32]byte{})
	if err := Verify(header, [32]byte{1}); err == nil {
		t.Fatal("expected prev-hash mismatch to be rejected")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeGeneral)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	vault := NewMemoryVault(cas.NewMemoryStore())

	header := buildBlock(t, kp, vault, 1, [32]byte{})
	header.Signatures[0].Signature[0] ^= 0xff

	if err := Verify(header, [32]byte{}); err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
}

func TestSyncReplaysBlocksInOrder(t *testing.T) {
	ctx := context.Background()
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeGeneral)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	source := NewMemoryVault(cas.NewMemoryStore())

	genesis := buildBlock(t, kp, source, 0, [32]byte{})
	if err := source.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("put genesis: %v", err)
	}
	if err := source.SetHead(ctx, genesis.BlockHash); err != nil {
		t.Fatalf("set head: %v", err)
	}

	block1 := buildBlock(t, kp, source, 1, genesis.BlockHash)
	if err := source.PutBlock(ctx, block1); err != nil {
		t.Fatalf("put block1: %v", err)
	}
	if err := source.SetHead(ctx, block1.BlockHash); err != nil {
		t.Fatalf("set head: %v", err)
	}

	target := NewMemoryVault(cas.NewMemoryStore())
	if err := target.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("seed target genesis: %v", err)
	}
	if err := target.SetHead(ctx, genesis.BlockHash); err != nil {
		t.Fatalf("seed target head: %v", err)
	}

	result, err := Sync(ctx, source, target)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.TransferredBlocks != 1 {
		t.Fatalf("expected 1 transferred block, got %d", result.TransferredBlocks)
	}

	targetHead, err := target.GetHeadBlock(ctx)
	if err != nil {
		t.Fatalf("get target head: %v", err)
	}
	if targetHead.BlockHash != block1.BlockHash {
		t.Fatal("expected target head to match source head after sync")
	}
}

func TestSyncIsNoopWhenAlreadyCurrent(t *testing.T) {
	ctx := context.Background()
	kp, err := signing.GenerateKeyPair(signing.KeyPurposeGeneral)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	source := NewMemoryVault(cas.NewMemoryStore())
	genesis := buildBlock(t, kp, source, 0, [32]byte{})
	if err := source.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("put genesis: %v", err)
	}
	if err := source.SetHead(ctx, genesis.BlockHash); err != nil {
		t.Fatalf("set head: %v", err)
	}

	target := NewMemoryVault(cas.NewMemoryStore())
	if err := target.PutBlock(ctx, genesis); err != nil {
		t.Fatalf("seed target: %v", err)
	}
	if err := target.SetHead(ctx, genesis.BlockHash); err != nil {
		t.Fatalf("seed target head: %v", err)
	}

	result, err := Sync(ctx, source, target)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.TransferredBlocks != 0 {
		t.Fatalf("expected no-op sync, got %d transferred blocks", result.TransferredBlocks)
	}
}
