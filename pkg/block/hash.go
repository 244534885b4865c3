// Copyright 2025 Certen Protocol
//
// Domain-separated hashing for the vault's append-only block chain: every
// block commits a patch and a manifest, and both the block and the
// manifest are content-addressed the same way as any other CAS object —
// canonical DAG-CBOR over a narrow hash-input struct, then SHA-256.

package block

import (
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
)

type blockHashData struct {
	BlockNo       uint64          `cbor:"block_no"`
	PrevBlockHash [32]byte        `cbor:"prev_block_hash"`
	Timestamp     int64           `cbor:"ts"`
	PatchCID      cid.Cid         `cbor:"patch_cid"`
	ManifestCID   cid.Cid         `cbor:"manifest_cid"`
	Signatures    []cas.Signature `cbor:"signatures"`
}

// ComputeBlockHash hashes everything a block header commits to: its
// number, the previous block's hash, its timestamp, the patch and
// manifest it carries, and the signatures attesting to it.
func ComputeBlockHash(blockNo uint64, prevBlockHash [32]byte, ts int64, patchCID, manifestCID cid.Cid, signatures []cas.Signature) ([32]byte, error) {
	data, err := cas.Encode(blockHashData{
		BlockNo:       blockNo,
		PrevBlockHash: prevBlockHash,
		Timestamp:     ts,
		PatchCID:      patchCID,
		ManifestCID:   manifestCID,
		Signatures:    signatures,
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("block: encode block hash input: %w", err)
	}
	return cas.HashBytes(data), nil
}

type manifestHashData struct {
	BlockNo          uint64              `cbor:"block_no"`
	ChapterIndexRoot [32]byte            `cbor:"chapter_index_root"`
	SnaptreeRoots    map[string][32]byte `cbor:"snaptree_roots"`
	PCNNBasisRoot    [32]byte            `cbor:"pcnn_basis_root"`
	PCNNMPNRoot      [32]byte            `cbor:"pcnn_mpn_root"`
	PCNNIERoot       [32]byte            `cbor:"pcnn_ie_root"`
	BodyCASRoot      [32]byte            `cbor:"body_cas_root"`
	PolicyRoot       [32]byte            `cbor:"policy_root"`
	RevocationRoot   [32]byte            `cbor:"revocation_root"`
}

// ComputeManifestHash hashes the set of index roots a manifest commits for
// a given block number.
func ComputeManifestHash(blockNo uint64, chapterIndexRoot [32]byte, snaptreeRoots map[string][32]byte, pcnnBasisRoot, pcnnMPNRoot, pcnnIERoot, bodyCASRoot, policyRoot, revocationRoot [32]byte) ([32]byte, error) {
	data, err := cas.Encode(manifestHashData{
		BlockNo:          blockNo,
		ChapterIndexRoot: chapterIndexRoot,
		SnaptreeRoots:    snaptreeRoots,
		PCNNBasisRoot:    pcnnBasisRoot,
		PCNNMPNRoot:      pcnnMPNRoot,
		PCNNIERoot:       pcnnIERoot,
		BodyCASRoot:      bodyCASRoot,
		PolicyRoot:       policyRoot,
		RevocationRoot:   revocationRoot,
	})
	if err != nil {
		return [32]byte{}, fmt.Errorf("block: encode manifest hash input: %w", err)
	}
	return cas.HashBytes(data), nil
}
