// Copyright 2025 Certen Protocol
//
// Block-verified chain checks: given a block header and the hash it
// claims to follow, confirm the previous-hash link, every signature, and
// the block's own hash computation all agree before the block is
// admitted into a vault's local chain.

package block

import (
	"errors"
	"fmt"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
)

var (
	ErrPrevHashMismatch  = errors.New("block: prev_block_hash mismatch")
	ErrBlockHashMismatch = errors.New("block: block_hash mismatch")
	ErrInvalidSignature  = errors.New("block: invalid signature")
)

// Verify confirms block genuinely follows expectedPrevHash: its recorded
// prev_block_hash matches, every attached signature verifies over the
// block's signed message, and recomputing the block hash from its fields
// reproduces the recorded block_hash.
func Verify(header *cas.BlockHeader, expectedPrevHash [32]byte) error {
	if header.PrevBlockHash != expectedPrevHash {
		return fmt.Errorf("%w: block %d", ErrPrevHashMismatch, header.BlockNo)
	}

	message := Message(header)
	for _, sig := range header.Signatures {
		ok, err := VerifySignature(sig, message)
		if err != nil || !ok {
			return fmt.Errorf("%w: block %d", ErrInvalidSignature, header.BlockNo)
		}
	}

	computed, err := ComputeBlockHash(header.BlockNo, header.PrevBlockHash, header.Timestamp, header.Links.Patch, header.Links.Manifest, header.Signatures)
	if err != nil {
		return fmt.Errorf("block: recompute hash for block %d: %w", header.BlockNo, err)
	}
	if computed != header.BlockHash {
		return fmt.Errorf("%w: block %d", ErrBlockHashMismatch, header.BlockNo)
	}

	return nil
}
