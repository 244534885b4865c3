// Copyright 2025 Certen Protocol
//
// Block-verified sync between two vaults: walk back from each head to a
// common ancestor, then replay and verify every block from there forward,
// copying the objects each block's patch references along the way.

package block

import (
	"context"
	"errors"
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
)

var (
	ErrNoCommonAncestor = errors.New("block: no common ancestor")
	ErrMissingBlock     = errors.New("block: missing block")
)

// Vault is the minimal surface a vault must expose to take part in sync,
// either as the source being pulled from or the target being brought up
// to date.
type Vault interface {
	GetHeadBlock(ctx context.Context) (*cas.BlockHeader, error)
	GetBlock(ctx context.Context, blockNo uint64) (*cas.BlockHeader, error)
	GetBlockRange(ctx context.Context, from, to uint64) ([]*cas.BlockHeader, error)
	GetPatch(ctx context.Context, id cid.Cid) (*cas.VaultPatch, error)
	GetObject(ctx context.Context, id cid.Cid) ([]byte, error)
	PutObject(ctx context.Context, data []byte) (cid.Cid, error)
	PutBlock(ctx context.Context, header *cas.BlockHeader) error
	SetHead(ctx context.Context, blockHash [32]byte) error
}

// Result summarizes the work a Sync call performed.
type Result struct {
	TransferredBlocks  int
	TransferredObjects int
}

// FindCommonAncestor walks both vaults back from their current heads
// until their block hashes agree, first equalizing block numbers by
// walking back the longer chain.
func FindCommonAncestor(ctx context.Context, source, target Vault) (*cas.BlockHeader, error) {
	sourceHead, err := source.GetHeadBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("block: read source head: %w", err)
	}
	targetHead, err := target.GetHeadBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("block: read target head: %w", err)
	}

	sourceBlock, targetBlock := sourceHead, targetHead

	for sourceBlock.BlockNo > targetBlock.BlockNo {
		if sourceBlock.BlockNo == 0 {
			break
		}
		sourceBlock, err = source.GetBlock(ctx, sourceBlock.BlockNo-1)
		if err != nil {
			return nil, fmt.Errorf("block: walk source back: %w", err)
		}
	}
	for targetBlock.BlockNo > sourceBlock.BlockNo {
		if targetBlock.BlockNo == 0 {
			break
		}
		targetBlock, err = target.GetBlock(ctx, targetBlock.BlockNo-1)
		if err != nil {
			return nil, fmt.Errorf("block: walk target back: %w", err)
		}
	}

	for sourceBlock.BlockHash != targetBlock.BlockHash {
		if sourceBlock.BlockNo == 0 || targetBlock.BlockNo == 0 {
			return nil, ErrNoCommonAncestor
		}
		sourceBlock, err = source.GetBlock(ctx, sourceBlock.BlockNo-1)
		if err != nil {
			return nil, fmt.Errorf("block: walk source back: %w", err)
		}
		targetBlock, err = target.GetBlock(ctx, targetBlock.BlockNo-1)
		if err != nil {
			return nil, fmt.Errorf("block: walk target back: %w", err)
		}
	}

	return sourceBlock, nil
}

// Sync brings target up to date with source: blocks from the common
// ancestor (exclusive) to source's head (inclusive) are verified in order
// and replayed into target, along with every object their patches add.
func Sync(ctx context.Context, source, target Vault) (*Result, error) {
	sourceHead, err := source.GetHeadBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: source head: %v", ErrMissingBlock, err)
	}
	targetHead, err := target.GetHeadBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: target head: %v", ErrMissingBlock, err)
	}

	if sourceHead.BlockHash == targetHead.BlockHash {
		return &Result{}, nil
	}

	ancestor, err := FindCommonAncestor(ctx, source, target)
	if err != nil {
		return nil, err
	}

	blocks, err := source.GetBlockRange(ctx, ancestor.BlockNo+1, sourceHead.BlockNo)
	if err != nil {
		return nil, fmt.Errorf("%w: range from %d: %v", ErrMissingBlock, ancestor.BlockNo+1, err)
	}

	prevHash := ancestor.BlockHash
	var totalObjects int

	for _, header := range blocks {
		if err := Verify(header, prevHash); err != nil {
			return nil, err
		}

		patch, err := source.GetPatch(ctx, header.Links.Patch)
		if err != nil {
			return nil, fmt.Errorf("%w: patch for block %d: %v", ErrMissingBlock, header.BlockNo, err)
		}

		for _, id := range patch.AddedCIDs {
			data, err := source.GetObject(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("%w: object %s for block %d: %v", ErrMissingBlock, id, header.BlockNo, err)
			}
			if _, err := target.PutObject(ctx, data); err != nil {
				return nil, fmt.Errorf("%w: store object %s for block %d: %v", ErrMissingBlock, id, header.BlockNo, err)
			}
			totalObjects++
		}

		if err := target.PutBlock(ctx, header); err != nil {
			return nil, fmt.Errorf("%w: store block %d: %v", ErrMissingBlock, header.BlockNo, err)
		}

		prevHash = header.BlockHash
	}

	if len(blocks) > 0 {
		if err := target.SetHead(ctx, blocks[len(blocks)-1].BlockHash); err != nil {
			return nil, fmt.Errorf("%w: set head: %v", ErrMissingBlock, err)
		}
	}

	return &Result{TransferredBlocks: len(blocks), TransferredObjects: totalObjects}, nil
}
