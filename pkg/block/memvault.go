// Copyright 2025 Certen Protocol

package block

import (
	"context"
	"fmt"
	"sync"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
)

// MemoryVault is an in-memory Vault, used for tests and as the simplest
// possible standalone vault instance.
type MemoryVault struct {
	mu      sync.RWMutex
	store   cas.Store
	blocks  map[uint64]*cas.BlockHeader
	patches map[cid.Cid]*cas.VaultPatch
	head    [32]byte
	hasHead bool
}

// NewMemoryVault creates an empty vault backed by store for object data.
func NewMemoryVault(store cas.Store) *MemoryVault {
	return &MemoryVault{
		store:   store,
		blocks:  make(map[uint64]*cas.BlockHeader),
		patches: make(map[cid.Cid]*cas.VaultPatch),
	}
}

func (v *MemoryVault) GetHeadBlock(ctx context.Context) (*cas.BlockHeader, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.hasHead {
		return nil, fmt.Errorf("block: vault has no head")
	}
	for _, b := range v.blocks {
		if b.BlockHash == v.head {
			return b, nil
		}
	}
	return nil, fmt.Errorf("block: head block not found")
}

func (v *MemoryVault) GetBlock(ctx context.Context, blockNo uint64) (*cas.BlockHeader, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	b, ok := v.blocks[blockNo]
	if !ok {
		return nil, fmt.Errorf("block: no block %d", blockNo)
	}
	return b, nil
}

func (v *MemoryVault) GetBlockRange(ctx context.Context, from, to uint64) ([]*cas.BlockHeader, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []*cas.BlockHeader
	for i := from; i <= to; i++ {
		b, ok := v.blocks[i]
		if !ok {
			return nil, fmt.Errorf("block: no block %d", i)
		}
		out = append(out, b)
	}
	return out, nil
}

func (v *MemoryVault) GetPatch(ctx context.Context, id cid.Cid) (*cas.VaultPatch, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.patches[id]
	if !ok {
		return nil, fmt.Errorf("block: no patch %s", id)
	}
	return p, nil
}

func (v *MemoryVault) GetObject(ctx context.Context, id cid.Cid) ([]byte, error) {
	return v.store.GetBytes(ctx, id)
}

func (v *MemoryVault) PutObject(ctx context.Context, data []byte) (cid.Cid, error) {
	return v.store.PutBytes(ctx, data)
}

func (v *MemoryVault) PutBlock(ctx context.Context, header *cas.BlockHeader) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.blocks[header.BlockNo] = header
	return nil
}

// PutPatch stores a patch so later GetPatch calls (by tests, or by a peer
// pulling from this vault) can resolve it.
func (v *MemoryVault) PutPatch(ctx context.Context, patch *cas.VaultPatch) (cid.Cid, error) {
	id, err := cas.Put(ctx, v.store, patch)
	if err != nil {
		return cid.Undef, err
	}
	v.mu.Lock()
	v.patches[id] = patch
	v.mu.Unlock()
	return id, nil
}

func (v *MemoryVault) SetHead(ctx context.Context, blockHash [32]byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.head = blockHash
	v.hasHead = true
	return nil
}
