// Copyright 2025 Certen Protocol

package cas

import (
	"context"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	cid "github.com/ipfs/go-cid"
)

// DiskStore is a goleveldb-backed Store rooted at a data directory,
// persisting the vault's content-addressed objects across restarts. It
// wraps a cometbft-db handle the same way pkg/kvdb's KVAdapter does, but
// exposes it as a cas.Store rather than a plain Get/Set key-value API.
type DiskStore struct {
	db dbm.DB
}

// NewDiskStore opens (or creates) a goleveldb database named "vault-cas"
// under dir.
func NewDiskStore(dir string) (*DiskStore, error) {
	db, err := dbm.NewDB("vault-cas", dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("cas: open disk store at %s: %w", dir, err)
	}
	return &DiskStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *DiskStore) Close() error {
	return s.db.Close()
}

// GetBytes implements Store.
func (s *DiskStore) GetBytes(ctx context.Context, id cid.Cid) ([]byte, error) {
	data, err := s.db.Get(id.Bytes())
	if err != nil {
		return nil, fmt.Errorf("cas: get %s: %w", id, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return data, nil
}

// PutBytes implements Store.
func (s *DiskStore) PutBytes(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	if err := s.db.SetSync(id.Bytes(), data); err != nil {
		return cid.Undef, fmt.Errorf("cas: put %s: %w", id, err)
	}
	return id, nil
}

// Contains implements Store.
func (s *DiskStore) Contains(ctx context.Context, id cid.Cid) (bool, error) {
	ok, err := s.db.Has(id.Bytes())
	if err != nil {
		return false, fmt.Errorf("cas: has %s: %w", id, err)
	}
	return ok, nil
}

// Delete implements Store.
func (s *DiskStore) Delete(ctx context.Context, id cid.Cid) error {
	if err := s.db.DeleteSync(id.Bytes()); err != nil {
		return fmt.Errorf("cas: delete %s: %w", id, err)
	}
	return nil
}
