// Copyright 2025 Certen Protocol

package cas

import (
	"context"
	"sync"

	cid "github.com/ipfs/go-cid"
)

// MemoryStore is an in-memory Store, used in tests and as the CAS backend
// for the prolly tree's own bookkeeping when no durable vault data
// directory is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[cid.Cid][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[cid.Cid][]byte)}
}

// GetBytes implements Store.
func (s *MemoryStore) GetBytes(ctx context.Context, id cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutBytes implements Store.
func (s *MemoryStore) PutBytes(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := ComputeCID(data)
	if err != nil {
		return cid.Undef, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.data[id] = stored
	return id, nil
}

// Contains implements Store.
func (s *MemoryStore) Contains(ctx context.Context, id cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[id]
	return ok, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id cid.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// CIDs returns every CID currently stored, in no particular order.
func (s *MemoryStore) CIDs() []cid.Cid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cid.Cid, 0, len(s.data))
	for c := range s.data {
		out = append(out, c)
	}
	return out
}
