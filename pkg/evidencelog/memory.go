// Copyright 2025 Certen Protocol

package evidencelog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/merkle"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

var _ Store = (*MemoryStore)(nil)

// treeState is one tree kind's leaf stream and checkpoint history.
type treeState struct {
	leaves      [][]byte
	checkpoints []*Checkpoint
}

// MemoryStore is an in-process Store, used in tests and by a gateway started
// without a database, where evidence-log semantics are needed without a
// Postgres dependency. It keeps three independent treeStates, one
// per TreeKind, so leaf indices within a kind stay dense and monotone.
type MemoryStore struct {
	mu    sync.Mutex
	trees map[TreeKind]*treeState
}

// NewMemoryStore returns an empty in-memory evidence log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trees: map[TreeKind]*treeState{
			TreeVakya:   {},
			TreeEffect:  {},
			TreeReceipt: {},
		},
	}
}

func (s *MemoryStore) append(kind TreeKind, payload []byte) *Appended {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trees[kind]
	idx := int64(len(t.leaves))
	t.leaves = append(t.leaves, payload)
	return &Appended{ID: uuid.New(), LeafIndex: idx, LeafHash: leafHash(payload)}
}

func (s *MemoryStore) AppendEnvelope(ctx context.Context, env *envelope.Envelope) (*Appended, error) {
	payload, err := canonicalPayload(env)
	if err != nil {
		return nil, err
	}
	return s.append(TreeVakya, payload), nil
}

func (s *MemoryStore) AppendEffect(ctx context.Context, envelopeID envelope.ID, eff *effect.Captured) (*Appended, error) {
	payload, err := canonicalPayload(eff)
	if err != nil {
		return nil, err
	}
	return s.append(TreeEffect, payload), nil
}

func (s *MemoryStore) AppendReceipt(ctx context.Context, receipt *envelope.Receipt) (*Appended, error) {
	payload, err := canonicalPayload(receipt)
	if err != nil {
		return nil, err
	}
	return s.append(TreeReceipt, payload), nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, actorID, action, outcome string, detail any) (*AuditAppended, error) {
	if _, err := marshalDetail(detail); err != nil {
		return nil, err
	}
	return &AuditAppended{ID: uuid.New(), CreatedAt: time.Now().UTC()}, nil
}

func (s *MemoryStore) LeafCount(ctx context.Context, kind TreeKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.trees[kind].leaves)), nil
}

func (s *MemoryStore) buildTree(kind TreeKind) (*merkle.Tree, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trees[kind]
	if len(t.leaves) == 0 {
		return nil, 0, nil
	}
	hashes := make([][]byte, len(t.leaves))
	for i, payload := range t.leaves {
		hashes[i] = leafHash(payload)
	}
	tree, err := merkle.BuildTree(hashes)
	if err != nil {
		return nil, 0, fmt.Errorf("evidencelog: build %s tree: %w", kind, err)
	}
	return tree, len(hashes), nil
}

func (s *MemoryStore) Checkpoint(ctx context.Context, kind TreeKind, kp *signing.KeyPair) (*Checkpoint, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
	tree, n, err := s.buildTree(kind)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("evidencelog: cannot checkpoint an empty %s tree", kind)
	}

	cp := &Checkpoint{TreeKind: kind, TreeSize: int64(n), RootHash: tree.Root(), CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	t := s.trees[kind]
	if len(t.checkpoints) > 0 {
		prevID := int64(len(t.checkpoints) - 1)
		cp.PrevCheckpointID = &prevID
	}
	s.mu.Unlock()

	if err := signCheckpoint(cp, kp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cp.ID = int64(len(t.checkpoints))
	t.checkpoints = append(t.checkpoints, cp)
	s.mu.Unlock()

	return cp, nil
}

func (s *MemoryStore) LatestCheckpoint(ctx context.Context, kind TreeKind) (*Checkpoint, bool, error) {
	if !kind.Valid() {
		return nil, false, fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trees[kind]
	if len(t.checkpoints) == 0 {
		return nil, false, nil
	}
	return t.checkpoints[len(t.checkpoints)-1], true, nil
}

func (s *MemoryStore) InclusionProof(ctx context.Context, kind TreeKind, leafIndex int64) (*merkle.InclusionProof, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
	tree, n, err := s.buildTree(kind)
	if err != nil {
		return nil, err
	}
	if tree == nil || leafIndex < 0 || int(leafIndex) >= n {
		return nil, fmt.Errorf("evidencelog: leaf index %d out of range for %s tree", leafIndex, kind)
	}
	return tree.GenerateProof(int(leafIndex))
}
