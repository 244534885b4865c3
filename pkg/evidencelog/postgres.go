// Copyright 2025 Certen Protocol

package evidencelog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/database"
	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/merkle"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore is the durable evidence log backed by pkg/database. It
// maintains three independent Merkle trees, one per TreeKind, each rebuilt
// from its own table's leaves rather than a merged stream.
type PostgresStore struct {
	client *database.Client
	repos  *database.Repositories
}

// NewPostgresStore wraps an already-connected database client.
func NewPostgresStore(client *database.Client) *PostgresStore {
	return &PostgresStore{client: client, repos: database.NewRepositories(client)}
}

func (s *PostgresStore) AppendEnvelope(ctx context.Context, env *envelope.Envelope) (*Appended, error) {
	payload, err := canonicalPayload(env)
	if err != nil {
		return nil, err
	}
	envHash, err := env.CanonicalHash()
	if err != nil {
		return nil, fmt.Errorf("evidencelog: hash envelope: %w", err)
	}
	envUUID, err := parseEnvelopeUUID(env.ID)
	if err != nil {
		return nil, err
	}

	rec := &database.EnvelopeRecord{
		ID:           envUUID,
		EnvelopeHash: envHash,
		ActorID:      string(env.Actor.PrincipalID),
		ResourceID:   string(env.Resource.ID),
		Action:       env.Action.Name,
		PayloadJSON:  payload,
	}
	if env.Meta.Trace != nil {
		rec.TraceID.String = env.Meta.Trace.TraceID
		rec.TraceID.Valid = env.Meta.Trace.TraceID != ""
	}

	saved, err := s.repos.Envelopes.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &Appended{ID: saved.ID, LeafIndex: saved.LeafIndex, LeafHash: leafHash(payload)}, nil
}

func (s *PostgresStore) AppendEffect(ctx context.Context, envelopeID envelope.ID, eff *effect.Captured) (*Appended, error) {
	payload, err := canonicalPayload(eff)
	if err != nil {
		return nil, err
	}

	envUUID, err := parseEnvelopeUUID(envelopeID)
	if err != nil {
		return nil, err
	}

	rec := &database.EffectRecord{
		EnvelopeID:       envUUID,
		Bucket:           string(eff.Bucket),
		TargetResourceID: eff.Target,
		PayloadJSON:      payload,
	}
	saved, err := s.repos.Effects.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &Appended{ID: saved.ID, LeafIndex: saved.LeafIndex, LeafHash: leafHash(payload)}, nil
}

func (s *PostgresStore) AppendReceipt(ctx context.Context, receipt *envelope.Receipt) (*Appended, error) {
	payload, err := canonicalPayload(receipt)
	if err != nil {
		return nil, err
	}

	envUUID, err := parseEnvelopeUUID(receipt.EnvelopeID)
	if err != nil {
		return nil, err
	}

	rec := &database.ReceiptRecord{
		EnvelopeID:  envUUID,
		ReasonCode:  string(receipt.Reason),
		PayloadJSON: payload,
	}
	saved, err := s.repos.Receipts.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &Appended{ID: saved.ID, LeafIndex: saved.LeafIndex, LeafHash: leafHash(payload)}, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, actorID, action, outcome string, detail any) (*AuditAppended, error) {
	detailJSON, err := marshalDetail(detail)
	if err != nil {
		return nil, err
	}
	entry := &database.AuditLogEntry{
		ActorID:    actorID,
		Action:     action,
		Outcome:    outcome,
		DetailJSON: detailJSON,
	}
	saved, err := s.repos.Audit.Record(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &AuditAppended{ID: saved.ID, CreatedAt: saved.CreatedAt}, nil
}

// dbTreeKind maps an evidencelog.TreeKind to the tree_kind value stored in
// merkle_checkpoints/merkle_nodes.
func dbTreeKind(kind TreeKind) (string, error) {
	switch kind {
	case TreeVakya:
		return database.TreeKindVakya, nil
	case TreeEffect:
		return database.TreeKindEffect, nil
	case TreeReceipt:
		return database.TreeKindReceipt, nil
	default:
		return "", fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
}

// leavesFrom reads kind's own leaf table, starting at leaf index from.
func (s *PostgresStore) leavesFrom(ctx context.Context, kind TreeKind, from int64) ([]database.LeafRow, error) {
	switch kind {
	case TreeVakya:
		return s.repos.Envelopes.LeavesFrom(ctx, from)
	case TreeEffect:
		return s.repos.Effects.LeavesFrom(ctx, from)
	case TreeReceipt:
		return s.repos.Receipts.LeavesFrom(ctx, from)
	default:
		return nil, fmt.Errorf("evidencelog: unknown tree kind %q", kind)
	}
}

func (s *PostgresStore) LeafCount(ctx context.Context, kind TreeKind) (int64, error) {
	leaves, err := s.leavesFrom(ctx, kind, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(leaves)), nil
}

// buildTree rebuilds the full RFC 6962 tree for kind from every leaf its
// own table has recorded so far. The evidence log appends in modest volume
// relative to a request pipeline (one leaf per envelope/effect/receipt, not
// per byte moved), so a full rebuild per checkpoint is simpler than
// maintaining an incremental frontier and is what spec.md's rebuild rule
// calls for.
func (s *PostgresStore) buildTree(ctx context.Context, kind TreeKind) (*merkle.Tree, []database.LeafRow, error) {
	rows, err := s.leavesFrom(ctx, kind, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, rows, nil
	}
	leaves := make([][]byte, len(rows))
	for i, row := range rows {
		leaves[i] = leafHash(row.PayloadJSON)
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, nil, fmt.Errorf("evidencelog: build %s tree: %w", kind, err)
	}
	return tree, rows, nil
}

func (s *PostgresStore) Checkpoint(ctx context.Context, kind TreeKind, kp *signing.KeyPair) (*Checkpoint, error) {
	dbKind, err := dbTreeKind(kind)
	if err != nil {
		return nil, err
	}
	tree, rows, err := s.buildTree(ctx, kind)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("evidencelog: cannot checkpoint an empty %s tree", kind)
	}

	cp := &Checkpoint{TreeKind: kind, TreeSize: int64(len(rows)), RootHash: tree.Root()}

	prev, err := s.repos.Checkpoints.Latest(ctx, dbKind)
	if err != nil && err != database.ErrCheckpointNotFound {
		return nil, err
	}
	if err == nil {
		cp.PrevCheckpointID = &prev.ID
	}

	if err := signCheckpoint(cp, kp); err != nil {
		return nil, err
	}

	var prevID sql.NullInt64
	if cp.PrevCheckpointID != nil {
		prevID = sql.NullInt64{Int64: *cp.PrevCheckpointID, Valid: true}
	}
	saved, err := s.repos.Checkpoints.Create(ctx, &database.MerkleCheckpoint{
		TreeKind:         dbKind,
		TreeSize:         cp.TreeSize,
		RootHash:         hex.EncodeToString(cp.RootHash),
		PrevCheckpointID: prevID,
		Signature:        cp.Signature,
	})
	if err != nil {
		return nil, err
	}
	cp.ID = saved.ID
	cp.CreatedAt = saved.CreatedAt

	if err := s.cacheNodes(ctx, dbKind, rows); err != nil {
		return nil, err
	}
	return cp, nil
}

// cacheNodes stores the hash of every complete subtree the current leaf set
// contains, per level, so a future rebuild can skip re-hashing spans that
// haven't changed. Level 0 holds the leaf hashes themselves.
func (s *PostgresStore) cacheNodes(ctx context.Context, dbKind string, rows []database.LeafRow) error {
	n := len(rows)
	leaves := make([][32]byte, n)
	for i, row := range rows {
		copy(leaves[i][:], leafHash(row.PayloadJSON))
	}

	var nodes []*database.MerkleNode
	for level := 0; (1 << level) <= n; level++ {
		span := 1 << level
		for index := 0; (index+1)*span <= n; index++ {
			h := completeSubtreeHash(leaves, index*span, span)
			nodes = append(nodes, &database.MerkleNode{
				TreeKind: dbKind,
				Level:    level,
				Index:    int64(index),
				Hash:     hex.EncodeToString(h[:]),
			})
		}
	}
	return s.repos.MerkleNodes.UpsertBatch(ctx, nodes)
}

// completeSubtreeHash computes the RFC 6962 hash of leaves[start:start+span]
// where span is a power of two, by repeated pairwise combination.
func completeSubtreeHash(leaves [][32]byte, start, span int) [32]byte {
	if span == 1 {
		return leaves[start]
	}
	half := span / 2
	left := completeSubtreeHash(leaves, start, half)
	right := completeSubtreeHash(leaves, start+half, half)
	return canon.InternalHash(left, right)
}

// VerifyCachedRoot recomputes the top-level cached node for kind's tree at
// size n (the largest complete subtree: the first 2^k leaves, for the
// largest power of two 2^k not exceeding n) and
// checks it against a live rebuild from the leaf table, catching a
// corrupted or stale merkle_nodes cache before it's trusted for proof
// generation.
func (s *PostgresStore) VerifyCachedRoot(ctx context.Context, kind TreeKind, n int) (bool, error) {
	dbKind, err := dbTreeKind(kind)
	if err != nil {
		return false, err
	}
	level, index, span := topCachedSpan(n)
	cached, err := s.repos.MerkleNodes.Get(ctx, dbKind, level, int64(index))
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	rows, err := s.leavesFrom(ctx, kind, 0)
	if err != nil {
		return false, err
	}
	if index*span+span > len(rows) {
		return false, fmt.Errorf("evidencelog: cached span exceeds available leaves")
	}
	leaves := make([][32]byte, span)
	for i := 0; i < span; i++ {
		copy(leaves[i][:], leafHash(rows[index*span+i].PayloadJSON))
	}
	recomputed := completeSubtreeHash(leaves, 0, span)
	return hex.EncodeToString(recomputed[:]) == cached.Hash, nil
}

// topCachedSpan returns the (level, index, span) of the largest complete
// subtree within the first n leaves, the node cacheNodes always populates
// last for a given tree size.
func topCachedSpan(n int) (level, index, span int) {
	span = 1
	for span*2 <= n {
		span *= 2
		level++
	}
	return level, 0, span
}

func (s *PostgresStore) LatestCheckpoint(ctx context.Context, kind TreeKind) (*Checkpoint, bool, error) {
	dbKind, err := dbTreeKind(kind)
	if err != nil {
		return nil, false, err
	}
	cp, err := s.repos.Checkpoints.Latest(ctx, dbKind)
	if err == database.ErrCheckpointNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	root, err := hex.DecodeString(cp.RootHash)
	if err != nil {
		return nil, false, fmt.Errorf("evidencelog: decode root hash: %w", err)
	}
	out := &Checkpoint{ID: cp.ID, TreeKind: kind, TreeSize: cp.TreeSize, RootHash: root, CreatedAt: cp.CreatedAt, Signature: cp.Signature}
	if cp.PrevCheckpointID.Valid {
		out.PrevCheckpointID = &cp.PrevCheckpointID.Int64
	}
	return out, true, nil
}

func (s *PostgresStore) InclusionProof(ctx context.Context, kind TreeKind, leafIndex int64) (*merkle.InclusionProof, error) {
	tree, rows, err := s.buildTree(ctx, kind)
	if err != nil {
		return nil, err
	}
	if tree == nil || leafIndex < 0 || int(leafIndex) >= len(rows) {
		return nil, fmt.Errorf("evidencelog: leaf index %d out of range for %s tree", leafIndex, kind)
	}
	return tree.GenerateProof(int(leafIndex))
}

func parseEnvelopeUUID(id envelope.ID) (uuid.UUID, error) {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("evidencelog: envelope id %q is not a uuid: %w", id, err)
	}
	return u, nil
}
