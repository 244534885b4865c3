// Copyright 2025 Certen Protocol
//
// Checkpoint Repository - signed snapshots of the evidence log's tree

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CheckpointRepository handles merkle_checkpoints operations.
type CheckpointRepository struct {
	client *Client
}

// NewCheckpointRepository creates a new checkpoint repository.
func NewCheckpointRepository(client *Client) *CheckpointRepository {
	return &CheckpointRepository{client: client}
}

// Create inserts a new checkpoint, filling in id and created_at.
func (r *CheckpointRepository) Create(ctx context.Context, cp *MerkleCheckpoint) (*MerkleCheckpoint, error) {
	query := `
		INSERT INTO merkle_checkpoints (
			tree_kind, tree_size, root_hash, prev_checkpoint_id, signature
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.client.QueryRowContext(ctx, query,
		cp.TreeKind, cp.TreeSize, cp.RootHash, cp.PrevCheckpointID, cp.Signature,
	).Scan(&cp.ID, &cp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create merkle checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the most recent checkpoint for a tree kind, or
// ErrCheckpointNotFound if none exists yet.
func (r *CheckpointRepository) Latest(ctx context.Context, treeKind string) (*MerkleCheckpoint, error) {
	query := `
		SELECT id, tree_kind, tree_size, root_hash, created_at, prev_checkpoint_id, signature
		FROM merkle_checkpoints
		WHERE tree_kind = $1
		ORDER BY tree_size DESC
		LIMIT 1`

	cp := &MerkleCheckpoint{}
	err := r.client.QueryRowContext(ctx, query, treeKind).Scan(
		&cp.ID, &cp.TreeKind, &cp.TreeSize, &cp.RootHash, &cp.CreatedAt, &cp.PrevCheckpointID, &cp.Signature,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}
	return cp, nil
}

// AtSize returns the checkpoint recorded at exactly treeSize, for
// consistency-proof lookups against a historical checkpoint.
func (r *CheckpointRepository) AtSize(ctx context.Context, treeKind string, treeSize int64) (*MerkleCheckpoint, error) {
	query := `
		SELECT id, tree_kind, tree_size, root_hash, created_at, prev_checkpoint_id, signature
		FROM merkle_checkpoints
		WHERE tree_kind = $1 AND tree_size = $2`

	cp := &MerkleCheckpoint{}
	err := r.client.QueryRowContext(ctx, query, treeKind, treeSize).Scan(
		&cp.ID, &cp.TreeKind, &cp.TreeSize, &cp.RootHash, &cp.CreatedAt, &cp.PrevCheckpointID, &cp.Signature,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint at size %d: %w", treeSize, err)
	}
	return cp, nil
}
