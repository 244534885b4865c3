// Copyright 2025 Certen Protocol
//
// Merkle Node Repository - cache of complete-subtree internal node hashes

package database

import (
	"context"
	"database/sql"
	"fmt"
)

// MerkleNodeRepository handles merkle_nodes operations. Every row is a
// cache entry: the full table can be dropped and rebuilt from the leaf
// tables without losing information.
type MerkleNodeRepository struct {
	client *Client
}

// NewMerkleNodeRepository creates a new merkle node repository.
func NewMerkleNodeRepository(client *Client) *MerkleNodeRepository {
	return &MerkleNodeRepository{client: client}
}

// Upsert stores or replaces the cached hash for (treeKind, level, index).
func (r *MerkleNodeRepository) Upsert(ctx context.Context, node *MerkleNode) error {
	query := `
		INSERT INTO merkle_nodes (tree_kind, level, index, hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tree_kind, level, index) DO UPDATE SET hash = EXCLUDED.hash`

	_, err := r.client.ExecContext(ctx, query, node.TreeKind, node.Level, node.Index, node.Hash)
	if err != nil {
		return fmt.Errorf("failed to upsert merkle node: %w", err)
	}
	return nil
}

// UpsertBatch stores a batch of nodes in one transaction.
func (r *MerkleNodeRepository) UpsertBatch(ctx context.Context, nodes []*MerkleNode) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merkle_nodes (tree_kind, level, index, hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tree_kind, level, index) DO UPDATE SET hash = EXCLUDED.hash`)
	if err != nil {
		return fmt.Errorf("failed to prepare merkle node upsert: %w", err)
	}
	defer stmt.Close()

	for _, node := range nodes {
		if _, err := stmt.ExecContext(ctx, node.TreeKind, node.Level, node.Index, node.Hash); err != nil {
			return fmt.Errorf("failed to upsert merkle node: %w", err)
		}
	}
	return tx.Commit()
}

// Get retrieves a single cached node, or sql.ErrNoRows if it hasn't been
// computed and cached yet.
func (r *MerkleNodeRepository) Get(ctx context.Context, treeKind string, level int, index int64) (*MerkleNode, error) {
	query := `SELECT tree_kind, level, index, hash FROM merkle_nodes WHERE tree_kind = $1 AND level = $2 AND index = $3`

	node := &MerkleNode{}
	err := r.client.QueryRowContext(ctx, query, treeKind, level, index).Scan(
		&node.TreeKind, &node.Level, &node.Index, &node.Hash,
	)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merkle node: %w", err)
	}
	return node, nil
}

// DeleteFrom removes cached nodes at level whose index is >= fromIndex,
// used when leaves are replaced (e.g. a rebuild after detected corruption)
// rather than purely appended.
func (r *MerkleNodeRepository) DeleteFrom(ctx context.Context, treeKind string, level int, fromIndex int64) error {
	query := `DELETE FROM merkle_nodes WHERE tree_kind = $1 AND level = $2 AND index >= $3`
	_, err := r.client.ExecContext(ctx, query, treeKind, level, fromIndex)
	if err != nil {
		return fmt.Errorf("failed to delete merkle nodes: %w", err)
	}
	return nil
}
