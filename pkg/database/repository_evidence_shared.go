// Copyright 2025 Certen Protocol
//
// Shared helpers for the evidence log repositories. envelope_records,
// effect_records and receipt_records each allocate leaf_index from their
// own sequence (vakya_leaf_seq / effect_leaf_seq / receipt_leaf_seq) and
// feed a separate Merkle tree; queryLeavesFrom reads one table's leaves
// back in index order to rebuild that table's own tree.

package database

import (
	"context"
	"encoding/json"
	"fmt"
)

// LeafRow is one row of a leaf-bearing table, reduced to what the evidence
// log's merkle tree needs to rebuild itself: position and canonical payload.
type LeafRow struct {
	LeafIndex   int64
	PayloadJSON json.RawMessage
}

func queryLeavesFrom(ctx context.Context, client *Client, table string, from int64) ([]LeafRow, error) {
	query := fmt.Sprintf(`SELECT leaf_index, payload_json FROM %s WHERE leaf_index >= $1 ORDER BY leaf_index ASC`, table)

	rows, err := client.QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves from %s: %w", table, err)
	}
	defer rows.Close()

	var out []LeafRow
	for rows.Next() {
		var row LeafRow
		var payload []byte
		if err := rows.Scan(&row.LeafIndex, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan leaf row from %s: %w", table, err)
		}
		row.PayloadJSON = json.RawMessage(payload)
		out = append(out, row)
	}
	return out, rows.Err()
}
