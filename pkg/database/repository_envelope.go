// Copyright 2025 Certen Protocol
//
// Envelope Repository - append-only storage of admitted envelopes

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EnvelopeRepository handles envelope_records operations.
type EnvelopeRepository struct {
	client *Client
}

// NewEnvelopeRepository creates a new envelope repository.
func NewEnvelopeRepository(client *Client) *EnvelopeRepository {
	return &EnvelopeRepository{client: client}
}

// Append inserts a new envelope record, allocating its leaf index from the
// vakya tree's own sequence.
func (r *EnvelopeRepository) Append(ctx context.Context, rec *EnvelopeRecord) (*EnvelopeRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO envelope_records (
			id, envelope_hash, actor_id, resource_id, action, trace_id, leaf_index, payload_json
		) VALUES ($1, $2, $3, $4, $5, $6, nextval('vakya_leaf_seq'), $7)
		RETURNING leaf_index, created_at`

	err := r.client.QueryRowContext(ctx, query,
		rec.ID, rec.EnvelopeHash, rec.ActorID, rec.ResourceID, rec.Action, rec.TraceID, []byte(rec.PayloadJSON),
	).Scan(&rec.LeafIndex, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append envelope record: %w", err)
	}
	return rec, nil
}

// Get retrieves an envelope record by id.
func (r *EnvelopeRepository) Get(ctx context.Context, id uuid.UUID) (*EnvelopeRecord, error) {
	query := `
		SELECT id, envelope_hash, actor_id, resource_id, action, trace_id, leaf_index, created_at, payload_json
		FROM envelope_records
		WHERE id = $1`

	rec := &EnvelopeRecord{}
	var payload []byte
	err := r.client.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.EnvelopeHash, &rec.ActorID, &rec.ResourceID, &rec.Action, &rec.TraceID,
		&rec.LeafIndex, &rec.CreatedAt, &payload,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEnvelopeRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope record: %w", err)
	}
	rec.PayloadJSON = json.RawMessage(payload)
	return rec, nil
}

// LeavesFrom returns leaf_index/payload_json pairs for every envelope record
// with leaf_index >= from, ordered ascending.
func (r *EnvelopeRepository) LeavesFrom(ctx context.Context, from int64) ([]LeafRow, error) {
	return queryLeavesFrom(ctx, r.client, "envelope_records", from)
}

// Count returns the total number of envelope records (for audit/reporting,
// not part of the leaf rebuild path).
func (r *EnvelopeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.client.QueryRowContext(ctx, `SELECT COUNT(*) FROM envelope_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count envelope records: %w", err)
	}
	return count, nil
}
