// Copyright 2025 Certen Protocol
//
// Effect Repository - append-only storage of captured adapter effects

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EffectRepository handles effect_records operations.
type EffectRepository struct {
	client *Client
}

// NewEffectRepository creates a new effect repository.
func NewEffectRepository(client *Client) *EffectRepository {
	return &EffectRepository{client: client}
}

// Append inserts a new effect record, allocating its leaf index from the
// effect tree's own sequence.
func (r *EffectRepository) Append(ctx context.Context, rec *EffectRecord) (*EffectRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO effect_records (
			id, envelope_id, bucket, target_resource_id, leaf_index, payload_json
		) VALUES ($1, $2, $3, $4, nextval('effect_leaf_seq'), $5)
		RETURNING leaf_index, created_at`

	err := r.client.QueryRowContext(ctx, query,
		rec.ID, rec.EnvelopeID, rec.Bucket, rec.TargetResourceID, []byte(rec.PayloadJSON),
	).Scan(&rec.LeafIndex, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append effect record: %w", err)
	}
	return rec, nil
}

// LeavesFrom returns leaf_index/payload_json pairs for every effect record
// with leaf_index >= from, ordered ascending.
func (r *EffectRepository) LeavesFrom(ctx context.Context, from int64) ([]LeafRow, error) {
	return queryLeavesFrom(ctx, r.client, "effect_records", from)
}

// ListByEnvelope returns every effect recorded for envelopeID.
func (r *EffectRepository) ListByEnvelope(ctx context.Context, envelopeID uuid.UUID) ([]*EffectRecord, error) {
	query := `
		SELECT id, envelope_id, bucket, target_resource_id, leaf_index, created_at, payload_json
		FROM effect_records
		WHERE envelope_id = $1
		ORDER BY leaf_index ASC`

	rows, err := r.client.QueryContext(ctx, query, envelopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query effect records: %w", err)
	}
	defer rows.Close()

	var out []*EffectRecord
	for rows.Next() {
		rec := &EffectRecord{}
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EnvelopeID, &rec.Bucket, &rec.TargetResourceID,
			&rec.LeafIndex, &rec.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan effect record: %w", err)
		}
		rec.PayloadJSON = json.RawMessage(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get retrieves an effect record by id.
func (r *EffectRepository) Get(ctx context.Context, id uuid.UUID) (*EffectRecord, error) {
	query := `
		SELECT id, envelope_id, bucket, target_resource_id, leaf_index, created_at, payload_json
		FROM effect_records
		WHERE id = $1`

	rec := &EffectRecord{}
	var payload []byte
	err := r.client.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.EnvelopeID, &rec.Bucket, &rec.TargetResourceID, &rec.LeafIndex, &rec.CreatedAt, &payload,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEffectRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get effect record: %w", err)
	}
	rec.PayloadJSON = json.RawMessage(payload)
	return rec, nil
}
