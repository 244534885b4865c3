// Copyright 2025 Certen Protocol
//
// Receipt Repository - append-only storage of gateway decision receipts

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ReceiptRepository handles receipt_records operations.
type ReceiptRepository struct {
	client *Client
}

// NewReceiptRepository creates a new receipt repository.
func NewReceiptRepository(client *Client) *ReceiptRepository {
	return &ReceiptRepository{client: client}
}

// Append inserts a new receipt record, allocating its leaf index from the
// receipt tree's own sequence.
func (r *ReceiptRepository) Append(ctx context.Context, rec *ReceiptRecord) (*ReceiptRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `
		INSERT INTO receipt_records (
			id, envelope_id, reason_code, leaf_index, payload_json
		) VALUES ($1, $2, $3, nextval('receipt_leaf_seq'), $4)
		RETURNING leaf_index, created_at`

	err := r.client.QueryRowContext(ctx, query,
		rec.ID, rec.EnvelopeID, rec.ReasonCode, []byte(rec.PayloadJSON),
	).Scan(&rec.LeafIndex, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append receipt record: %w", err)
	}
	return rec, nil
}

// LeavesFrom returns leaf_index/payload_json pairs for every receipt record
// with leaf_index >= from, ordered ascending.
func (r *ReceiptRepository) LeavesFrom(ctx context.Context, from int64) ([]LeafRow, error) {
	return queryLeavesFrom(ctx, r.client, "receipt_records", from)
}

// GetByEnvelope retrieves the receipt recorded for envelopeID.
func (r *ReceiptRepository) GetByEnvelope(ctx context.Context, envelopeID uuid.UUID) (*ReceiptRecord, error) {
	query := `
		SELECT id, envelope_id, reason_code, leaf_index, created_at, payload_json
		FROM receipt_records
		WHERE envelope_id = $1`

	rec := &ReceiptRecord{}
	var payload []byte
	err := r.client.QueryRowContext(ctx, query, envelopeID).Scan(
		&rec.ID, &rec.EnvelopeID, &rec.ReasonCode, &rec.LeafIndex, &rec.CreatedAt, &payload,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReceiptRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt record: %w", err)
	}
	rec.PayloadJSON = json.RawMessage(payload)
	return rec, nil
}
