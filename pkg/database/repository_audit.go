// Copyright 2025 Certen Protocol
//
// Audit Repository - administrative/security event log, separate from the
// envelope/effect/receipt evidence chain

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AuditRepository handles audit_log operations.
type AuditRepository struct {
	client *Client
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(client *Client) *AuditRepository {
	return &AuditRepository{client: client}
}

// Record inserts a new audit log entry.
func (r *AuditRepository) Record(ctx context.Context, entry *AuditLogEntry) (*AuditLogEntry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `
		INSERT INTO audit_log (id, actor_id, action, outcome, detail_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.client.QueryRowContext(ctx, query,
		entry.ID, entry.ActorID, entry.Action, entry.Outcome, []byte(entry.DetailJSON),
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record audit log entry: %w", err)
	}
	return entry, nil
}

// ListByActor returns the most recent audit log entries for an actor.
func (r *AuditRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*AuditLogEntry, error) {
	query := `
		SELECT id, actor_id, action, outcome, created_at, detail_json
		FROM audit_log
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.client.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []*AuditLogEntry
	for rows.Next() {
		entry := &AuditLogEntry{}
		var detail []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Outcome, &entry.CreatedAt, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		entry.DetailJSON = json.RawMessage(detail)
		out = append(out, entry)
	}
	return out, rows.Err()
}
