// Copyright 2025 Certen Protocol
//
// Row types for the evidence log tables defined in
// migrations/001_initial_schema.sql.

package database

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EnvelopeRecord is one admitted envelope appended to the evidence log.
type EnvelopeRecord struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	EnvelopeHash  string          `db:"envelope_hash" json:"envelope_hash"`
	ActorID       string          `db:"actor_id" json:"actor_id"`
	ResourceID    string          `db:"resource_id" json:"resource_id"`
	Action        string          `db:"action" json:"action"`
	TraceID       sql.NullString  `db:"trace_id" json:"trace_id,omitempty"`
	LeafIndex     int64           `db:"leaf_index" json:"leaf_index"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	PayloadJSON   json.RawMessage `db:"payload_json" json:"payload_json"`
}

// EffectRecord is one captured effect of an envelope's execution.
type EffectRecord struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	EnvelopeID       uuid.UUID       `db:"envelope_id" json:"envelope_id"`
	Bucket           string          `db:"bucket" json:"bucket"`
	TargetResourceID string          `db:"target_resource_id" json:"target_resource_id"`
	LeafIndex        int64           `db:"leaf_index" json:"leaf_index"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	PayloadJSON      json.RawMessage `db:"payload_json" json:"payload_json"`
}

// ReceiptRecord is the gateway's signed decision receipt for one envelope.
type ReceiptRecord struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	EnvelopeID  uuid.UUID       `db:"envelope_id" json:"envelope_id"`
	ReasonCode  string          `db:"reason_code" json:"reason_code"`
	LeafIndex   int64           `db:"leaf_index" json:"leaf_index"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PayloadJSON json.RawMessage `db:"payload_json" json:"payload_json"`
}

// MerkleCheckpoint is a signed snapshot of the evidence log's RFC 6962 tree
// at a given size.
type MerkleCheckpoint struct {
	ID               int64         `db:"id" json:"id"`
	TreeKind         string        `db:"tree_kind" json:"tree_kind"`
	TreeSize         int64         `db:"tree_size" json:"tree_size"`
	RootHash         string        `db:"root_hash" json:"root_hash"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	PrevCheckpointID sql.NullInt64 `db:"prev_checkpoint_id" json:"prev_checkpoint_id,omitempty"`
	Signature        string        `db:"signature" json:"signature"`
}

// MerkleNode is one cached internal node of the evidence log's tree, keyed
// by kind, level (0 = leaves) and index within that level.
type MerkleNode struct {
	TreeKind string `db:"tree_kind" json:"tree_kind"`
	Level    int    `db:"level" json:"level"`
	Index    int64  `db:"index" json:"index"`
	Hash     string `db:"hash" json:"hash"`
}

// AuditLogEntry is one administrative or security-relevant event, separate
// from the envelope/effect/receipt evidence chain.
type AuditLogEntry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ActorID     string          `db:"actor_id" json:"actor_id"`
	Action      string          `db:"action" json:"action"`
	Outcome     string          `db:"outcome" json:"outcome"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	DetailJSON  json.RawMessage `db:"detail_json" json:"detail_json"`
}

// Tree kind values stored in merkle_checkpoints.tree_kind and
// merkle_nodes.tree_kind. Each names one of the evidence log's three
// independent Merkle trees; they are never mixed into one stream.
const (
	TreeKindVakya   = "vakya"
	TreeKindEffect  = "effect"
	TreeKindReceipt = "receipt"
)
