// Copyright 2025 Certen Protocol

package effect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// NotExistsHash marks a Snapshot representing the absence of a resource,
// e.g. the "before" state of a create or the "after" state of a delete.
const NotExistsHash = "NOT_EXISTS"

// Snapshot is the observed state of a target resource at one point in
// time, identified by its content hash.
type Snapshot struct {
	Hash        string         `json:"hash"`
	Size        *uint64        `json:"size,omitempty"`
	ContentType string         `json:"content_type,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Properties  map[string]any `json:"properties"`
}

// SnapshotFromBytes hashes data with SHA-256 and records its length.
func SnapshotFromBytes(data []byte) Snapshot {
	sum := sha256.Sum256(data)
	size := uint64(len(data))
	return Snapshot{
		Hash:       hex.EncodeToString(sum[:]),
		Size:       &size,
		Timestamp:  time.Now().UTC(),
		Properties: map[string]any{},
	}
}

// SnapshotFromJSON hashes value's canonical JSON encoding and keeps the
// value itself so small states can be inspected directly.
func SnapshotFromJSON(value any) (Snapshot, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Snapshot{}, err
	}
	sum := sha256.Sum256(raw)
	size := uint64(len(raw))
	return Snapshot{
		Hash:        hex.EncodeToString(sum[:]),
		Size:        &size,
		ContentType: "application/json",
		Content:     raw,
		Timestamp:   time.Now().UTC(),
		Properties:  map[string]any{},
	}, nil
}

// SnapshotFromHash records only a hash and size, for content too large to
// capture inline.
func SnapshotFromHash(hash string, size uint64) Snapshot {
	return Snapshot{Hash: hash, Size: &size, Timestamp: time.Now().UTC(), Properties: map[string]any{}}
}

// SnapshotNotExists represents the absence of the target resource.
func SnapshotNotExists() Snapshot {
	return Snapshot{Hash: NotExistsHash, Timestamp: time.Now().UTC(), Properties: map[string]any{}}
}

func (s Snapshot) WithContentType(ct string) Snapshot { s.ContentType = ct; return s }

func (s Snapshot) WithProperty(key string, value any) Snapshot {
	if s.Properties == nil {
		s.Properties = map[string]any{}
	}
	s.Properties[key] = value
	return s
}
