// Copyright 2025 Certen Protocol
//
// Package evidencelog is the append-only, Merkle-backed record of every
// envelope admitted by the gateway, the effects it produced, and the
// receipt that closed it out. It wraps pkg/database's repositories and
// pkg/merkle's RFC 6962 tree: every append assigns a leaf index, and a
// checkpoint periodically signs the current root over the leaves recorded
// so far.
//
// The log is three independent trees, one per TreeKind (vakya, effect,
// receipt), each with its own leaf index and checkpoint history. They are
// never merged into one interleaved stream: a consumer verifying, say, the
// effect tree's inclusion proofs must not need to know anything about how
// many envelopes or receipts exist.
package evidencelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/merkle"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// TreeKind names one of the evidence log's three independent Merkle trees.
// Each kind carries its own leaf stream with a dense, monotone leaf index —
// a gap in a tree's index sequence is a fatal inconsistency, so the three
// kinds never share a sequence or interleave into one stream.
type TreeKind string

const (
	TreeVakya   TreeKind = "vakya"
	TreeEffect  TreeKind = "effect"
	TreeReceipt TreeKind = "receipt"
)

// Valid reports whether k is one of the three recognized tree kinds.
func (k TreeKind) Valid() bool {
	switch k {
	case TreeVakya, TreeEffect, TreeReceipt:
		return true
	default:
		return false
	}
}

// ParseTreeKind validates a tree_type query value against the three
// recognized kinds.
func ParseTreeKind(s string) (TreeKind, error) {
	k := TreeKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("evidencelog: unknown tree kind %q, want one of vakya, effect, receipt", s)
	}
	return k, nil
}

// Appended is the result of appending one leaf to the log.
type Appended struct {
	ID        uuid.UUID
	LeafIndex int64
	LeafHash  []byte
}

// Checkpoint is a signed snapshot of one tree at a given size.
type Checkpoint struct {
	ID               int64
	TreeKind         TreeKind
	TreeSize         int64
	RootHash         []byte
	CreatedAt        time.Time
	PrevCheckpointID *int64
	Signature        string
}

// signingMessage is the canonical byte string a checkpoint's signature is
// computed over: tree kind, size and root hash, hex-encoded and newline
// joined. Binding the kind into the message keeps a checkpoint signed for
// one tree from verifying against another tree's root of the same size.
func (c *Checkpoint) signingMessage() []byte {
	return []byte(fmt.Sprintf("evidence-checkpoint\n%s\n%d\n%x", c.TreeKind, c.TreeSize, c.RootHash))
}

// AuditAppended is the result of recording an audit log entry. Unlike
// Appended, it carries no leaf index: the audit log is an administrative
// record alongside the evidence chain, not a leaf within it.
type AuditAppended struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// Store is the evidence log's storage interface. PostgresStore is the
// durable implementation; MemoryStore satisfies the same interface for
// tests and for a gateway started without a database, which keeps its log
// in process.
type Store interface {
	AppendEnvelope(ctx context.Context, env *envelope.Envelope) (*Appended, error)
	AppendEffect(ctx context.Context, envelopeID envelope.ID, eff *effect.Captured) (*Appended, error)
	AppendReceipt(ctx context.Context, receipt *envelope.Receipt) (*Appended, error)
	AppendAudit(ctx context.Context, actorID, action, outcome string, detail any) (*AuditAppended, error)

	LeafCount(ctx context.Context, kind TreeKind) (int64, error)

	// Checkpoint signs kind's current root with kp and records it.
	Checkpoint(ctx context.Context, kind TreeKind, kp *signing.KeyPair) (*Checkpoint, error)
	LatestCheckpoint(ctx context.Context, kind TreeKind) (*Checkpoint, bool, error)

	// InclusionProof proves that the leaf at leafIndex is included in
	// kind's tree at its current size.
	InclusionProof(ctx context.Context, kind TreeKind, leafIndex int64) (*merkle.InclusionProof, error)
}

// VerifyCheckpoint checks a checkpoint's signature against pub.
func VerifyCheckpoint(cp *Checkpoint, pub *signing.PublicKeyInfo) (bool, error) {
	return signing.VerifyBytes(pub, cp.signingMessage(), cp.Signature)
}

func signCheckpoint(cp *Checkpoint, kp *signing.KeyPair) error {
	sig, err := signing.SignBytes(kp, cp.signingMessage())
	if err != nil {
		return fmt.Errorf("evidencelog: sign checkpoint: %w", err)
	}
	cp.Signature = sig
	return nil
}

// canonicalPayload renders v as JCS canonical JSON bytes, the form every
// leaf's payload_json is stored in so that rehashing the stored bytes
// always reproduces the leaf hash it was appended with.
func canonicalPayload(v any) ([]byte, error) {
	out, err := canon.Canonicalize(v)
	if err != nil {
		return nil, fmt.Errorf("evidencelog: canonicalize payload: %w", err)
	}
	return out.CanonicalBytes, nil
}

func leafHash(payload []byte) []byte {
	return merkle.HashData(payload)
}

func marshalDetail(detail any) (json.RawMessage, error) {
	if detail == nil {
		return json.RawMessage("null"), nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("evidencelog: marshal audit detail: %w", err)
	}
	return raw, nil
}
