// Copyright 2025 Certen Protocol

package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Receipt is the terminal record of one envelope's pass through the
// gateway: every envelope, whether allowed, denied, pending approval, or
// adapter-failed, produces exactly one.
type Receipt struct {
	ID           string          `json:"id"`
	EnvelopeID   ID              `json:"envelopeId"`
	EnvelopeHash string          `json:"envelopeHash"`
	Reason       ReasonCode      `json:"reason"`
	Message      string          `json:"message,omitempty"`
	DurationMs   int64           `json:"durationMs"`
	EffectIDs    []string        `json:"effectIds,omitempty"`
	ExecutorID   string          `json:"executorId"`
	Signature    string          `json:"signature,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Detail       json.RawMessage `json:"detail,omitempty"`
}

// NewReceipt builds an unsigned receipt for env, to be filled in with a
// reason code once the pipeline reaches a terminal state.
func NewReceipt(env *Envelope, executorID string) (*Receipt, error) {
	envHash, err := env.CanonicalHash()
	if err != nil {
		return nil, fmt.Errorf("envelope: hash envelope for receipt: %w", err)
	}
	return &Receipt{
		ID:           uuid.NewString(),
		EnvelopeID:   env.ID,
		EnvelopeHash: envHash,
		ExecutorID:   executorID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Sign canonicalizes the receipt with Signature cleared and signs those
// canonical bytes with kp, filling Signature in place.
func (r *Receipt) Sign(kp *signing.KeyPair) error {
	r.Signature = ""
	out, err := canon.Canonicalize(r)
	if err != nil {
		return fmt.Errorf("envelope: canonicalize receipt: %w", err)
	}
	sig, err := signing.SignBytes(kp, out.CanonicalBytes)
	if err != nil {
		return fmt.Errorf("envelope: sign receipt: %w", err)
	}
	r.Signature = sig
	return nil
}

// Verify checks the receipt's signature against the given public key,
// recomputing the canonical bytes with Signature cleared exactly as Sign
// did.
func (r *Receipt) Verify(info *signing.PublicKeyInfo) (bool, error) {
	sig := r.Signature
	r.Signature = ""
	out, err := canon.Canonicalize(r)
	r.Signature = sig
	if err != nil {
		return false, fmt.Errorf("envelope: canonicalize receipt: %w", err)
	}
	return signing.VerifyBytes(info, out.CanonicalBytes, sig)
}
