// Copyright 2025 Certen Protocol

package envelope

import (
	"encoding/hex"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
)

// CanonicalHash returns the envelope's RFC 8785 canonical-form SHA-256
// hash, hex-encoded. Two envelopes that differ only in field order or
// insignificant whitespace hash identically. Request signatures and
// evidence-log leaves are computed over the same canonical bytes this hash
// digests; the hash itself is what receipts and envelope records carry.
func (e *Envelope) CanonicalHash() (string, error) {
	h, err := canon.HashJSON(e)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h[:]), nil
}
