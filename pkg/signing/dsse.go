// Copyright 2025 Certen Protocol
//
// DSSE (Dead Simple Signing Envelope) implementation.
//
// DSSE binds a payload's type to its signature, so a signature produced
// for one payload type can never be replayed as valid for another.
// Reference: https://github.com/secure-systems-lab/dsse

package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strconv"
)

// Payload type URIs for the objects this gateway signs.
const (
	PayloadTypeEnvelope   = "application/vnd.aapi.envelope+json"
	PayloadTypeReceipt    = "application/vnd.aapi.receipt+json"
	PayloadTypeCapability = "application/vnd.aapi.capability+json"
	PayloadTypeEffect     = "application/vnd.aapi.effect+json"
)

// DsseEnvelope is a Dead Simple Signing Envelope.
type DsseEnvelope struct {
	PayloadType string          `json:"payloadType"`
	Payload     string          `json:"payload"` // base64-encoded
	Signatures  []DsseSignature `json:"signatures"`
}

// DsseSignature is one signature over a DSSE envelope's PAE.
type DsseSignature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"` // base64-encoded
}

// SignEnvelope creates a new DSSE envelope with a single signature.
func SignEnvelope(payloadType string, payload []byte, kp *KeyPair) (*DsseEnvelope, error) {
	pae := ComputePAE(payloadType, payload)
	sig, err := SignBytes(kp, pae)
	if err != nil {
		return nil, err
	}
	return &DsseEnvelope{
		PayloadType: payloadType,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Signatures: []DsseSignature{
			{KeyID: string(kp.ID), Sig: sig},
		},
	}, nil
}

// AddSignature appends another signature over the same payload, producing a
// multi-party signed envelope.
func (e *DsseEnvelope) AddSignature(kp *KeyPair) error {
	payload, err := e.DecodePayload()
	if err != nil {
		return err
	}
	pae := ComputePAE(e.PayloadType, payload)
	sig, err := SignBytes(kp, pae)
	if err != nil {
		return err
	}
	e.Signatures = append(e.Signatures, DsseSignature{KeyID: string(kp.ID), Sig: sig})
	return nil
}

// DecodePayload returns the envelope's decoded payload bytes.
func (e *DsseEnvelope) DecodePayload() ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("signing: decode payload: %w", err)
	}
	return payload, nil
}

// DsseVerification summarizes the result of verifying every signature on
// an envelope.
type DsseVerification struct {
	AllValid   bool
	ValidCount int
	TotalCount int
	Results    []SignatureVerification
}

// SignatureVerification is the outcome of verifying a single signature.
type SignatureVerification struct {
	KeyID string
	Valid bool
	Error string
}

// Verify checks every signature on the envelope against the given key store.
func (e *DsseEnvelope) Verify(store *KeyStore) (*DsseVerification, error) {
	payload, err := e.DecodePayload()
	if err != nil {
		return nil, err
	}
	pae := ComputePAE(e.PayloadType, payload)

	results := make([]SignatureVerification, 0, len(e.Signatures))
	for _, sig := range e.Signatures {
		info, err := store.GetPublicKey(KeyID(sig.KeyID))
		if err != nil {
			results = append(results, SignatureVerification{KeyID: sig.KeyID, Valid: false, Error: err.Error()})
			continue
		}
		valid, err := VerifyBytes(info, pae, sig.Sig)
		if err != nil {
			results = append(results, SignatureVerification{KeyID: sig.KeyID, Valid: false, Error: err.Error()})
			continue
		}
		results = append(results, SignatureVerification{KeyID: sig.KeyID, Valid: valid})
	}

	validCount := 0
	for _, r := range results {
		if r.Valid {
			validCount++
		}
	}

	return &DsseVerification{
		AllValid:   validCount == len(results) && len(results) > 0,
		ValidCount: validCount,
		TotalCount: len(results),
		Results:    results,
	}, nil
}

// VerifyThreshold verifies the envelope and checks at least threshold
// signatures are valid.
func (e *DsseEnvelope) VerifyThreshold(store *KeyStore, threshold int) (bool, error) {
	v, err := e.Verify(store)
	if err != nil {
		return false, err
	}
	return v.ValidCount >= threshold, nil
}

// ComputePAE computes the DSSE Pre-Authentication Encoding:
// "DSSEv1" SP LEN(type) SP type SP LEN(payload) SP payload
func ComputePAE(payloadType string, payload []byte) []byte {
	out := make([]byte, 0, len(payloadType)+len(payload)+32)
	out = append(out, "DSSEv1 "...)
	out = append(out, strconv.Itoa(len(payloadType))...)
	out = append(out, ' ')
	out = append(out, payloadType...)
	out = append(out, ' ')
	out = append(out, strconv.Itoa(len(payload))...)
	out = append(out, ' ')
	out = append(out, payload...)
	return out
}

// SignBytes signs arbitrary bytes with a key pair, returning a
// base64-encoded Ed25519 signature.
func SignBytes(kp *KeyPair, data []byte) (string, error) {
	sig := ed25519.Sign(kp.Private, data)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyBytes verifies a base64-encoded Ed25519 signature over data.
func VerifyBytes(info *PublicKeyInfo, data []byte, sigB64 string) (bool, error) {
	pub, err := info.PublicKeyBytes()
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, ed25519.SignatureSize, len(sig))
	}
	return ed25519.Verify(pub, data, sig), nil
}
