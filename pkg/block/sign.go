// Copyright 2025 Certen Protocol

package block

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/sandhi-labs/aapi-vac/pkg/cas"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Message returns the bytes a block's signatures attest to: block number,
// previous block hash, timestamp, patch CID and manifest CID, in that
// order. The signatures and the block hash (which is derived from, and so
// can't include, the signatures it commits to) are left out, as are the
// header's type, version and metadata.
func Message(header *cas.BlockHeader) []byte {
	var buf []byte
	var numBuf [8]byte

	binary.BigEndian.PutUint64(numBuf[:], header.BlockNo)
	buf = append(buf, numBuf[:]...)
	buf = append(buf, header.PrevBlockHash[:]...)

	binary.BigEndian.PutUint64(numBuf[:], uint64(header.Timestamp))
	buf = append(buf, numBuf[:]...)

	buf = append(buf, header.Links.Patch.Bytes()...)
	buf = append(buf, header.Links.Manifest.Bytes()...)
	return buf
}

// Sign produces a detached signature over message using kp, in the
// did:key-tagged form the block header carries.
func Sign(kp *signing.KeyPair, message []byte) (cas.Signature, error) {
	did, err := kp.DIDKey()
	if err != nil {
		return cas.Signature{}, fmt.Errorf("block: sign: %w", err)
	}
	sig := ed25519.Sign(kp.Private, message)
	return cas.Signature{PublicKey: did, Signature: sig}, nil
}

// VerifySignature checks a single detached signature against message.
func VerifySignature(sig cas.Signature, message []byte) (bool, error) {
	if len(sig.Signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("block: signature must be %d bytes, got %d", ed25519.SignatureSize, len(sig.Signature))
	}
	pub, err := signing.ParseDIDKey(sig.PublicKey)
	if err != nil {
		return false, fmt.Errorf("block: verify signature: %w", err)
	}
	return ed25519.Verify(pub, message, sig.Signature), nil
}
