// Copyright 2025 Certen Protocol
//
// Content-addressable storage for the vault's memory objects.
//
// Every object is encoded to canonical DAG-CBOR and addressed by a CIDv1
// built from the multicodec pair (0x71 dag-cbor, 0x12 sha2-256), mirroring
// the multiformats CID construction used across the IPFS/libp2p ecosystem.
// Two objects with identical content always produce the same CID regardless
// of struct field order, since cbor.CanonicalEncOptions sorts map/struct
// keys before encoding.

package cas

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// codecDagCBOR and codeSHA2_256 are the multicodec/multihash identifiers
// used to build every CID this package produces.
const (
	codecDagCBOR uint64 = 0x71
	codeSHA2_256 uint64 = 0x12
)

// ErrNotFound is returned when a CID has no corresponding entry in the
// store.
var ErrNotFound = errors.New("cas: object not found")

var canonicalMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cas: build canonical cbor encoder: %v", err))
	}
	canonicalMode = em
}

// Store is the content-addressable storage interface every vault backend
// implements: raw byte get/put keyed by CID, existence checks, and
// deletion for garbage collection.
type Store interface {
	GetBytes(ctx context.Context, id cid.Cid) ([]byte, error)
	PutBytes(ctx context.Context, data []byte) (cid.Cid, error)
	Contains(ctx context.Context, id cid.Cid) (bool, error)
	Delete(ctx context.Context, id cid.Cid) error
}

// Encode serializes obj to canonical DAG-CBOR bytes.
func Encode(obj any) ([]byte, error) {
	data, err := canonicalMode.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("cas: encode: %w", err)
	}
	return data, nil
}

// Decode deserializes canonical DAG-CBOR bytes into out.
func Decode(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cas: decode: %w", err)
	}
	return nil
}

// ComputeCID returns the CIDv1 that Put would assign to data, without
// storing it.
func ComputeCID(data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, codeSHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("cas: hash: %w", err)
	}
	return cid.NewCidV1(codecDagCBOR, sum), nil
}

// HashBytes returns the raw SHA-256 digest of data, used by the block
// chain's own domain-separated hashes (block hash, manifest hash), which
// are computed the same way a CID's digest is but are not themselves
// wrapped in a CID.
func HashBytes(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Put encodes obj to canonical DAG-CBOR and stores it, returning its CID.
func Put(ctx context.Context, store Store, obj any) (cid.Cid, error) {
	data, err := Encode(obj)
	if err != nil {
		return cid.Undef, err
	}
	return store.PutBytes(ctx, data)
}

// Get retrieves the object addressed by id and decodes it into a fresh T.
//
// T must be a non-pointer type; Get allocates the return value itself so
// callers write `evt, err := cas.Get[cas.Event](ctx, store, id)` rather
// than pre-allocating a destination.
func Get[T any](ctx context.Context, store Store, id cid.Cid) (T, error) {
	var zero T
	data, err := store.GetBytes(ctx, id)
	if err != nil {
		return zero, err
	}
	var out T
	if err := Decode(data, &out); err != nil {
		return zero, err
	}
	return out, nil
}
