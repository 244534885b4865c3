// Copyright 2025 Certen Protocol

package prolly

import (
	"crypto/sha256"
	"encoding/binary"
)

// DefaultQ is the tree's default branching factor, chosen so that an
// average chunk holds around 32 entries.
const DefaultQ = 32

// BoundaryThreshold is the content-defined chunking cutoff: a key is a
// chunk boundary when its hash falls below this value, giving each key
// roughly a 1/DefaultQ chance of starting a new chunk.
const BoundaryThreshold uint32 = ^uint32(0) / DefaultQ

// IsBoundary reports whether key starts a new chunk. The decision depends
// only on the key's own hash, so inserting or removing unrelated keys
// elsewhere in the tree never shifts existing boundaries.
func IsBoundary(key []byte) bool {
	return hashKey(key) < BoundaryThreshold
}

func hashKey(key []byte) uint32 {
	sum := sha256.Sum256(key)
	return binary.BigEndian.Uint32(sum[:4])
}

// BoundaryProbability returns the expected fraction of keys that are
// boundaries for a given branching factor q.
func BoundaryProbability(q int) float64 {
	return 1.0 / float64(q)
}

// ExpectedChunkSize returns the expected number of entries per chunk for a
// given branching factor q.
func ExpectedChunkSize(q int) int {
	return q
}
