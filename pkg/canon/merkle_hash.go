package canon

import "crypto/sha256"

// RFC 6962 domain separation prefixes: a leaf hash and an internal node hash
// can never collide, which prevents second-preimage attacks that splice a
// leaf in as an internal node or vice versa.
const (
	leafPrefix     = 0x00
	internalPrefix = 0x01
)

// LeafHash computes the RFC 6962 leaf hash of data: sha256(0x00 || data).
func LeafHash(data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// InternalHash computes the RFC 6962 internal node hash of a left/right pair:
// sha256(0x01 || left || right).
func InternalHash(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{internalPrefix})
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
