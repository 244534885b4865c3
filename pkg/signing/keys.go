// Copyright 2025 Certen Protocol
//
// Ed25519 key management for the gateway: generation, storage, and
// did:key export. Every signature in the pipeline — envelope, receipt,
// capability token, block header — is produced with a KeyPair from this
// package and checked against the matching public key, looked up in a
// KeyStore or, for block headers, decoded from the signer's did:key.

package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multibase"
)

var (
	ErrKeyNotFound      = errors.New("signing: key not found")
	ErrInvalidKeyFormat = errors.New("signing: invalid key format")
	ErrKeyExpired       = errors.New("signing: key expired")
	ErrInvalidSignature = errors.New("signing: invalid signature")
)

// multicodecEd25519Pub is the varint-encoded multicodec prefix for an
// ed25519 public key (0xed01), used when exporting did:key identifiers.
var multicodecEd25519Pub = []byte{0xed, 0x01}

// KeyID identifies a key pair across the gateway and the evidence log.
type KeyID string

// NewKeyID generates a random key identifier.
func NewKeyID() KeyID {
	return KeyID(uuid.NewString())
}

// KeyPurpose records what a key pair is allowed to sign.
type KeyPurpose string

const (
	KeyPurposeEnvelopeSigning   KeyPurpose = "envelope_signing"
	KeyPurposeCapabilitySigning KeyPurpose = "capability_signing"
	KeyPurposeReceiptSigning    KeyPurpose = "receipt_signing"
	KeyPurposeGeneral           KeyPurpose = "general"
)

// KeyPair bundles an Ed25519 key pair with the metadata the gateway tracks
// for rotation and auditing.
type KeyPair struct {
	ID         KeyID
	Private    ed25519.PrivateKey
	Public     ed25519.PublicKey
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	Purpose    KeyPurpose
	Principal  string
}

// GenerateKeyPair creates a new random key pair for the given purpose.
func GenerateKeyPair(purpose KeyPurpose) (*KeyPair, error) {
	return GenerateKeyPairWithID(NewKeyID(), purpose)
}

// GenerateKeyPairWithID creates a new random key pair under a caller-chosen ID.
func GenerateKeyPairWithID(id KeyID, purpose KeyPurpose) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signing: generate key: %w", err)
	}
	return &KeyPair{
		ID:        id,
		Private:   priv,
		Public:    pub,
		CreatedAt: time.Now().UTC(),
		Purpose:   purpose,
	}, nil
}

// KeyPairFromSeed reconstructs a key pair from a 32-byte Ed25519 seed, as
// loaded from GATEWAY_SIGNING_KEY_PATH at startup.
func KeyPairFromSeed(id KeyID, seed []byte, purpose KeyPurpose) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d byte seed, got %d", ErrInvalidKeyFormat, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{
		ID:        id,
		Private:   priv,
		Public:    priv.Public().(ed25519.PublicKey),
		CreatedAt: time.Now().UTC(),
		Purpose:   purpose,
	}, nil
}

// IsExpired reports whether the key pair has passed its expiry time.
func (k *KeyPair) IsExpired() bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now().UTC())
}

// WithExpiration sets an expiry time and returns the same key pair for chaining.
func (k *KeyPair) WithExpiration(t time.Time) *KeyPair {
	k.ExpiresAt = &t
	return k
}

// WithPrincipal associates the key pair with a principal identifier.
func (k *KeyPair) WithPrincipal(principal string) *KeyPair {
	k.Principal = principal
	return k
}

// PublicKeyHex returns the public key as a lowercase hex string.
func (k *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.Public)
}

// DIDKey exports the public key as a did:key identifier
// (multicodec ed25519-pub + base58btc multibase, per the did:key spec).
func (k *KeyPair) DIDKey() (string, error) {
	return didKeyFromPublicKey(k.Public)
}

func didKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	prefixed := make([]byte, 0, len(multicodecEd25519Pub)+len(pub))
	prefixed = append(prefixed, multicodecEd25519Pub...)
	prefixed = append(prefixed, pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return "", fmt.Errorf("signing: multibase encode: %w", err)
	}
	return "did:key:" + encoded, nil
}

// ToPublicInfo exports the shareable (non-secret) half of the key pair.
func (k *KeyPair) ToPublicInfo() *PublicKeyInfo {
	return &PublicKeyInfo{
		KeyID:     k.ID,
		PublicKey: k.PublicKeyHex(),
		Algorithm: "Ed25519",
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		Purpose:   k.Purpose,
		Principal: k.Principal,
	}
}

// PublicKeyInfo is the exportable, non-secret half of a KeyPair.
type PublicKeyInfo struct {
	KeyID     KeyID
	PublicKey string // hex-encoded
	Algorithm string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Purpose   KeyPurpose
	Principal string
}

// PublicKeyBytes decodes the hex-encoded public key.
func (p *PublicKeyInfo) PublicKeyBytes() (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(p.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeyFormat, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// DIDKey exports the public key as a did:key identifier.
func (p *PublicKeyInfo) DIDKey() (string, error) {
	pub, err := p.PublicKeyBytes()
	if err != nil {
		return "", err
	}
	return didKeyFromPublicKey(pub)
}

// ParseDIDKey decodes a did:key identifier back into its raw Ed25519
// public key, the inverse of didKeyFromPublicKey. Used to verify
// signatures (e.g. block headers) carried alongside a did:key rather than
// a KeyID looked up in a KeyStore.
func ParseDIDKey(did string) (ed25519.PublicKey, error) {
	const prefix = "did:key:"
	if len(did) <= len(prefix) || did[:len(prefix)] != prefix {
		return nil, fmt.Errorf("%w: not a did:key identifier", ErrInvalidKeyFormat)
	}
	_, decoded, err := multibase.Decode(did[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: multibase decode: %v", ErrInvalidKeyFormat, err)
	}
	if len(decoded) != len(multicodecEd25519Pub)+ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: unexpected did:key payload length", ErrInvalidKeyFormat)
	}
	if decoded[0] != multicodecEd25519Pub[0] || decoded[1] != multicodecEd25519Pub[1] {
		return nil, fmt.Errorf("%w: not an ed25519 did:key", ErrInvalidKeyFormat)
	}
	return ed25519.PublicKey(decoded[len(multicodecEd25519Pub):]), nil
}

// base58DID is retained for callers that need the raw base58btc form
// without the multibase 'z' prefix (some wire formats from the original
// implementation carry it bare).
func base58DID(pub ed25519.PublicKey) string {
	prefixed := append(append([]byte{}, multicodecEd25519Pub...), pub...)
	return base58.Encode(prefixed)
}

// KeyStore is a thread-safe in-memory store of key pairs and public keys.
// The gateway's own signing keys are stored with their private half; keys
// belonging to remote principals (capability issuers, peer gateways) are
// stored public-only via StorePublicKey.
type KeyStore struct {
	mu         sync.RWMutex
	keys       map[KeyID]*KeyPair
	publicKeys map[KeyID]*PublicKeyInfo
}

// NewKeyStore creates an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys:       make(map[KeyID]*KeyPair),
		publicKeys: make(map[KeyID]*PublicKeyInfo),
	}
}

// GenerateKey generates and stores a new key pair, returning its ID.
func (s *KeyStore) GenerateKey(purpose KeyPurpose) (KeyID, error) {
	kp, err := GenerateKeyPair(purpose)
	if err != nil {
		return "", err
	}
	if err := s.StoreKey(kp); err != nil {
		return "", err
	}
	return kp.ID, nil
}

// StoreKey stores a full key pair (private and public).
func (s *KeyStore) StoreKey(kp *KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kp.ID] = kp
	s.publicKeys[kp.ID] = kp.ToPublicInfo()
	return nil
}

// StorePublicKey stores a public key only, for signature verification
// without local custody of the private half.
func (s *KeyStore) StorePublicKey(info *PublicKeyInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKeys[info.KeyID] = info
	return nil
}

// GetKey retrieves a full key pair by ID.
func (s *KeyStore) GetKey(id KeyID) (*KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kp, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return kp, nil
}

// GetPublicKey retrieves public key info by ID, preferring a locally-held
// full key pair if one exists.
func (s *KeyStore) GetPublicKey(id KeyID) (*PublicKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if kp, ok := s.keys[id]; ok {
		return kp.ToPublicInfo(), nil
	}
	info, ok := s.publicKeys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return info, nil
}

// GetVerifyingKey retrieves the Ed25519 public key by ID.
func (s *KeyStore) GetVerifyingKey(id KeyID) (ed25519.PublicKey, error) {
	info, err := s.GetPublicKey(id)
	if err != nil {
		return nil, err
	}
	return info.PublicKeyBytes()
}

// RemoveKey deletes a key pair and its public info.
func (s *KeyStore) RemoveKey(id KeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, id)
	delete(s.publicKeys, id)
	return nil
}

// ListKeys returns the IDs of all locally-held full key pairs.
func (s *KeyStore) ListKeys() []KeyID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]KeyID, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	return ids
}

// ListPublicKeys returns every known public key, including keys this
// store only holds the public half of.
func (s *KeyStore) ListPublicKeys() []*PublicKeyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[KeyID]bool, len(s.publicKeys))
	out := make([]*PublicKeyInfo, 0, len(s.publicKeys))
	for id, kp := range s.keys {
		out = append(out, kp.ToPublicInfo())
		seen[id] = true
	}
	for id, info := range s.publicKeys {
		if !seen[id] {
			out = append(out, info)
		}
	}
	return out
}
