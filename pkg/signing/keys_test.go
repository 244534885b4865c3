package signing

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair(KeyPurposeEnvelopeSigning)
	if err != nil {
		t.Fatal(err)
	}
	if kp.ID == "" {
		t.Fatal("expected non-empty key id")
	}
	if kp.IsExpired() {
		t.Fatal("fresh key should not be expired")
	}
}

func TestKeyExpiration(t *testing.T) {
	kp, err := GenerateKeyPair(KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	kp.WithExpiration(time.Now().UTC().Add(-time.Hour))
	if !kp.IsExpired() {
		t.Fatal("expected key to be expired")
	}
}

func TestKeyStoreRoundTrip(t *testing.T) {
	store := NewKeyStore()

	id, err := store.GenerateKey(KeyPurposeEnvelopeSigning)
	if err != nil {
		t.Fatal(err)
	}

	kp, err := store.GetKey(id)
	if err != nil {
		t.Fatal(err)
	}
	if kp.ID != id {
		t.Fatalf("got id %s want %s", kp.ID, id)
	}

	info, err := store.GetPublicKey(id)
	if err != nil {
		t.Fatal(err)
	}
	if info.KeyID != id {
		t.Fatalf("got id %s want %s", info.KeyID, id)
	}

	ids := store.ListKeys()
	found := false
	for _, i := range ids {
		if i == id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected generated key in ListKeys")
	}

	if err := store.RemoveKey(id); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetKey(id); err == nil {
		t.Fatal("expected error after removing key")
	}
}

func TestPublicKeyOnlyStore(t *testing.T) {
	kp, err := GenerateKeyPair(KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}

	store := NewKeyStore()
	if err := store.StorePublicKey(kp.ToPublicInfo()); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetKey(kp.ID); err == nil {
		t.Fatal("expected no private key available")
	}
	info, err := store.GetPublicKey(kp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if info.PublicKey != kp.PublicKeyHex() {
		t.Fatal("public key mismatch")
	}
}

func TestDIDKeyEncoding(t *testing.T) {
	kp, err := GenerateKeyPair(KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	did, err := kp.DIDKey()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(did, "did:key:z") {
		t.Fatalf("expected did:key:z prefix, got %s", did)
	}
}

func TestKeyPairFromSeed(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	kp, err := KeyPairFromSeed(NewKeyID(), seed, KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	kp2, err := KeyPairFromSeed(NewKeyID(), seed, KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	if kp.PublicKeyHex() != kp2.PublicKeyHex() {
		t.Fatal("same seed should produce same public key")
	}
}
