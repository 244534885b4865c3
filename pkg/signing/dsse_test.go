package signing

import "testing"

func TestComputePAE(t *testing.T) {
	pae := ComputePAE("application/json", []byte("{}"))
	want := "DSSEv1 16 application/json 2 {}"
	if string(pae) != want {
		t.Fatalf("got %q want %q", pae, want)
	}
}

func TestSignAndVerifyEnvelope(t *testing.T) {
	store := NewKeyStore()
	keyID, err := store.GenerateKey(KeyPurposeGeneral)
	if err != nil {
		t.Fatal(err)
	}
	kp, err := store.GetKey(keyID)
	if err != nil {
		t.Fatal(err)
	}

	env, err := SignEnvelope("application/json", []byte("test payload data"), kp)
	if err != nil {
		t.Fatal(err)
	}

	v, err := env.Verify(store)
	if err != nil {
		t.Fatal(err)
	}
	if !v.AllValid || v.ValidCount != 1 {
		t.Fatalf("expected all valid with count 1, got %+v", v)
	}
}

func TestMultiSignatureEnvelope(t *testing.T) {
	store := NewKeyStore()
	id1, _ := store.GenerateKey(KeyPurposeGeneral)
	id2, _ := store.GenerateKey(KeyPurposeGeneral)
	kp1, _ := store.GetKey(id1)
	kp2, _ := store.GetKey(id2)

	env, err := SignEnvelope("application/json", []byte("test payload"), kp1)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.AddSignature(kp2); err != nil {
		t.Fatal(err)
	}
	if len(env.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(env.Signatures))
	}

	v, err := env.Verify(store)
	if err != nil {
		t.Fatal(err)
	}
	if !v.AllValid || v.ValidCount != 2 {
		t.Fatalf("expected all valid with count 2, got %+v", v)
	}
}

func TestThresholdVerification(t *testing.T) {
	store := NewKeyStore()
	id, _ := store.GenerateKey(KeyPurposeGeneral)
	kp, _ := store.GetKey(id)

	env, err := SignEnvelope("application/json", []byte("test"), kp)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := env.VerifyThreshold(store, 1)
	if err != nil || !ok {
		t.Fatalf("expected threshold 1 to pass, ok=%v err=%v", ok, err)
	}
	ok, err = env.VerifyThreshold(store, 2)
	if err != nil || ok {
		t.Fatalf("expected threshold 2 to fail, ok=%v err=%v", ok, err)
	}
}

func TestTamperedPayloadFailsVerification(t *testing.T) {
	store := NewKeyStore()
	id, _ := store.GenerateKey(KeyPurposeGeneral)
	kp, _ := store.GetKey(id)

	env, err := SignEnvelope("application/json", []byte("original"), kp)
	if err != nil {
		t.Fatal(err)
	}

	// Swap in a different payload without re-signing.
	env.Payload = "dGFtcGVyZWQ=" // base64("tampered")

	v, err := env.Verify(store)
	if err != nil {
		t.Fatal(err)
	}
	if v.AllValid {
		t.Fatal("tampered payload should fail verification")
	}
}
