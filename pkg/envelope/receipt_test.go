package envelope

import (
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func buildTestEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := NewBuilder().
		Actor(Actor{PrincipalID: "user:alice", Kind: ActorHuman}).
		Resource(Resource{ID: "file:/data/report.pdf"}).
		Action(NewAction("file", "read")).
		Authority(Authority{Cap: CapabilityRef{CapRef: "cap:test:1"}}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestNewReceiptCarriesEnvelopeHash(t *testing.T) {
	env := buildTestEnvelope(t)
	r, err := NewReceipt(env, "gateway-1")
	if err != nil {
		t.Fatal(err)
	}
	wantHash, _ := env.CanonicalHash()
	if r.EnvelopeHash != wantHash {
		t.Fatalf("got %s want %s", r.EnvelopeHash, wantHash)
	}
	if r.EnvelopeID != env.ID {
		t.Fatal("envelope id mismatch")
	}
}

func TestReceiptSignAndVerify(t *testing.T) {
	env := buildTestEnvelope(t)
	r, err := NewReceipt(env, "gateway-1")
	if err != nil {
		t.Fatal(err)
	}
	r.Reason = ReasonSuccess

	kp, err := signing.GenerateKeyPair(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Sign(kp); err != nil {
		t.Fatal(err)
	}
	if r.Signature == "" {
		t.Fatal("expected non-empty signature")
	}

	ok, err := r.Verify(kp.ToPublicInfo())
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected valid signature")
	}
}

func TestReceiptVerifyFailsAfterTamper(t *testing.T) {
	env := buildTestEnvelope(t)
	r, err := NewReceipt(env, "gateway-1")
	if err != nil {
		t.Fatal(err)
	}
	r.Reason = ReasonSuccess

	kp, err := signing.GenerateKeyPair(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Sign(kp); err != nil {
		t.Fatal(err)
	}

	r.Message = "tampered"
	ok, err := r.Verify(kp.ToPublicInfo())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected verification to fail after tampering")
	}
}

func TestReasonCodeClassification(t *testing.T) {
	if !ReasonSuccess.IsSuccess() {
		t.Fatal("expected success to be success")
	}
	if !ReasonPolicyDenied.IsDenial() {
		t.Fatal("expected policy-denied to be a denial")
	}
	if !ReasonApprovalRequired.RequiresHuman() {
		t.Fatal("expected approval-required to require human")
	}
	if ReasonAdapterError.IsDenial() {
		t.Fatal("adapter-error is a failure, not a denial")
	}
}
