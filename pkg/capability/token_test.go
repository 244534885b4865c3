package capability

import (
	"testing"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func newTestKeyPair(t *testing.T) (*signing.KeyStore, *signing.KeyPair) {
	t.Helper()
	store := signing.NewKeyStore()
	id, err := store.GenerateKey(signing.KeyPurposeCapabilitySigning)
	if err != nil {
		t.Fatal(err)
	}
	kp, err := store.GetKey(id)
	if err != nil {
		t.Fatal(err)
	}
	return store, kp
}

func TestBuilderIssuesValidToken(t *testing.T) {
	_, kp := newTestKeyPair(t)

	token, err := NewBuilder().
		Issuer("issuer:test").
		Subject("subject:test").
		Action("file.*").
		Resource("documents/**").
		TTL(time.Hour).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	if !token.IsValidTime() {
		t.Fatal("expected token to be time-valid")
	}
	if !token.AllowsAction("file.read") {
		t.Fatal("expected file.read to be allowed")
	}
	if !token.AllowsAction("file.write") {
		t.Fatal("expected file.write to be allowed")
	}
	if token.AllowsAction("database.query") {
		t.Fatal("expected database.query to be denied")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, value string
		want           bool
	}{
		{"*", "anything", true},
		{"**", "a.b.c", true},
		{"file.*", "file.read", true},
		{"file.*", "file.write", true},
		{"file.*", "database.read", false},
		{"**.read", "org.team.file.read", true},
		{"org.*.read", "org.team.read", true},
	}
	for _, c := range cases {
		if got := GlobMatch(c.pattern, c.value); got != c.want {
			t.Errorf("GlobMatch(%q, %q) = %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}

func TestVerifierValidatesToken(t *testing.T) {
	store, kp := newTestKeyPair(t)

	token, err := NewBuilder().
		Issuer("issuer:test").
		Subject("subject:test").
		Action("file.*").
		Resource("**").
		TTL(time.Hour).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	verifier := NewVerifier(store)
	result, err := verifier.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("expected valid token, errors: %v", result.Errors)
	}
}

func TestVerifierRejectsTamperedToken(t *testing.T) {
	store, kp := newTestKeyPair(t)

	token, err := NewBuilder().
		Issuer("issuer:test").
		Subject("subject:test").
		Action("file.*").
		Resource("**").
		TTL(time.Hour).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}
	token.Actions = append(token.Actions, "database.*")

	verifier := NewVerifier(store)
	result, err := verifier.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("expected tampered token to be invalid")
	}
}

func TestAttenuationIntersectsActions(t *testing.T) {
	store, kp := newTestKeyPair(t)

	parent, err := NewBuilder().
		Issuer("issuer:test").
		Subject("agent:parent").
		Actions([]string{"file.read", "file.write"}).
		Resource("**").
		TTL(time.Hour).
		MaxDelegationDepth(2).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	issuer := NewIssuer(store, kp.ID, "issuer:test")
	ttl := 30 * time.Minute
	child, err := issuer.Attenuate(parent, "agent:child", Attenuation{
		Actions: []string{"file.read"},
		TTL:     &ttl,
	})
	if err != nil {
		t.Fatal(err)
	}

	if child.DelegationDepth != 1 {
		t.Fatalf("expected delegation depth 1, got %d", child.DelegationDepth)
	}
	if !child.AllowsAction("file.read") {
		t.Fatal("expected file.read to remain allowed")
	}
	for _, a := range child.Actions {
		if a == "file.write" {
			t.Fatal("expected file.write to be attenuated away")
		}
	}
}

func TestAttenuationRespectsMaxDepth(t *testing.T) {
	store, kp := newTestKeyPair(t)

	parent, err := NewBuilder().
		Issuer("issuer:test").
		Subject("agent:parent").
		Action("file.read").
		Resource("**").
		TTL(time.Hour).
		MaxDelegationDepth(1).
		ParentToken("root-token", 1).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	issuer := NewIssuer(store, kp.ID, "issuer:test")
	_, err = issuer.Attenuate(parent, "agent:child", Attenuation{})
	if err == nil {
		t.Fatal("expected delegation depth error")
	}
}

func TestAttenuationMergesBudgetsToMinimum(t *testing.T) {
	store, kp := newTestKeyPair(t)

	parent, err := NewBuilder().
		Issuer("issuer:test").
		Subject("agent:parent").
		Action("file.read").
		Resource("**").
		TTL(time.Hour).
		Budget(envelope.NewBudget("b1", "api_calls", 100)).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	issuer := NewIssuer(store, kp.ID, "issuer:test")
	child, err := issuer.Attenuate(parent, "agent:child", Attenuation{
		Budgets: []envelope.Budget{envelope.NewBudget("b1", "api_calls", 20)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(child.Budgets) != 1 || child.Budgets[0].Limit != 20 {
		t.Fatalf("expected merged budget limit 20, got %+v", child.Budgets)
	}
}

func TestVerifyAccessDeniesOutOfScopeAction(t *testing.T) {
	store, kp := newTestKeyPair(t)

	token, err := NewBuilder().
		Issuer("issuer:test").
		Subject("subject:test").
		Action("file.read").
		Resource("**").
		TTL(time.Hour).
		BuildAndSign(kp)
	if err != nil {
		t.Fatal(err)
	}

	verifier := NewVerifier(store)
	decision, err := verifier.VerifyAccess(token, "file.write", "file:/a")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Allowed {
		t.Fatal("expected file.write to be denied")
	}

	decision, err = verifier.VerifyAccess(token, "file.read", "file:/a")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Fatalf("expected file.read to be allowed, got reason: %s", decision.Reason)
	}
}
