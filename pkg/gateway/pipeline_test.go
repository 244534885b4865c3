// Copyright 2025 Certen Protocol

package gateway

import (
	"context"
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/adapter"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
	"github.com/sandhi-labs/aapi-vac/pkg/policy"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func newTestEnvelope(t *testing.T, domain, verb string) *envelope.Envelope {
	t.Helper()
	if domain == "" {
		domain = "file"
	}
	if verb == "" {
		verb = "read"
	}
	env, err := envelope.NewBuilder().
		Actor(envelope.Actor{PrincipalID: "user:alice", Kind: envelope.ActorHuman}).
		Resource(envelope.Resource{ID: "documents/report.txt"}).
		Action(envelope.NewAction(domain, verb)).
		Authority(envelope.Authority{Cap: envelope.CapabilityRef{CapRef: "unused"}}).
		Build()
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	keyStore := signing.NewKeyStore()
	kid, err := keyStore.GenerateKey(signing.KeyPurposeReceiptSigning)
	if err != nil {
		t.Fatalf("generate receipt key: %v", err)
	}
	kp, err := keyStore.GetKey(kid)
	if err != nil {
		t.Fatalf("get receipt key: %v", err)
	}

	engine := policy.NewEngine().WithDefaultAllow()
	registry := adapter.DefaultRegistry()
	dispatcher := adapter.NewDispatcher(registry)

	cfg := &Config{RequireSignatures: false, RequireCapabilities: false, GatewayID: "test-gateway"}
	return NewPipeline(
		evidencelog.NewMemoryStore(),
		keyStore,
		NewMapCapabilityResolver(),
		engine,
		dispatcher,
		kp,
		NewMetrics(nil),
		cfg,
	)
}

func TestSubmitUnsupportedActionProducesAdapterErrorReceipt(t *testing.T) {
	p := newTestPipeline(t)
	env := newTestEnvelope(t, "nonexistent-domain", "do")

	out, err := p.Submit(context.Background(), &SubmitRequest{Envelope: env})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Receipt == nil {
		t.Fatal("expected a receipt even for an unsupported action")
	}
	if out.Receipt.Reason != envelope.ReasonAdapterError {
		t.Fatalf("expected adapter-error, got %s", out.Receipt.Reason)
	}
}

func TestSubmitValidatesBeforePersisting(t *testing.T) {
	p := newTestPipeline(t)
	env := newTestEnvelope(t, "", "")
	env.Resource.ID = "" // now invalid

	out, err := p.Submit(context.Background(), &SubmitRequest{Envelope: env})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if out != nil {
		t.Fatal("expected no outcome for a validation failure")
	}
}

func TestSubmitPolicyDenyShortCircuitsDispatch(t *testing.T) {
	p := newTestPipeline(t)
	rule := policy.DenyRule("deny-everything", "deny everything").
		WithCondition(policy.ActionCondition(policy.OpMatches, "*")).
		WithPriority(10)
	p.policyEngine.AddPolicy(policy.NewPolicy("deny-all", "deny all").WithRule(rule).WithPriority(10))

	env := newTestEnvelope(t, "", "")
	out, err := p.Submit(context.Background(), &SubmitRequest{Envelope: env})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Receipt.Reason != envelope.ReasonPolicyDenied {
		t.Fatalf("expected policy-denied, got %s", out.Receipt.Reason)
	}
	if len(out.Receipt.EffectIDs) != 0 {
		t.Fatal("expected no effects to be captured for a denied envelope")
	}
}
