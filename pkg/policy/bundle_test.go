// Copyright 2025 Certen Protocol

package policy

import (
	"strings"
	"testing"
)

func exampleBundleYAML() string {
	return `
policies:
  - id: default
    name: Default Policy
    version: "1.0.0"
    default_effect: deny
    priority: 0
    enabled: true
    rules:
      - id: allow-read
        name: Allow Read
        effect: allow
        priority: 10
        enabled: true
        conditions:
          - condition_type: action
            field: action
            operator: ends_with
            value: ".read"
`
}

func newExampleBundleReader() *strings.Reader {
	return strings.NewReader(exampleBundleYAML())
}

func TestLoadBundleRegistersPolicies(t *testing.T) {
	bundle, err := LoadBundle(newExampleBundleReader())
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(bundle.Policies))
	}
	if len(bundle.Policies[0].Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(bundle.Policies[0].Rules))
	}

	engine := NewEngine()
	bundle.Register(engine)
	if _, ok := engine.GetPolicy("default"); !ok {
		t.Fatal("expected policy \"default\" to be registered")
	}
}
