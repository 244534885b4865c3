// Copyright 2025 Certen Protocol

package adapter

import (
	"context"
	"testing"
)

func TestRegistryRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFileAdapter())
	r.Register(NewHTTPAdapter())

	if !r.SupportsAction("file.read") {
		t.Fatal("expected file.read to be supported")
	}
	if !r.SupportsAction("http.get") {
		t.Fatal("expected http.get to be supported")
	}
	if r.SupportsAction("unknown.action") {
		t.Fatal("expected unknown.action to be unsupported")
	}
}

func TestRegistryGetForAction(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFileAdapter())

	a, ok := r.GetForAction("file.write")
	if !ok {
		t.Fatal("expected an adapter for file.write")
	}
	if a.Domain() != "file" {
		t.Fatalf("got domain %q", a.Domain())
	}
}

func TestRegistryBuilder(t *testing.T) {
	r := NewRegistryBuilder().WithFileAdapter().WithHTTPAdapter().Build()
	if len(r.Domains()) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(r.Domains()))
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	if !r.SupportsAction("file.read") {
		t.Fatal("expected file.read to be supported")
	}
	if !r.SupportsAction("http.get") {
		t.Fatal("expected http.get to be supported")
	}
}

func TestDispatcherSupportsAction(t *testing.T) {
	d := NewDispatcher(DefaultRegistry())
	if !d.SupportsAction("file.read") {
		t.Fatal("expected file.read to be supported")
	}
	if d.SupportsAction("unknown.action") {
		t.Fatal("expected unknown.action to be unsupported")
	}
}

func TestHealthCheckAll(t *testing.T) {
	r := DefaultRegistry()
	results := r.HealthCheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 health results, got %d", len(results))
	}
	for domain, status := range results {
		if !status.Healthy {
			t.Fatalf("expected %s to be healthy", domain)
		}
	}
}
