// Copyright 2025 Certen Protocol

package adapter

import "testing"

func TestHTTPURLValidationAllowed(t *testing.T) {
	a := NewHTTPAdapter().WithAllowedHosts([]string{"api.example.com"})

	if err := a.isURLAllowed("https://api.example.com/v1/users"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := a.isURLAllowed("https://sub.api.example.com/v1"); err != nil {
		t.Fatalf("expected subdomain allowed, got %v", err)
	}
	if err := a.isURLAllowed("https://other.com/api"); err == nil {
		t.Fatal("expected host outside allow list to be rejected")
	}
}

func TestHTTPURLValidationDenied(t *testing.T) {
	a := NewHTTPAdapter().WithDeniedHosts([]string{"internal.local", "localhost"})

	if err := a.isURLAllowed("https://api.example.com/v1"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := a.isURLAllowed("http://localhost:8080/api"); err == nil {
		t.Fatal("expected denied host to be rejected")
	}
	if err := a.isURLAllowed("http://internal.local/secret"); err == nil {
		t.Fatal("expected denied host to be rejected")
	}
}

func TestHTTPMethodParsing(t *testing.T) {
	a := NewHTTPAdapter()

	if got := a.parseMethod("http.get", map[string]any{}); got != "GET" {
		t.Fatalf("got %q", got)
	}
	if got := a.parseMethod("http.post", map[string]any{}); got != "POST" {
		t.Fatalf("got %q", got)
	}
	if got := a.parseMethod("http.request", map[string]any{"method": "DELETE"}); got != "DELETE" {
		t.Fatalf("got %q", got)
	}
}

func TestHTTPCanRollback(t *testing.T) {
	a := NewHTTPAdapter()
	if a.CanRollback("http.post") {
		t.Fatal("HTTP requests should not be reversible")
	}
}
