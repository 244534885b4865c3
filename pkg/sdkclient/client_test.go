// Copyright 2025 Certen Protocol

package sdkclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
)

func testEnvelope() *envelope.Envelope {
	return &envelope.Envelope{
		Version:  envelope.V0_1_0(),
		ID:       envelope.NewID(),
		Actor:    envelope.Actor{PrincipalID: "user:alice", Kind: envelope.ActorHuman},
		Resource: envelope.Resource{ID: "file:/data/report.csv"},
		Action:   envelope.NewAction("file", "read"),
		Authority: envelope.Authority{
			Cap: envelope.CapabilityRef{CapRef: "cap:default"},
		},
		BodyType: envelope.BodyType{Name: "empty", Version: envelope.V0_1_0(), ContentType: "application/json"},
		Body:     json.RawMessage(`{}`),
		Meta:     envelope.Meta{CreatedAt: time.Now().UTC()},
	}
}

func TestSubmitPostsEnvelope(t *testing.T) {
	var gotBody submitBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/envelopes" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SubmitResponse{
			EnvelopeID: string(gotBody.Envelope.ID),
			Status:     SubmitAccepted,
		})
	}))
	defer srv.Close()

	client := New(DefaultConfig(srv.URL))
	env := testEnvelope()

	resp, err := client.Submit(context.Background(), env)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.EnvelopeID != string(env.ID) {
		t.Fatalf("expected envelope id %s, got %s", env.ID, resp.EnvelopeID)
	}
	if gotBody.Signature != "" {
		t.Fatal("expected no signature without WithSigning")
	}
}

func TestSubmitNotFoundError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "ENVELOPE_NOT_FOUND", "message": "no such envelope"},
		})
	}))
	defer srv.Close()

	client := New(DefaultConfig(srv.URL))
	_, err := client.GetEnvelope(context.Background(), envelope.ID("missing"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got %v", err)
	}
}

func TestGetMerkleRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/merkle/root" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tree_type"); got != "vakya" {
			t.Fatalf("expected tree_type=vakya, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"ID":       1,
			"TreeKind": "vakya",
			"TreeSize": 4,
			"RootHash": []byte{1, 2, 3, 4},
		})
	}))
	defer srv.Close()

	client := New(DefaultConfig(srv.URL))
	cp, err := client.GetMerkleRoot(context.Background(), evidencelog.TreeVakya)
	if err != nil {
		t.Fatalf("get merkle root: %v", err)
	}
	if cp.TreeSize != 4 {
		t.Fatalf("expected tree size 4, got %d", cp.TreeSize)
	}
}
