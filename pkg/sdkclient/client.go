// Copyright 2025 Certen Protocol
//
// Package sdkclient is a thin Go client for the gateway's HTTP surface:
// submit an envelope, poll for its receipt and effects, fetch the evidence
// log's current checkpoint and inclusion proofs, and check adapter health.
// It mirrors the gateway's own wire shapes exactly: it reuses the envelope,
// database, evidencelog and merkle types the gateway encodes, and
// duplicates the gateway's unexported submit request and response types.
package sdkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/adapter"
	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/database"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
	"github.com/sandhi-labs/aapi-vac/pkg/merkle"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Config holds the client's connection and signing settings.
type Config struct {
	GatewayURL   string
	Timeout      time.Duration
	SignRequests bool
	SigningKey   *signing.KeyPair
	UserAgent    string
}

// DefaultConfig returns a Config pointed at gatewayURL with a 30s timeout
// and no request signing.
func DefaultConfig(gatewayURL string) *Config {
	return &Config{
		GatewayURL: gatewayURL,
		Timeout:    30 * time.Second,
		UserAgent:  "aapi-vac-sdkclient/0.1",
	}
}

// WithTimeout returns a copy of cfg with Timeout set to d.
func (cfg *Config) WithTimeout(d time.Duration) *Config {
	out := *cfg
	out.Timeout = d
	return &out
}

// WithSigning returns a copy of cfg that signs every submitted envelope
// with kp.
func (cfg *Config) WithSigning(kp *signing.KeyPair) *Config {
	out := *cfg
	out.SignRequests = true
	out.SigningKey = kp
	return &out
}

// Client talks to one gateway instance over HTTP.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New builds a Client from cfg. If cfg is nil, DefaultConfig("") is used,
// which is only useful once GatewayURL is set.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// submitBody mirrors gateway.submitBody exactly: the two packages share
// no import relationship, so the shape is duplicated rather than
// exported from an internal gateway type.
type submitBody struct {
	Envelope  *envelope.Envelope `json:"envelope"`
	Signature string             `json:"signature,omitempty"`
	KeyID     string             `json:"keyId,omitempty"`
}

// SubmitStatus mirrors gateway.submitStatus: the four-value outcome enum a
// submit response carries instead of a raw envelope.ReasonCode.
type SubmitStatus string

const (
	SubmitAccepted        SubmitStatus = "accepted"
	SubmitFailed          SubmitStatus = "failed"
	SubmitDenied          SubmitStatus = "denied"
	SubmitPendingApproval SubmitStatus = "pending_approval"
)

// SubmitResponse mirrors gateway.submitResponse.
type SubmitResponse struct {
	EnvelopeID string            `json:"envelopeId"`
	Status     SubmitStatus      `json:"status"`
	Receipt    *envelope.Receipt `json:"receipt,omitempty"`
	ApprovalID string            `json:"approvalId,omitempty"`
	MerkleRoot string            `json:"merkle_root,omitempty"`
	LeafIndex  *int64            `json:"leaf_index,omitempty"`
}

// Submit signs (if configured) and posts env to POST /v1/envelopes.
func (c *Client) Submit(ctx context.Context, env *envelope.Envelope) (*SubmitResponse, error) {
	body := submitBody{Envelope: env}

	if c.config.SignRequests {
		if c.config.SigningKey == nil {
			return nil, fmt.Errorf("sdkclient: submit: signing requested but no signing key configured")
		}
		// The gateway copies keyId into Actor.KeyID and then verifies over
		// the envelope's canonical bytes, so sign that same form.
		signed := *env
		signed.Actor.KeyID = string(c.config.SigningKey.ID)
		out, err := canon.Canonicalize(&signed)
		if err != nil {
			return nil, fmt.Errorf("sdkclient: submit: canonicalize: %w", err)
		}
		sig, err := signing.SignBytes(c.config.SigningKey, out.CanonicalBytes)
		if err != nil {
			return nil, fmt.Errorf("sdkclient: submit: sign: %w", err)
		}
		body.Envelope = &signed
		body.Signature = sig
		body.KeyID = string(c.config.SigningKey.ID)
	}

	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/envelopes", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetEnvelope fetches GET /v1/envelopes/{id}.
func (c *Client) GetEnvelope(ctx context.Context, id envelope.ID) (*database.EnvelopeRecord, error) {
	var rec database.EnvelopeRecord
	if err := c.do(ctx, http.MethodGet, "/v1/envelopes/"+string(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetReceipt fetches GET /v1/envelopes/{id}/receipt.
func (c *Client) GetReceipt(ctx context.Context, id envelope.ID) (*database.ReceiptRecord, error) {
	var rec database.ReceiptRecord
	if err := c.do(ctx, http.MethodGet, "/v1/envelopes/"+string(id)+"/receipt", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// EffectsResponse mirrors HandleGetEffects's response map.
type EffectsResponse struct {
	EnvelopeID string                  `json:"envelopeId"`
	Effects    []database.EffectRecord `json:"effects"`
	Count      int                     `json:"count"`
}

// GetEffects fetches GET /v1/envelopes/{id}/effects.
func (c *Client) GetEffects(ctx context.Context, id envelope.ID) (*EffectsResponse, error) {
	var resp EffectsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/envelopes/"+string(id)+"/effects", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMerkleRoot fetches GET /v1/merkle/root?tree_type=…, kind's latest
// signed checkpoint.
func (c *Client) GetMerkleRoot(ctx context.Context, kind evidencelog.TreeKind) (*evidencelog.Checkpoint, error) {
	var cp evidencelog.Checkpoint
	path := fmt.Sprintf("/v1/merkle/root?tree_type=%s", kind)
	if err := c.do(ctx, http.MethodGet, path, nil, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// GetInclusionProof fetches GET /v1/merkle/proof?tree_type=…&leaf_index=N.
func (c *Client) GetInclusionProof(ctx context.Context, kind evidencelog.TreeKind, leafIndex int64) (*merkle.InclusionProof, error) {
	var proof merkle.InclusionProof
	path := fmt.Sprintf("/v1/merkle/proof?tree_type=%s&leaf_index=%d", kind, leafIndex)
	if err := c.do(ctx, http.MethodGet, path, nil, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// AdaptersResponse mirrors HandleAdapters's response map.
type AdaptersResponse struct {
	Adapters []adapter.Info `json:"adapters"`
}

// GetAdapters fetches GET /v1/adapters.
func (c *Client) GetAdapters(ctx context.Context) (*AdaptersResponse, error) {
	var resp AdaptersResponse
	if err := c.do(ctx, http.MethodGet, "/v1/adapters", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse mirrors HandleHealth's response map.
type HealthResponse struct {
	Status   string                          `json:"status"`
	Adapters map[string]adapter.HealthStatus `json:"adapters"`
}

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends an HTTP request to the gateway and decodes a successful
// response into out. A non-2xx response is decoded into an *Error using
// the {"error": {"code", "message"}} shape every gateway handler writes.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sdkclient: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.GatewayURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("sdkclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sdkclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sdkclient: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapped struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(respBody, &wrapped); jsonErr != nil {
			return &Error{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: string(respBody)}
		}
		return &Error{StatusCode: resp.StatusCode, Code: wrapped.Error.Code, Message: wrapped.Error.Message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("sdkclient: decode response: %w", err)
	}
	return nil
}
