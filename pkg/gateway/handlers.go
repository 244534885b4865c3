// Copyright 2025 Certen Protocol

package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandhi-labs/aapi-vac/pkg/adapter"
	"github.com/sandhi-labs/aapi-vac/pkg/database"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
)

// Handlers exposes the gateway's HTTP surface: envelope submission and
// lookup, merkle root/proof queries, the adapter registry listing, and
// health/metrics.
type Handlers struct {
	pipeline *Pipeline
	repos    *database.Repositories
	log      evidencelog.Store
	registry *adapter.Registry
	logger   *log.Logger
}

// NewHandlers builds the gateway's HTTP handlers.
func NewHandlers(pipeline *Pipeline, repos *database.Repositories, logStore evidencelog.Store, registry *adapter.Registry, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[GATEWAY-HTTP] ", log.LstdFlags)
	}
	return &Handlers{pipeline: pipeline, repos: repos, log: logStore, registry: registry, logger: logger}
}

// submitBody is the wire shape of POST /v1/envelopes.
type submitBody struct {
	Envelope  *envelope.Envelope `json:"envelope"`
	Signature string             `json:"signature,omitempty"`
	KeyID     string             `json:"keyId,omitempty"`
}

// submitStatus is the spec's four-value status enum for a submitted
// envelope, coarser than envelope.ReasonCode: it tells a caller which of
// the four terminal buckets the request landed in without requiring it to
// know every reason code.
type submitStatus string

const (
	submitAccepted        submitStatus = "accepted"
	submitFailed          submitStatus = "failed"
	submitDenied          submitStatus = "denied"
	submitPendingApproval submitStatus = "pending_approval"
)

// statusFor maps a receipt's reason code onto the submit status enum.
func statusFor(reason envelope.ReasonCode) submitStatus {
	switch {
	case reason.RequiresHuman():
		return submitPendingApproval
	case reason.IsSuccess():
		return submitAccepted
	case reason.IsDenial():
		return submitDenied
	default:
		return submitFailed
	}
}

// submitResponse is the wire shape of POST /v1/envelopes' response.
type submitResponse struct {
	EnvelopeID string            `json:"envelopeId"`
	Status     submitStatus      `json:"status"`
	Receipt    *envelope.Receipt `json:"receipt,omitempty"`
	ApprovalID string            `json:"approvalId,omitempty"`
	MerkleRoot string            `json:"merkle_root,omitempty"`
	LeafIndex  *int64            `json:"leaf_index,omitempty"`
}

// HandleSubmit handles POST /v1/envelopes.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is allowed")
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "MALFORMED_BODY", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if body.Envelope == nil {
		h.writeError(w, http.StatusBadRequest, "MISSING_ENVELOPE", "request body must include \"envelope\"")
		return
	}
	if body.KeyID != "" {
		body.Envelope.Actor.KeyID = body.KeyID
	}

	outcome, err := h.pipeline.Submit(r.Context(), &SubmitRequest{Envelope: body.Envelope, Signature: body.Signature})
	if err != nil {
		h.logger.Printf("submit failed before envelope was recorded: %v", err)
		h.writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	leafIndex := outcome.VakyaLeafIndex
	resp := submitResponse{
		EnvelopeID: string(outcome.EnvelopeID),
		Status:     statusFor(outcome.Receipt.Reason),
		Receipt:    outcome.Receipt,
		LeafIndex:  &leafIndex,
	}
	if outcome.Approval != nil {
		resp.ApprovalID = outcome.Approval.ApprovalID
	}
	if cp, ok, err := h.log.LatestCheckpoint(r.Context(), evidencelog.TreeVakya); err == nil && ok {
		resp.MerkleRoot = hex.EncodeToString(cp.RootHash)
	}
	h.writeJSON(w, outcome.Receipt.Reason.HTTPStatus(), resp)
}

// HandleGetEnvelope handles GET /v1/envelopes/{id}.
func (h *Handlers) HandleGetEnvelope(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	id, ok := h.pathID(w, r, "/v1/envelopes/")
	if !ok {
		return
	}
	rec, err := h.repos.Envelopes.Get(r.Context(), id)
	if errors.Is(err, database.ErrEnvelopeRecordNotFound) {
		h.writeError(w, http.StatusNotFound, "ENVELOPE_NOT_FOUND", fmt.Sprintf("no envelope with id %s", id))
		return
	}
	if err != nil {
		h.logger.Printf("get envelope %s: %v", id, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve envelope")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleGetReceipt handles GET /v1/envelopes/{id}/receipt.
func (h *Handlers) HandleGetReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	id, ok := h.pathID(w, r, "/v1/envelopes/")
	if !ok {
		return
	}
	rec, err := h.repos.Receipts.GetByEnvelope(r.Context(), id)
	if errors.Is(err, database.ErrReceiptRecordNotFound) {
		h.writeError(w, http.StatusNotFound, "RECEIPT_NOT_FOUND", fmt.Sprintf("no receipt for envelope %s", id))
		return
	}
	if err != nil {
		h.logger.Printf("get receipt for %s: %v", id, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve receipt")
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleGetEffects handles GET /v1/envelopes/{id}/effects.
func (h *Handlers) HandleGetEffects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	id, ok := h.pathID(w, r, "/v1/envelopes/")
	if !ok {
		return
	}
	effects, err := h.repos.Effects.ListByEnvelope(r.Context(), id)
	if err != nil {
		h.logger.Printf("list effects for %s: %v", id, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list effects")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"envelopeId": id.String(),
		"effects":    effects,
		"count":      len(effects),
	})
}

// treeKindParam parses and validates the tree_type query parameter shared by
// the merkle endpoints, writing a 400 response and returning ok=false when
// it's missing or not one of vakya/effect/receipt.
func (h *Handlers) treeKindParam(w http.ResponseWriter, r *http.Request) (evidencelog.TreeKind, bool) {
	kind, err := evidencelog.ParseTreeKind(r.URL.Query().Get("tree_type"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_TREE_TYPE", err.Error())
		return "", false
	}
	return kind, true
}

// HandleMerkleRoot handles GET /v1/merkle/root?tree_type={vakya,effect,receipt}.
func (h *Handlers) HandleMerkleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	kind, ok := h.treeKindParam(w, r)
	if !ok {
		return
	}
	cp, ok, err := h.log.LatestCheckpoint(r.Context(), kind)
	if err != nil {
		h.logger.Printf("get latest checkpoint for %s: %v", kind, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to retrieve checkpoint")
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "NO_CHECKPOINT", fmt.Sprintf("no checkpoint has been recorded yet for tree %s", kind))
		return
	}
	h.writeJSON(w, http.StatusOK, cp)
}

// HandleMerkleProof handles GET /v1/merkle/proof?tree_type=…&leaf_index=N.
func (h *Handlers) HandleMerkleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	kind, ok := h.treeKindParam(w, r)
	if !ok {
		return
	}
	idxStr := r.URL.Query().Get("leaf_index")
	idx, err := strconv.ParseInt(idxStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_LEAF_INDEX", "leaf_index must be an integer")
		return
	}
	proof, err := h.log.InclusionProof(r.Context(), kind, idx)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_LEAF_INDEX", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, proof)
}

// HandleAdapters handles GET /v1/adapters.
func (h *Handlers) HandleAdapters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"adapters": h.registry.AdapterInfo()})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := h.registry.HealthCheckAll(r.Context())
	healthy := true
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
			break
		}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]any{
		"status":   map[bool]string{true: "ok", false: "degraded"}[healthy],
		"adapters": statuses,
	})
}

// MetricsHandler returns the Prometheus scrape handler for GET /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// pathID parses the uuid in the first path segment after prefix, writing
// a 400 response and returning ok=false on failure.
func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, prefix string) (uuid.UUID, bool) {
	trimmed := strings.TrimPrefix(r.URL.Path, prefix)
	segment := strings.Split(trimmed, "/")[0]
	id, err := uuid.Parse(segment)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "path must contain a valid envelope id")
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
