// Copyright 2025 Certen Protocol
//
// Package adapter translates admitted envelopes into concrete action
// execution against a specific domain (file, http, database, ...) and
// captures the effects that execution produced.
package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandhi-labs/aapi-vac/pkg/effect"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// Adapter executes actions for a single domain and reports the effects
// that execution produced.
type Adapter interface {
	// Domain returns the adapter's domain, e.g. "file" or "http".
	Domain() string

	// Version returns the adapter's implementation version.
	Version() string

	// SupportedActions lists the action names this adapter handles.
	SupportedActions() []string

	// SupportsAction reports whether action is handled by this adapter,
	// either by exact match or by domain prefix.
	SupportsAction(action string) bool

	// Execute performs action against env and returns its result,
	// including any captured effects.
	Execute(ctx context.Context, env *envelope.Envelope, execCtx *ExecutionContext) (*ExecutionResult, error)

	// CanRollback reports whether action produces reversible effects.
	CanRollback(action string) bool

	// Rollback undoes a previously captured effect.
	Rollback(ctx context.Context, captured *effect.Captured) error

	// HealthCheck reports the adapter's operational status.
	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// SupportsActionDefault implements the default matching rule: an exact
// entry in actions, or action starting with "<domain>.".
func SupportsActionDefault(domain string, actions []string, action string) bool {
	prefix := domain + "."
	for _, a := range actions {
		if a == action || strings.HasPrefix(action, prefix) {
			return true
		}
	}
	return false
}

// ExecutionContext carries per-request tracing, timeout, and dry-run
// controls passed to an adapter's Execute call.
type ExecutionContext struct {
	RequestID    string
	TraceID      string
	SpanID       string
	TimeoutMs    uint64
	CaptureState bool
	DryRun       bool
	Values       map[string]any
}

// NewExecutionContext builds an execution context with the defaults an
// adapter expects when none are specified: a fresh request id, a
// 30-second timeout, and state capture enabled.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		RequestID:    uuid.NewString(),
		TimeoutMs:    30000,
		CaptureState: true,
		Values:       map[string]any{},
	}
}

func (c *ExecutionContext) WithTrace(traceID, spanID string) *ExecutionContext {
	c.TraceID = traceID
	c.SpanID = spanID
	return c
}

func (c *ExecutionContext) WithTimeout(ms uint64) *ExecutionContext {
	c.TimeoutMs = ms
	return c
}

func (c *ExecutionContext) WithDryRun() *ExecutionContext {
	c.DryRun = true
	return c
}

func (c *ExecutionContext) SetValue(key string, value any) {
	if c.Values == nil {
		c.Values = map[string]any{}
	}
	c.Values[key] = value
}

func (c *ExecutionContext) GetValue(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Timeout returns the configured timeout as a time.Duration.
func (c *ExecutionContext) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ExecutionResult is the outcome of an adapter executing one action.
type ExecutionResult struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Error      string             `json:"error,omitempty"`
	Effects    []*effect.Captured `json:"effects"`
	DurationMs uint64             `json:"durationMs"`
	Metadata   map[string]any     `json:"metadata"`
}

// SuccessResult builds a successful execution result.
func SuccessResult(data any, effects []*effect.Captured, durationMs uint64) *ExecutionResult {
	return &ExecutionResult{
		Success:    true,
		Data:       data,
		Effects:    effects,
		DurationMs: durationMs,
		Metadata:   map[string]any{},
	}
}

// FailureResult builds a failed execution result with no effects.
func FailureResult(errMsg string, durationMs uint64) *ExecutionResult {
	return &ExecutionResult{
		Success:    false,
		Error:      errMsg,
		Effects:    []*effect.Captured{},
		DurationMs: durationMs,
		Metadata:   map[string]any{},
	}
}

func (r *ExecutionResult) WithMetadata(key string, value any) *ExecutionResult {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
	return r
}

// HealthStatus reports whether an adapter is able to serve requests.
type HealthStatus struct {
	Healthy   bool           `json:"healthy"`
	Message   string         `json:"message,omitempty"`
	LatencyMs *uint64        `json:"latencyMs,omitempty"`
	Details   map[string]any `json:"details"`
}

func Healthy() HealthStatus {
	return HealthStatus{Healthy: true, Details: map[string]any{}}
}

func Unhealthy(message string) HealthStatus {
	return HealthStatus{Healthy: false, Message: message, Details: map[string]any{}}
}

func (h HealthStatus) WithLatency(ms uint64) HealthStatus {
	h.LatencyMs = &ms
	return h
}

// ActionDescriptor documents one action an adapter supports, for
// registration and discovery.
type ActionDescriptor struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	EffectBucket envelope.EffectBucket `json:"effectBucket"`
	Idempotent   bool                 `json:"idempotent"`
	Reversible   bool                 `json:"reversible"`
	InputSchema  any                  `json:"inputSchema,omitempty"`
	OutputSchema any                  `json:"outputSchema,omitempty"`
}

func NewActionDescriptor(name, description string) ActionDescriptor {
	return ActionDescriptor{Name: name, Description: description, EffectBucket: envelope.EffectNone}
}

func (d ActionDescriptor) WithEffect(bucket envelope.EffectBucket) ActionDescriptor {
	d.EffectBucket = bucket
	return d
}

func (d ActionDescriptor) Idempotent() ActionDescriptor {
	d.Idempotent = true
	return d
}

func (d ActionDescriptor) Reversible() ActionDescriptor {
	d.Reversible = true
	return d
}
