// Copyright 2025 Certen Protocol

package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sandhi-labs/aapi-vac/pkg/adapter"
	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/capability"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
	"github.com/sandhi-labs/aapi-vac/pkg/policy"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Config controls how strictly the pipeline enforces the authorization
// steps ahead of dispatch.
type Config struct {
	// RequireSignatures rejects envelopes whose actor carries no KeyID,
	// that carry no request signature, or whose signature fails to verify.
	RequireSignatures bool

	// RequireCapabilities rejects envelopes whose authority carries no
	// capability reference at all, or whose capability does not allow
	// the requested action/resource.
	RequireCapabilities bool

	GatewayID string

	Logger *log.Logger
}

// DefaultConfig returns a Config with production-leaning defaults: both
// signatures and capabilities required.
func DefaultConfig() *Config {
	return &Config{
		RequireSignatures:   true,
		RequireCapabilities: true,
		GatewayID:           "aapi-gateway",
	}
}

// SubmitRequest is one admission request to the pipeline: the envelope
// itself, plus the detached signature a caller attaches over its
// canonical bytes.
type SubmitRequest struct {
	Envelope  *envelope.Envelope
	Signature string // base64, optional unless Config.RequireSignatures
}

// Outcome is the terminal result of carrying one envelope through the
// pipeline: always a receipt, even on denial or failure, except when the
// envelope never reached step 2 (persisted).
type Outcome struct {
	EnvelopeID envelope.ID
	Receipt    *envelope.Receipt
	Decision   *policy.Decision // nil when policy was never evaluated (e.g. signature denial)
	Approval   *ApprovalPending // set only when Receipt.Reason is ReasonApprovalRequired

	// VakyaLeafIndex is the envelope's position in the vakya tree, set as
	// soon as step 2 persists it.
	VakyaLeafIndex int64
}

// ApprovalPending records the approval lane an envelope is waiting in
// when policy evaluation requires human sign-off.
type ApprovalPending struct {
	ApprovalID string
	Lane       envelope.ApprovalLane
}

// Pipeline is the gateway's admission pipeline: validate, persist,
// verify, authorize, evaluate policy, dispatch, capture effects, and
// issue a signed receipt for every envelope it is handed, in that order.
//
// Order matters: the envelope is durably recorded before any
// allow/deny/approve decision is made, so a denied or pending-approval
// request is still a first-class entry in the evidence log.
type Pipeline struct {
	cfg *Config

	log          evidencelog.Store
	keyStore     *signing.KeyStore
	capVerifier  *capability.Verifier
	capResolver  CapabilityResolver
	policyEngine *policy.Engine
	dispatcher   *adapter.Dispatcher
	receiptKey   *signing.KeyPair

	metrics *Metrics
	logger  *log.Logger
}

// NewPipeline wires the pipeline's dependencies together. cfg may be nil,
// in which case DefaultConfig is used.
func NewPipeline(
	logStore evidencelog.Store,
	keyStore *signing.KeyStore,
	capResolver CapabilityResolver,
	policyEngine *policy.Engine,
	dispatcher *adapter.Dispatcher,
	receiptKey *signing.KeyPair,
	metrics *Metrics,
	cfg *Config,
) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags)
	}
	return &Pipeline{
		cfg:          cfg,
		log:          logStore,
		keyStore:     keyStore,
		capVerifier:  capability.NewVerifier(keyStore),
		capResolver:  capResolver,
		policyEngine: policyEngine,
		dispatcher:   dispatcher,
		receiptKey:   receiptKey,
		metrics:      metrics,
		logger:       logger,
	}
}

// Submit carries one envelope through the full admission pipeline.
func (p *Pipeline) Submit(ctx context.Context, req *SubmitRequest) (*Outcome, error) {
	start := time.Now()
	env := req.Envelope

	// Step 1: validate. A validation failure never reaches the evidence
	// log — there is nothing yet worth making a first-class record of.
	if err := env.Validate(); err != nil {
		p.metrics.RecordValidationFailure()
		return nil, fmt.Errorf("gateway: envelope failed validation: %w", err)
	}

	// Step 2: persist the envelope unconditionally, before any
	// authorization or policy decision is made.
	envAppended, err := p.log.AppendEnvelope(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("gateway: persist envelope: %w", err)
	}

	actor := string(env.Actor.PrincipalID)
	action := env.Action.Name

	finish := func(reason envelope.ReasonCode, message string, effectIDs []string) (*Outcome, error) {
		receipt, err := envelope.NewReceipt(env, p.cfg.GatewayID)
		if err != nil {
			return nil, fmt.Errorf("gateway: build receipt: %w", err)
		}
		receipt.Reason = reason
		receipt.Message = message
		receipt.EffectIDs = effectIDs
		receipt.DurationMs = time.Since(start).Milliseconds()
		if err := receipt.Sign(p.receiptKey); err != nil {
			return nil, fmt.Errorf("gateway: sign receipt: %w", err)
		}
		if _, err := p.log.AppendReceipt(ctx, receipt); err != nil {
			return nil, fmt.Errorf("gateway: persist receipt: %w", err)
		}
		p.metrics.RecordOutcome(action, actor, reason, time.Since(start))
		return &Outcome{EnvelopeID: env.ID, Receipt: receipt, VakyaLeafIndex: envAppended.LeafIndex}, nil
	}

	// Step 3: verify signature.
	if p.cfg.RequireSignatures {
		if err := p.verifySignature(env, req.Signature); err != nil {
			p.logger.Printf("envelope %s: signature denied: %v", env.ID, err)
			return finish(envelope.ReasonAuthorizationDenied, err.Error(), nil)
		}
	}

	// Step 4: verify capability.
	if p.cfg.RequireCapabilities {
		if _, err := p.verifyCapability(ctx, env); err != nil {
			p.logger.Printf("envelope %s: capability denied: %v", env.ID, err)
			return finish(envelope.ReasonAuthorizationDenied, err.Error(), nil)
		}
	}

	// Step 5: evaluate policy.
	decision, err := p.evaluatePolicy(env)
	if err != nil {
		return finish(envelope.ReasonInternalError, err.Error(), nil)
	}
	if decision.Decision == policy.DecisionDeny {
		out, err := finish(envelope.ReasonPolicyDenied, decision.Reason, nil)
		if out != nil {
			out.Decision = decision
		}
		return out, err
	}
	if decision.Decision == policy.DecisionPendingApproval {
		approvalID := uuid.NewString()
		out, err := finish(envelope.ReasonApprovalRequired, decision.Reason, nil)
		if out != nil {
			out.Decision = decision
			out.Approval = &ApprovalPending{ApprovalID: approvalID, Lane: env.Authority.ApprovalLane}
		}
		return out, err
	}

	// Step 6: dispatch to the adapter registry.
	execCtx := adapter.NewExecutionContext().WithTrace(string(env.ID), "")
	result, dispatchErr := p.dispatcher.Dispatch(ctx, env, execCtx)

	// Step 7: capture effects, even on partial failure — whatever the
	// adapter acknowledged before erroring or timing out still gets
	// persisted.
	var effectIDs []string
	if result != nil {
		for _, eff := range result.Effects {
			appended, err := p.log.AppendEffect(ctx, env.ID, eff)
			if err != nil {
				return finish(envelope.ReasonInternalError, fmt.Sprintf("persist effect: %v", err), effectIDs)
			}
			effectIDs = append(effectIDs, appended.ID.String())
		}
	}

	// Step 8: issue the receipt.
	if dispatchErr != nil {
		return finish(envelope.ReasonAdapterError, dispatchErr.Error(), effectIDs)
	}
	if result != nil && !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "adapter reported failure with no message"
		}
		return finish(envelope.ReasonAdapterError, msg, effectIDs)
	}

	reason := envelope.ReasonSuccess
	if result != nil && len(result.Effects) > 0 && len(effectIDs) < len(result.Effects) {
		reason = envelope.ReasonPartialSuccess
	}
	out, err := finish(reason, "dispatched successfully", effectIDs)
	if out != nil {
		out.Decision = decision
	}
	return out, err
}

// verifySignature checks req.Signature against the actor's registered
// public key over the envelope's canonical bytes. An actor with no KeyID
// is treated as unsigned and only passes when the pipeline does not
// require signatures (callers only reach here when it does).
func (p *Pipeline) verifySignature(env *envelope.Envelope, sig string) error {
	if env.Actor.KeyID == "" {
		return fmt.Errorf("actor carries no key id")
	}
	if sig == "" {
		return fmt.Errorf("no signature attached")
	}
	pub, err := p.keyStore.GetPublicKey(signing.KeyID(env.Actor.KeyID))
	if err != nil {
		return fmt.Errorf("unknown signing key %s: %w", env.Actor.KeyID, err)
	}
	out, err := canon.Canonicalize(env)
	if err != nil {
		return fmt.Errorf("canonicalize envelope: %w", err)
	}
	ok, err := signing.VerifyBytes(pub, out.CanonicalBytes, sig)
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	if !ok {
		return fmt.Errorf("signature does not match")
	}
	return nil
}

// verifyCapability resolves the envelope's capability reference and
// checks that it authorizes the requested action against the requested
// resource.
func (p *Pipeline) verifyCapability(ctx context.Context, env *envelope.Envelope) (*capability.Token, error) {
	tok, err := p.capResolver.Resolve(ctx, env.Authority.Cap)
	if err != nil {
		return nil, fmt.Errorf("resolve capability: %w", err)
	}
	decision, err := p.capVerifier.VerifyAccess(tok, env.Action.Name, string(env.Resource.ID))
	if err != nil {
		return nil, fmt.Errorf("verify capability: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("capability denied: %s", decision.Reason)
	}
	return tok, nil
}

// evaluatePolicy builds an evaluation context from the envelope and runs
// it through the policy engine.
func (p *Pipeline) evaluatePolicy(env *envelope.Envelope) (*policy.Decision, error) {
	evalCtx := policy.NewEvaluationContext(env)
	decision, err := p.policyEngine.Evaluate(evalCtx)
	if err != nil {
		return nil, fmt.Errorf("evaluate policy: %w", err)
	}
	return decision, nil
}
