// Copyright 2025 Certen Protocol
//
// Package envelope defines the action-request envelope: the signed,
// content-addressed unit that enters the gateway pipeline. An envelope
// carries seven semantic slots — actor, resource, action, instrument,
// recipient, source, authority — of which three (actor, resource, action)
// and authority are mandatory; the rest describe means, beneficiary, and
// origin and may be omitted.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingField = errors.New("envelope: missing required field")
	ErrTTLExpired   = errors.New("envelope: ttl expired")
	ErrBudgetSpent  = errors.New("envelope: budget exhausted")
)

// SemanticVersion is a major.minor.patch protocol version.
type SemanticVersion struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
	Patch uint32 `json:"patch"`
}

// V0_1_0 is the current envelope schema version.
func V0_1_0() SemanticVersion { return SemanticVersion{Major: 0, Minor: 1, Patch: 0} }

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ID is a client-generated, time-ordered envelope identifier (UUIDv7).
type ID string

// NewID generates a new time-ordered envelope identifier.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID(uuid.NewString())
	}
	return ID(id.String())
}

// PrincipalID identifies an actor in "kind:id" form, e.g. "user:alice".
type PrincipalID string

// ResourceID identifies a resource, e.g. "file:/data/report.pdf".
type ResourceID string

// Namespace groups resources and actions under a dotted prefix.
type Namespace string

// Contains reports whether ns is a sub-namespace of (or equal to) n.
func (n Namespace) Contains(ns Namespace) bool {
	if len(ns) < len(n) || ns[:len(n)] != n {
		return false
	}
	return len(ns) == len(n) || n == "" || ns[len(n)] == '.'
}

// TraceContext carries distributed-tracing identifiers alongside an
// envelope.
type TraceContext struct {
	TraceID      string `json:"traceId"`
	SpanID       string `json:"spanId"`
	ParentSpanID string `json:"parentSpanId,omitempty"`
	Sampled      bool   `json:"sampled"`
}

// NewTraceContext starts a fresh trace.
func NewTraceContext() TraceContext {
	return TraceContext{TraceID: uuid.NewString(), SpanID: uuid.NewString(), Sampled: true}
}

// Child derives a child span sharing the same trace.
func (t TraceContext) Child() TraceContext {
	return TraceContext{TraceID: t.TraceID, SpanID: uuid.NewString(), ParentSpanID: t.SpanID, Sampled: t.Sampled}
}

// Budget tracks a consumable resource limit attached to an authority slot.
type Budget struct {
	ID              string     `json:"id"`
	Resource        string     `json:"resource"`
	Limit           uint64     `json:"limit"`
	Used            uint64     `json:"used"`
	ResetPeriodSecs uint64     `json:"resetPeriodSecs,omitempty"`
	LastReset       *time.Time `json:"lastReset,omitempty"`
}

// NewBudget creates a fresh, unconsumed budget.
func NewBudget(id, resource string, limit uint64) Budget {
	return Budget{ID: id, Resource: resource, Limit: limit}
}

// Remaining returns the unconsumed portion of the budget.
func (b Budget) Remaining() uint64 {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}

// IsExhausted reports whether the budget has no remaining capacity.
func (b Budget) IsExhausted() bool { return b.Used >= b.Limit }

// Consume attempts to spend amount from the budget, returning false
// without mutating it if that would exceed the limit.
func (b *Budget) Consume(amount uint64) bool {
	if b.Used+amount > b.Limit {
		return false
	}
	b.Used += amount
	return true
}

// ApprovalLaneKind enumerates the human-in-the-loop workflows an authority
// slot may require before an action executes.
type ApprovalLaneKind string

const (
	ApprovalLaneNone       ApprovalLaneKind = "none"
	ApprovalLaneAsync      ApprovalLaneKind = "async"
	ApprovalLaneSync       ApprovalLaneKind = "sync"
	ApprovalLaneMultiParty ApprovalLaneKind = "multi_party"
)

// ApprovalLane selects a human-in-the-loop requirement. Required and
// Approvers only apply when Kind is ApprovalLaneMultiParty.
type ApprovalLane struct {
	Kind      ApprovalLaneKind `json:"kind"`
	Required  uint32           `json:"required,omitempty"`
	Approvers []PrincipalID    `json:"approvers,omitempty"`
}

// EffectBucket classifies the kind of state change an action is expected
// to (or did) produce.
type EffectBucket string

const (
	EffectNone     EffectBucket = "NONE"
	EffectCreate   EffectBucket = "CREATE"
	EffectRead     EffectBucket = "READ"
	EffectUpdate   EffectBucket = "UPDATE"
	EffectDelete   EffectBucket = "DELETE"
	EffectExternal EffectBucket = "EXTERNAL"
)

// IsMutating reports whether the bucket represents a state change.
func (b EffectBucket) IsMutating() bool {
	switch b {
	case EffectCreate, EffectUpdate, EffectDelete, EffectExternal:
		return true
	default:
		return false
	}
}

// IsReadOnly reports whether the bucket represents no state change.
func (b EffectBucket) IsReadOnly() bool { return b == EffectRead || b == EffectNone }

// ActorKind classifies who or what is performing an action.
type ActorKind string

const (
	ActorHuman    ActorKind = "human"
	ActorAgent    ActorKind = "agent"
	ActorService  ActorKind = "service"
	ActorWorkflow ActorKind = "workflow"
)

// DelegationHop records one step in an actor's delegation chain: an
// earlier principal who handed off to the next, with the attenuation (if
// any) applied at that hop.
type DelegationHop struct {
	Delegator   PrincipalID           `json:"delegator"`
	DelegatedAt time.Time             `json:"delegatedAt"`
	Reason      string                `json:"reason,omitempty"`
	Attenuation *DelegationAttenuation `json:"attenuation,omitempty"`
}

// DelegationAttenuation records the scope/budget/TTL reduction applied
// when a delegation hop narrowed the caller's authority.
type DelegationAttenuation struct {
	RemovedScopes []string `json:"removedScopes,omitempty"`
	ReducedBudget []Budget `json:"reducedBudget,omitempty"`
	ReducedTTLMs  *uint64  `json:"reducedTtlMs,omitempty"`
}

// Actor (slot 1, mandatory) identifies who is performing the action.
type Actor struct {
	PrincipalID     PrincipalID     `json:"principalId"`
	Role            string          `json:"role,omitempty"`
	Realm           string          `json:"realm,omitempty"`
	KeyID           string          `json:"keyId,omitempty"`
	Kind            ActorKind       `json:"kind"`
	DelegationChain []DelegationHop `json:"delegationChain,omitempty"`
}

// Resource (slot 2, mandatory) identifies what is being acted upon.
type Resource struct {
	ID      ResourceID        `json:"id"`
	Kind    string            `json:"kind,omitempty"`
	Ns      Namespace         `json:"ns,omitempty"`
	Version string            `json:"version,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// Action (slot 3, mandatory) identifies the verb being performed, in
// "domain.verb" form.
type Action struct {
	Name           string       `json:"name"`
	Domain         string       `json:"domain,omitempty"`
	Verb           string       `json:"verb,omitempty"`
	ExpectedEffect EffectBucket `json:"expectedEffect"`
	Idempotent     bool         `json:"idempotent"`
}

// NewAction builds an action in "domain.verb" form.
func NewAction(domain, verb string) Action {
	return Action{Name: domain + "." + verb, Domain: domain, Verb: verb, ExpectedEffect: EffectNone}
}

// ParseName splits the canonical action name back into domain and verb.
func (a Action) ParseName() (domain, verb string, ok bool) {
	for i := 0; i < len(a.Name); i++ {
		if a.Name[i] == '.' {
			return a.Name[:i], a.Name[i+1:], true
		}
	}
	return "", "", false
}

// Instrument (slot 4, optional) describes the means by which the action is
// carried out.
type Instrument struct {
	Via      string                 `json:"via,omitempty"`
	Adapter  string                 `json:"adapter,omitempty"`
	Tool     string                 `json:"tool,omitempty"`
	Metadata map[string]any         `json:"metadata,omitempty"`
}

// DeliveryPreference describes how a recipient wants to be reached.
type DeliveryPreference struct {
	Channel string         `json:"channel"`
	Address string         `json:"address"`
	Options map[string]any `json:"options,omitempty"`
}

// Recipient (slot 5, optional) identifies who benefits from or receives
// the result of the action.
type Recipient struct {
	PrincipalID PrincipalID          `json:"principalId"`
	Kind        string               `json:"kind,omitempty"`
	Delivery    *DeliveryPreference  `json:"delivery,omitempty"`
}

// Source (slot 6, optional) identifies where the action's input
// originated.
type Source struct {
	ResourceID ResourceID `json:"resourceId"`
	Kind       string     `json:"kind,omitempty"`
	Location   string     `json:"location,omitempty"`
}

// TTLConstraint bounds how long an envelope's authority remains valid.
type TTLConstraint struct {
	ExpiresAt     time.Time `json:"expiresAt"`
	MaxDurationMs *uint64   `json:"maxDurationMs,omitempty"`
}

// IsExpired reports whether the TTL has passed.
func (t TTLConstraint) IsExpired() bool { return time.Now().UTC().After(t.ExpiresAt) }

// GeoConstraint restricts the authority slot to a set of regions.
type GeoConstraint struct {
	AllowedRegions []string `json:"allowedRegions,omitempty"`
	DeniedRegions  []string `json:"deniedRegions,omitempty"`
}

// TimeWindow restricts the authority slot to a recurring time range.
type TimeWindow struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	AllowedDays  []uint8   `json:"allowedDays,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
}

// AuthorityContext narrows an authority slot to an environment, region,
// or time window.
type AuthorityContext struct {
	Environment string         `json:"environment,omitempty"`
	Geo         *GeoConstraint `json:"geo,omitempty"`
	TimeWindow  *TimeWindow    `json:"timeWindow,omitempty"`
}

// CapabilityRef is either a reference to an out-of-band capability token
// or one carried inline. Exactly one of the two fields is set.
type CapabilityRef struct {
	CapRef string           `json:"capRef,omitempty"`
	Inline *json.RawMessage `json:"inline,omitempty"`
}

// Authority (slot 7, mandatory) carries the capability, policy, and
// constraint context the action executes under.
type Authority struct {
	Cap          CapabilityRef     `json:"cap"`
	PolicyRef    string            `json:"policyRef,omitempty"`
	TTL          *TTLConstraint    `json:"ttl,omitempty"`
	Budgets      []Budget          `json:"budgets,omitempty"`
	ApprovalLane ApprovalLane      `json:"approvalLane"`
	Scopes       []string          `json:"scopes,omitempty"`
	Context      *AuthorityContext `json:"context,omitempty"`
}

// BodyType describes the schema of an envelope's body payload.
type BodyType struct {
	Name        string          `json:"name"`
	Version     SemanticVersion `json:"version"`
	ContentType string          `json:"contentType"`
}

// ReasoningStep is one link in an actor's (typically an agent's)
// justification for an action.
type ReasoningStep struct {
	Step     string `json:"step"`
	Evidence string `json:"evidence,omitempty"`
}

// Reasoning captures why an action was requested, for audit and for
// agent explainability.
type Reasoning struct {
	Reason     string          `json:"reason"`
	Chain      []ReasoningStep `json:"chain,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
}

// ClientInfo identifies the client library that submitted the envelope.
type ClientInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	SDKVersion string `json:"sdkVersion,omitempty"`
}

// Meta carries creation metadata that is not itself part of the action's
// semantics: timestamps, tracing, reasoning, and client identification.
type Meta struct {
	CreatedAt  time.Time      `json:"createdAt"`
	Trace      *TraceContext  `json:"trace,omitempty"`
	Reasoning  *Reasoning     `json:"reasoning,omitempty"`
	Client     *ClientInfo    `json:"client,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Envelope is the complete Agentic Action Request: the seven semantic
// slots plus a typed body and creation metadata. An Envelope is owned by
// the evidence log once admitted and never mutated afterward.
type Envelope struct {
	Version    SemanticVersion `json:"version"`
	ID         ID              `json:"id"`
	Actor      Actor           `json:"actor"`
	Resource   Resource        `json:"resource"`
	Action     Action          `json:"action"`
	Instrument *Instrument     `json:"instrument,omitempty"`
	Recipient  *Recipient      `json:"recipient,omitempty"`
	Source     *Source         `json:"source,omitempty"`
	Authority  Authority       `json:"authority"`
	BodyType   BodyType        `json:"bodyType"`
	Body       json.RawMessage `json:"body"`
	Meta       Meta            `json:"meta"`
}

// Validate checks the invariants every admitted envelope must satisfy:
// non-empty actor and resource identifiers, a dotted action name, an
// unexpired TTL, and no exhausted budget.
func (e *Envelope) Validate() error {
	if e.Actor.PrincipalID == "" {
		return fmt.Errorf("%w: actor.principalId", ErrMissingField)
	}
	if e.Resource.ID == "" {
		return fmt.Errorf("%w: resource.id", ErrMissingField)
	}
	if _, _, ok := e.Action.ParseName(); !ok {
		return fmt.Errorf("%w: action.name must contain '.'", ErrMissingField)
	}
	if e.Authority.Cap.CapRef == "" && e.Authority.Cap.Inline == nil {
		return fmt.Errorf("%w: authority.cap", ErrMissingField)
	}
	if e.Authority.TTL != nil && e.Authority.TTL.IsExpired() {
		return fmt.Errorf("%w: expired at %s", ErrTTLExpired, e.Authority.TTL.ExpiresAt)
	}
	for _, b := range e.Authority.Budgets {
		if b.IsExhausted() {
			return fmt.Errorf("%w: %s used %d limit %d", ErrBudgetSpent, b.Resource, b.Used, b.Limit)
		}
	}
	return nil
}

// Builder constructs an Envelope field by field, mirroring the gateway
// SDK's fluent request-building style.
type Builder struct {
	actor      *Actor
	resource   *Resource
	action     *Action
	instrument *Instrument
	recipient  *Recipient
	source     *Source
	authority  *Authority
	bodyType   *BodyType
	body       json.RawMessage
	trace      *TraceContext
	reasoning  *Reasoning
}

// NewBuilder starts a new envelope builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Actor(a Actor) *Builder             { b.actor = &a; return b }
func (b *Builder) Resource(r Resource) *Builder       { b.resource = &r; return b }
func (b *Builder) Action(a Action) *Builder           { b.action = &a; return b }
func (b *Builder) Instrument(i Instrument) *Builder   { b.instrument = &i; return b }
func (b *Builder) Recipient(r Recipient) *Builder     { b.recipient = &r; return b }
func (b *Builder) Source(s Source) *Builder           { b.source = &s; return b }
func (b *Builder) Authority(a Authority) *Builder     { b.authority = &a; return b }
func (b *Builder) BodyType(t BodyType) *Builder       { b.bodyType = &t; return b }
func (b *Builder) Body(body json.RawMessage) *Builder { b.body = body; return b }
func (b *Builder) Trace(t TraceContext) *Builder      { b.trace = &t; return b }
func (b *Builder) Reasoning(h Reasoning) *Builder     { b.reasoning = &h; return b }

// Build assembles and validates the envelope, filling in version,
// identifier, and creation timestamp.
func (b *Builder) Build() (*Envelope, error) {
	if b.actor == nil {
		return nil, fmt.Errorf("%w: actor", ErrMissingField)
	}
	if b.resource == nil {
		return nil, fmt.Errorf("%w: resource", ErrMissingField)
	}
	if b.action == nil {
		return nil, fmt.Errorf("%w: action", ErrMissingField)
	}
	if b.authority == nil {
		return nil, fmt.Errorf("%w: authority", ErrMissingField)
	}

	bodyType := BodyType{Name: "generic", Version: V0_1_0(), ContentType: "application/json"}
	if b.bodyType != nil {
		bodyType = *b.bodyType
	}
	body := b.body
	if body == nil {
		body = json.RawMessage("{}")
	}

	env := &Envelope{
		Version:    V0_1_0(),
		ID:         NewID(),
		Actor:      *b.actor,
		Resource:   *b.resource,
		Action:     *b.action,
		Instrument: b.instrument,
		Recipient:  b.recipient,
		Source:     b.source,
		Authority:  *b.authority,
		BodyType:   bodyType,
		Body:       body,
		Meta: Meta{
			CreatedAt: time.Now().UTC(),
			Trace:     b.trace,
			Reasoning: b.reasoning,
		},
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}
