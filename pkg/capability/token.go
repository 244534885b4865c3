// Copyright 2025 Certen Protocol
//
// Package capability implements Macaroon-style capability tokens:
// signed, attenuable authorization grants scoped to a set of action and
// resource glob patterns, with budgets, caveats, and a delegation chain.
package capability

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandhi-labs/aapi-vac/pkg/canon"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

var (
	ErrMissingField    = errors.New("capability: missing required field")
	ErrTokenExpired    = errors.New("capability: token expired")
	ErrTokenNotYetValid = errors.New("capability: token not yet valid")
	ErrCannotDelegate  = errors.New("capability: delegation depth exceeded")
	ErrInvalidSignature = errors.New("capability: invalid signature")
)

// CaveatType classifies the interpretation of a Caveat's Value.
type CaveatType string

const (
	CaveatTimeWindow    CaveatType = "time_window"
	CaveatIPAddress     CaveatType = "ip_address"
	CaveatGeo           CaveatType = "geo"
	CaveatRateLimit     CaveatType = "rate_limit"
	CaveatRequireHeader CaveatType = "require_header"
	CaveatRequireClaim  CaveatType = "require_claim"
	CaveatThirdParty    CaveatType = "third_party"
)

// Caveat further restricts a token beyond its action/resource scopes.
// Custom caveat types not in the enumerated set may be carried as a plain
// string in Type.
type Caveat struct {
	Type        string `json:"caveatType"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// Token is a signed, attenuable capability grant.
type Token struct {
	TokenID            string              `json:"tokenId"`
	Version            uint32              `json:"version"`
	Issuer             envelope.PrincipalID `json:"issuer"`
	Subject            envelope.PrincipalID `json:"subject"`
	Audience           string              `json:"audience,omitempty"`
	Actions            []string            `json:"actions"`
	Resources          []string            `json:"resources"`
	Namespaces         []string            `json:"namespaces,omitempty"`
	IssuedAt           time.Time           `json:"issuedAt"`
	NotBefore          *time.Time          `json:"notBefore,omitempty"`
	ExpiresAt          time.Time           `json:"expiresAt"`
	Budgets            []envelope.Budget   `json:"budgets,omitempty"`
	Caveats            []Caveat            `json:"caveats,omitempty"`
	ParentTokenID      string              `json:"parentTokenId,omitempty"`
	DelegationDepth    uint32              `json:"delegationDepth"`
	MaxDelegationDepth *uint32             `json:"maxDelegationDepth,omitempty"`
	KeyID              signing.KeyID       `json:"keyId"`
	Signature          string              `json:"signature"`
}

// IsValidTime reports whether the token is within its not-before/expiry
// window at the current time.
func (t *Token) IsValidTime() bool {
	now := time.Now().UTC()
	if !now.Before(t.ExpiresAt) {
		return false
	}
	if t.NotBefore != nil && now.Before(*t.NotBefore) {
		return false
	}
	return true
}

// AllowsAction reports whether action matches one of the token's action
// glob patterns.
func (t *Token) AllowsAction(action string) bool {
	for _, pattern := range t.Actions {
		if GlobMatch(pattern, action) {
			return true
		}
	}
	return false
}

// AllowsResource reports whether resource matches one of the token's
// resource glob patterns.
func (t *Token) AllowsResource(resource string) bool {
	for _, pattern := range t.Resources {
		if GlobMatch(pattern, resource) {
			return true
		}
	}
	return false
}

// AllowsNamespace reports whether namespace is permitted. A token with no
// namespace restrictions allows every namespace.
func (t *Token) AllowsNamespace(namespace string) bool {
	if len(t.Namespaces) == 0 {
		return true
	}
	for _, ns := range t.Namespaces {
		if len(namespace) >= len(ns) && namespace[:len(ns)] == ns {
			return true
		}
	}
	return false
}

// CanDelegate reports whether the token's delegation depth still permits
// attenuating a child token from it.
func (t *Token) CanDelegate() bool {
	if t.MaxDelegationDepth == nil {
		return true
	}
	return t.DelegationDepth < *t.MaxDelegationDepth
}

// CanonicalBytes returns the token's canonical JSON with Signature
// cleared — what is actually signed and hashed.
func (t *Token) CanonicalBytes() ([]byte, error) {
	cp := *t
	cp.Signature = ""
	out, err := canon.Canonicalize(&cp)
	if err != nil {
		return nil, fmt.Errorf("capability: canonicalize: %w", err)
	}
	return out.CanonicalBytes, nil
}

// ComputeHash returns the hex-encoded SHA-256 hash of the token's
// canonical bytes.
func (t *Token) ComputeHash() (string, error) {
	canonical, err := t.CanonicalBytes()
	if err != nil {
		return "", err
	}
	h := canon.HashBytes(canonical)
	return hex.EncodeToString(h[:]), nil
}

// Builder constructs and signs a root Token.
type Builder struct {
	issuer             envelope.PrincipalID
	subject            envelope.PrincipalID
	audience           string
	actions            []string
	resources          []string
	namespaces         []string
	ttl                time.Duration
	notBefore          *time.Time
	budgets            []envelope.Budget
	caveats            []Caveat
	parentTokenID      string
	delegationDepth    uint32
	maxDelegationDepth *uint32
}

// NewBuilder starts a token builder with the default 1-hour TTL.
func NewBuilder() *Builder {
	return &Builder{ttl: time.Hour}
}

func (b *Builder) Issuer(p envelope.PrincipalID) *Builder   { b.issuer = p; return b }
func (b *Builder) Subject(p envelope.PrincipalID) *Builder  { b.subject = p; return b }
func (b *Builder) Audience(a string) *Builder               { b.audience = a; return b }
func (b *Builder) Action(a string) *Builder                 { b.actions = append(b.actions, a); return b }
func (b *Builder) Actions(a []string) *Builder               { b.actions = a; return b }
func (b *Builder) Resource(r string) *Builder                { b.resources = append(b.resources, r); return b }
func (b *Builder) Resources(r []string) *Builder              { b.resources = r; return b }
func (b *Builder) Namespace(ns string) *Builder                { b.namespaces = append(b.namespaces, ns); return b }
func (b *Builder) TTL(d time.Duration) *Builder                { b.ttl = d; return b }
func (b *Builder) NotBefore(t time.Time) *Builder               { b.notBefore = &t; return b }
func (b *Builder) Budget(bud envelope.Budget) *Builder          { b.budgets = append(b.budgets, bud); return b }
func (b *Builder) CaveatOf(c Caveat) *Builder                   { b.caveats = append(b.caveats, c); return b }
func (b *Builder) ParentToken(id string, depth uint32) *Builder { b.parentTokenID = id; b.delegationDepth = depth; return b }
func (b *Builder) MaxDelegationDepth(d uint32) *Builder         { b.maxDelegationDepth = &d; return b }

// BuildAndSign assembles a new root token and signs it with kp.
func (b *Builder) BuildAndSign(kp *signing.KeyPair) (*Token, error) {
	if b.issuer == "" {
		return nil, fmt.Errorf("%w: issuer", ErrMissingField)
	}
	if b.subject == "" {
		return nil, fmt.Errorf("%w: subject", ErrMissingField)
	}
	if len(b.actions) == 0 {
		return nil, fmt.Errorf("%w: at least one action", ErrMissingField)
	}
	if len(b.resources) == 0 {
		return nil, fmt.Errorf("%w: at least one resource", ErrMissingField)
	}

	now := time.Now().UTC()
	token := &Token{
		TokenID:            uuid.NewString(),
		Version:            1,
		Issuer:             b.issuer,
		Subject:            b.subject,
		Audience:           b.audience,
		Actions:            b.actions,
		Resources:          b.resources,
		Namespaces:         b.namespaces,
		IssuedAt:           now,
		NotBefore:          b.notBefore,
		ExpiresAt:          now.Add(b.ttl),
		Budgets:            b.budgets,
		Caveats:            b.caveats,
		ParentTokenID:      b.parentTokenID,
		DelegationDepth:    b.delegationDepth,
		MaxDelegationDepth: b.maxDelegationDepth,
		KeyID:              kp.ID,
	}
	if err := signToken(token, kp); err != nil {
		return nil, err
	}
	return token, nil
}

func signToken(t *Token, kp *signing.KeyPair) error {
	canonical, err := t.CanonicalBytes()
	if err != nil {
		return err
	}
	sig, err := signing.SignBytes(kp, canonical)
	if err != nil {
		return fmt.Errorf("capability: sign token: %w", err)
	}
	t.Signature = sig
	return nil
}
