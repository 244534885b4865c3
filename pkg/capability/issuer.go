// Copyright 2025 Certen Protocol

package capability

import (
	"time"

	"github.com/google/uuid"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Issuer mints root tokens and attenuates child tokens from a parent,
// always signing with its own key.
type Issuer struct {
	keyStore  *signing.KeyStore
	keyID     signing.KeyID
	principal envelope.PrincipalID
}

// NewIssuer creates an issuer that signs with keyID from store.
func NewIssuer(store *signing.KeyStore, keyID signing.KeyID, principal envelope.PrincipalID) *Issuer {
	return &Issuer{keyStore: store, keyID: keyID, principal: principal}
}

// Issue mints a new root token from b, overriding its issuer with this
// Issuer's principal.
func (i *Issuer) Issue(b *Builder) (*Token, error) {
	kp, err := i.keyStore.GetKey(i.keyID)
	if err != nil {
		return nil, err
	}
	b.Issuer(i.principal)
	return b.BuildAndSign(kp)
}

// Attenuation describes the narrowing requested when deriving a child
// token from a parent. Empty Actions/Resources/Namespaces inherit the
// parent's in full rather than narrowing to nothing.
type Attenuation struct {
	Actions           []string
	Resources         []string
	Namespaces        []string
	TTL               *time.Duration
	NotBefore         *time.Time
	Budgets           []envelope.Budget
	AdditionalCaveats []Caveat
	Audience          string
}

// Attenuate derives a child token from parent, narrowed per att and
// assigned to newSubject. The child's scopes are the intersection of the
// parent's with the request; its TTL cannot exceed the parent's remaining
// validity; budgets are merged by taking the per-resource minimum limit;
// caveats are concatenated; delegation depth is parent+1.
func (i *Issuer) Attenuate(parent *Token, newSubject envelope.PrincipalID, att Attenuation) (*Token, error) {
	if !parent.IsValidTime() {
		return nil, ErrTokenExpired
	}
	if !parent.CanDelegate() {
		return nil, ErrCannotDelegate
	}

	kp, err := i.keyStore.GetKey(i.keyID)
	if err != nil {
		return nil, err
	}

	actions := parent.Actions
	if len(att.Actions) > 0 {
		actions = intersectAllowed(att.Actions, parent.AllowsAction)
	}
	resources := parent.Resources
	if len(att.Resources) > 0 {
		resources = intersectAllowed(att.Resources, parent.AllowsResource)
	}
	namespaces := parent.Namespaces
	if len(att.Namespaces) > 0 {
		namespaces = intersectAllowed(att.Namespaces, parent.AllowsNamespace)
	}

	maxTTL := time.Until(parent.ExpiresAt)
	ttl := maxTTL
	if att.TTL != nil && *att.TTL < maxTTL {
		ttl = *att.TTL
	}

	caveats := append(append([]Caveat{}, parent.Caveats...), att.AdditionalCaveats...)
	budgets := mergeBudgets(parent.Budgets, att.Budgets)

	audience := att.Audience
	if audience == "" {
		audience = parent.Audience
	}

	now := time.Now().UTC()
	child := &Token{
		TokenID:            uuid.NewString(),
		Version:            1,
		Issuer:             i.principal,
		Subject:            newSubject,
		Audience:           audience,
		Actions:            actions,
		Resources:          resources,
		Namespaces:         namespaces,
		IssuedAt:           now,
		NotBefore:          att.NotBefore,
		ExpiresAt:          now.Add(ttl),
		Budgets:            budgets,
		Caveats:            caveats,
		ParentTokenID:      parent.TokenID,
		DelegationDepth:    parent.DelegationDepth + 1,
		MaxDelegationDepth: parent.MaxDelegationDepth,
		KeyID:              kp.ID,
	}
	if err := signToken(child, kp); err != nil {
		return nil, err
	}
	return child, nil
}

// intersectAllowed keeps only the requested patterns the parent already
// allows, per the glob it was granted with.
func intersectAllowed(requested []string, allows func(string) bool) []string {
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		if allows(r) {
			out = append(out, r)
		}
	}
	return out
}

// mergeBudgets combines parent and child budget lists, taking the minimum
// limit for any resource present in both.
func mergeBudgets(parent, child []envelope.Budget) []envelope.Budget {
	result := make([]envelope.Budget, len(parent))
	copy(result, parent)

	for _, cb := range child {
		found := false
		for i := range result {
			if result[i].Resource == cb.Resource {
				if cb.Limit < result[i].Limit {
					result[i].Limit = cb.Limit
				}
				found = true
				break
			}
		}
		if !found {
			result = append(result, cb)
		}
	}
	return result
}
