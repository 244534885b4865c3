// Copyright 2025 Certen Protocol

package capability

import (
	"fmt"
	"time"

	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

// Verification is the outcome of checking a token's time validity,
// signature, and budgets.
type Verification struct {
	Valid      bool
	Errors     []string
	Warnings   []string
	VerifiedAt time.Time
}

// AccessDecision is the outcome of checking whether a token authorizes a
// specific (action, resource) pair.
type AccessDecision struct {
	Allowed bool
	Reason  string
}

// Verifier checks capability tokens against a key store holding (at
// least) the public keys of every issuer it must trust.
type Verifier struct {
	keyStore *signing.KeyStore
}

// NewVerifier creates a verifier backed by store.
func NewVerifier(store *signing.KeyStore) *Verifier {
	return &Verifier{keyStore: store}
}

// Verify checks time validity, signature, and budget exhaustion. It
// returns a non-nil Verification even when invalid; Valid is false and
// Errors explains why.
func (v *Verifier) Verify(t *Token) (*Verification, error) {
	result := &Verification{Valid: true, VerifiedAt: time.Now().UTC()}

	if !t.IsValidTime() {
		result.Valid = false
		if !time.Now().UTC().Before(t.ExpiresAt) {
			result.Errors = append(result.Errors, "token has expired")
		} else {
			result.Errors = append(result.Errors, "token is not yet valid")
		}
	}

	ok, err := v.verifySignature(t)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("signature verification error: %v", err))
	} else if !ok {
		result.Valid = false
		result.Errors = append(result.Errors, "invalid signature")
	}

	for _, b := range t.Budgets {
		if b.IsExhausted() {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("budget %q is exhausted (%d/%d)", b.Resource, b.Used, b.Limit))
		} else if b.Limit > 0 && b.Remaining() < b.Limit/10 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("budget %q is low (%d remaining)", b.Resource, b.Remaining()))
		}
	}

	return result, nil
}

func (v *Verifier) verifySignature(t *Token) (bool, error) {
	info, err := v.keyStore.GetPublicKey(t.KeyID)
	if err != nil {
		return false, err
	}
	canonical, err := t.CanonicalBytes()
	if err != nil {
		return false, err
	}
	return signing.VerifyBytes(info, canonical, t.Signature)
}

// VerifyAccess verifies t and, if valid, checks it authorizes the given
// (action, resource) pair.
func (v *Verifier) VerifyAccess(t *Token, action, resource string) (*AccessDecision, error) {
	verification, err := v.Verify(t)
	if err != nil {
		return nil, err
	}
	if !verification.Valid {
		reason := "token invalid"
		if len(verification.Errors) > 0 {
			reason = verification.Errors[0]
			for _, e := range verification.Errors[1:] {
				reason += "; " + e
			}
		}
		return &AccessDecision{Allowed: false, Reason: reason}, nil
	}
	if !t.AllowsAction(action) {
		return &AccessDecision{Allowed: false, Reason: fmt.Sprintf("action %q not allowed by token", action)}, nil
	}
	if !t.AllowsResource(resource) {
		return &AccessDecision{Allowed: false, Reason: fmt.Sprintf("resource %q not allowed by token", resource)}, nil
	}
	return &AccessDecision{Allowed: true, Reason: "access granted"}, nil
}
