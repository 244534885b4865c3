// Copyright 2025 Certen Protocol

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sandhi-labs/aapi-vac/pkg/capability"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// ErrCapabilityNotFound is returned when a CapRef does not resolve to any
// registered token.
var ErrCapabilityNotFound = errors.New("gateway: capability reference not found")

// CapabilityResolver turns an envelope's Authority.Cap slot into the
// concrete token it names, either by decoding an inline token or by
// looking one up by reference.
type CapabilityResolver interface {
	Resolve(ctx context.Context, ref envelope.CapabilityRef) (*capability.Token, error)
}

// MapCapabilityResolver resolves CapRef lookups against an in-memory
// registry of previously issued tokens, keyed by TokenID. Inline tokens
// are decoded directly and never consult the map.
type MapCapabilityResolver struct {
	mu     sync.RWMutex
	tokens map[string]*capability.Token
}

// NewMapCapabilityResolver returns an empty resolver.
func NewMapCapabilityResolver() *MapCapabilityResolver {
	return &MapCapabilityResolver{tokens: map[string]*capability.Token{}}
}

// Register makes t resolvable by its TokenID.
func (m *MapCapabilityResolver) Register(t *capability.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenID] = t
}

// Resolve implements CapabilityResolver.
func (m *MapCapabilityResolver) Resolve(ctx context.Context, ref envelope.CapabilityRef) (*capability.Token, error) {
	if ref.Inline != nil {
		var t capability.Token
		if err := json.Unmarshal(*ref.Inline, &t); err != nil {
			return nil, fmt.Errorf("gateway: decode inline capability: %w", err)
		}
		return &t, nil
	}
	if ref.CapRef == "" {
		return nil, fmt.Errorf("%w: empty capability reference", ErrCapabilityNotFound)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[ref.CapRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityNotFound, ref.CapRef)
	}
	return t, nil
}
