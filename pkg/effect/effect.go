// Copyright 2025 Certen Protocol

// Package effect captures the before/after state an adapter observes
// while executing an action, computes the delta between them, and
// records how (if at all) the effect can be reversed.
package effect

import (
	"time"

	"github.com/google/uuid"
	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// Captured is one recorded state change produced by dispatching an
// envelope to an adapter.
type Captured struct {
	EffectID   string               `json:"effect_id"`
	EnvelopeID envelope.ID          `json:"envelope_id"`
	Bucket     envelope.EffectBucket `json:"bucket"`
	Target     string               `json:"target"`
	TargetType string               `json:"target_type,omitempty"`
	Before     *Snapshot            `json:"before,omitempty"`
	After      *Snapshot            `json:"after,omitempty"`
	Delta      *Delta               `json:"delta,omitempty"`
	Reversible bool                 `json:"reversible"`
	Reversal   *ReversalInstructions `json:"reversal,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	Metadata   map[string]any       `json:"metadata"`
}

// New starts a captured effect with a fresh id and the current time.
func New(envelopeID envelope.ID, bucket envelope.EffectBucket, target string) *Captured {
	return &Captured{
		EffectID:   uuid.NewString(),
		EnvelopeID: envelopeID,
		Bucket:     bucket,
		Target:     target,
		Timestamp:  time.Now().UTC(),
		Metadata:   map[string]any{},
	}
}

func (c *Captured) WithBefore(s Snapshot) *Captured { c.Before = &s; return c }

func (c *Captured) WithAfter(s Snapshot) *Captured { c.After = &s; return c }

func (c *Captured) WithDelta(d Delta) *Captured { c.Delta = &d; return c }

func (c *Captured) WithReversal(instructions ReversalInstructions) *Captured {
	c.Reversible = true
	c.Reversal = &instructions
	return c
}

func (c *Captured) WithMetadata(key string, value any) *Captured {
	c.Metadata[key] = value
	return c
}

// ComputeDelta fills Delta from Before/After when both are present.
func (c *Captured) ComputeDelta() {
	if c.Before != nil && c.After != nil {
		d := ComputeDelta(*c.Before, *c.After)
		c.Delta = &d
	}
}
