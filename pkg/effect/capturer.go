// Copyright 2025 Certen Protocol

package effect

import (
	"encoding/json"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// Capturer accumulates the effects an adapter records while executing a
// single envelope.
type Capturer struct {
	envelopeID envelope.ID
	effects    []*Captured
}

// NewCapturer starts an empty capturer for envelopeID.
func NewCapturer(envelopeID envelope.ID) *Capturer {
	return &Capturer{envelopeID: envelopeID}
}

// Start begins building a new effect against bucket/target.
func (c *Capturer) Start(bucket envelope.EffectBucket, target string) *Builder {
	return NewBuilder(c.envelopeID, bucket, target)
}

// Add records a completed effect.
func (c *Capturer) Add(e *Captured) { c.effects = append(c.effects, e) }

// Finish returns every effect recorded so far.
func (c *Capturer) Finish() []*Captured { return c.effects }

// Builder constructs a Captured effect step by step, computing its delta
// on Build when both before and after states were supplied.
type Builder struct {
	effect *Captured
}

// NewBuilder starts building an effect.
func NewBuilder(envelopeID envelope.ID, bucket envelope.EffectBucket, target string) *Builder {
	return &Builder{effect: New(envelopeID, bucket, target)}
}

func (b *Builder) TargetType(t string) *Builder { b.effect.TargetType = t; return b }

func (b *Builder) Before(s Snapshot) *Builder { b.effect.Before = &s; return b }

func (b *Builder) After(s Snapshot) *Builder { b.effect.After = &s; return b }

func (b *Builder) Reversible(method ReversalMethod, data any) *Builder {
	raw, _ := json.Marshal(data)
	b.effect.Reversible = true
	b.effect.Reversal = &ReversalInstructions{Method: method, Data: raw}
	return b
}

func (b *Builder) Metadata(key string, value any) *Builder {
	b.effect.Metadata[key] = value
	return b
}

// Build finalizes the effect, computing its delta from before/after if
// both are present.
func (b *Builder) Build() *Captured {
	b.effect.ComputeDelta()
	return b.effect
}
