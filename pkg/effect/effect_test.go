// Copyright 2025 Certen Protocol

package effect

import (
	"testing"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

func TestSnapshotFromBytes(t *testing.T) {
	s := SnapshotFromBytes([]byte("hello world"))
	if s.Hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if s.Size == nil || *s.Size != 11 {
		t.Fatalf("expected size 11, got %v", s.Size)
	}
}

func TestSnapshotFromJSON(t *testing.T) {
	s, err := SnapshotFromJSON(map[string]any{"key": "value"})
	if err != nil {
		t.Fatal(err)
	}
	if s.ContentType != "application/json" {
		t.Fatalf("got content type %q", s.ContentType)
	}
}

func TestDeltaComputeCreated(t *testing.T) {
	before := SnapshotNotExists()
	after := SnapshotFromBytes([]byte("new content"))
	delta := ComputeDelta(before, after)
	if delta.ChangeType != ChangeCreated {
		t.Fatalf("got change type %v", delta.ChangeType)
	}
}

func TestDeltaComputeDeleted(t *testing.T) {
	before := SnapshotFromBytes([]byte("old content"))
	after := SnapshotNotExists()
	delta := ComputeDelta(before, after)
	if delta.ChangeType != ChangeDeleted {
		t.Fatalf("got change type %v", delta.ChangeType)
	}
}

func TestDeltaComputeModified(t *testing.T) {
	before := SnapshotFromBytes([]byte("old"))
	after := SnapshotFromBytes([]byte("new"))
	delta := ComputeDelta(before, after)
	if delta.ChangeType != ChangeModified {
		t.Fatalf("got change type %v", delta.ChangeType)
	}
}

func TestDeltaComputeUnchanged(t *testing.T) {
	before := SnapshotFromBytes([]byte("same"))
	after := SnapshotFromBytes([]byte("same"))
	delta := ComputeDelta(before, after)
	if delta.ChangeType != ChangeUnchanged {
		t.Fatalf("got change type %v", delta.ChangeType)
	}
}

func TestJSONPatchDetectsAddAndModify(t *testing.T) {
	before, err := SnapshotFromJSON(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatal(err)
	}
	after, err := SnapshotFromJSON(map[string]any{"a": 1, "b": 3, "c": 4})
	if err != nil {
		t.Fatal(err)
	}
	delta := ComputeDelta(before, after)
	if len(delta.JSONPatch) == 0 {
		t.Fatal("expected a non-empty JSON patch")
	}
}

func TestBuilderComputesDeltaAndReversal(t *testing.T) {
	e := NewBuilder("env-123", envelope.EffectUpdate, "file:/test.txt").
		TargetType("file").
		Before(SnapshotFromBytes([]byte("old"))).
		After(SnapshotFromBytes([]byte("new"))).
		Reversible(ReversalRestoreState, map[string]any{"backup": "path"}).
		Build()

	if !e.Reversible {
		t.Fatal("expected reversible effect")
	}
	if e.Delta == nil {
		t.Fatal("expected computed delta")
	}
	if e.Delta.ChangeType != ChangeModified {
		t.Fatalf("got change type %v", e.Delta.ChangeType)
	}
}

func TestCapturerAccumulatesEffects(t *testing.T) {
	capturer := NewCapturer("env-123")
	e1 := capturer.Start(envelope.EffectCreate, "file:/a").Build()
	capturer.Add(e1)
	e2 := capturer.Start(envelope.EffectDelete, "file:/b").Build()
	capturer.Add(e2)

	effects := capturer.Finish()
	if len(effects) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effects))
	}
}
