// Copyright 2025 Certen Protocol

package effect

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangeType classifies the relationship between a before and after
// snapshot.
type ChangeType string

const (
	ChangeCreated   ChangeType = "created"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
)

// Delta is the computed difference between two snapshots.
type Delta struct {
	ChangeType ChangeType    `json:"change_type"`
	BeforeHash string        `json:"before_hash"`
	AfterHash  string        `json:"after_hash"`
	SizeDelta  *int64        `json:"size_delta,omitempty"`
	JSONPatch  []JSONPatchOp `json:"json_patch,omitempty"`
	Summary    string        `json:"summary,omitempty"`
}

// JSONPatchOp is a single RFC 6902 operation.
type JSONPatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
}

// ComputeDelta classifies the change between before and after, computes
// a size delta when both sides carry a size, and (when both sides
// carried captured JSON content) a simplified JSON patch.
func ComputeDelta(before, after Snapshot) Delta {
	var changeType ChangeType
	switch {
	case before.Hash == NotExistsHash:
		changeType = ChangeCreated
	case after.Hash == NotExistsHash:
		changeType = ChangeDeleted
	case before.Hash == after.Hash:
		changeType = ChangeUnchanged
	default:
		changeType = ChangeModified
	}

	var sizeDelta *int64
	if before.Size != nil && after.Size != nil {
		d := int64(*after.Size) - int64(*before.Size)
		sizeDelta = &d
	}

	var patch []JSONPatchOp
	if before.Content != nil && after.Content != nil {
		patch = computeJSONPatch("", before.Content, after.Content)
	}

	return Delta{
		ChangeType: changeType,
		BeforeHash: before.Hash,
		AfterHash:  after.Hash,
		SizeDelta:  sizeDelta,
		JSONPatch:  patch,
	}
}

// computeJSONPatch walks two parsed JSON documents and emits add/remove/
// replace operations. Object keys are diffed recursively; arrays and
// scalars are replaced wholesale when they differ, matching the
// simplified (non-LCS) patch algorithm this is ported from.
func computeJSONPatch(path string, beforeRaw, afterRaw json.RawMessage) []JSONPatchOp {
	var ops []JSONPatchOp

	if bytes.Equal(bytes.TrimSpace(beforeRaw), bytes.TrimSpace(afterRaw)) {
		return ops
	}

	var before, after map[string]json.RawMessage
	beforeIsObj := json.Unmarshal(beforeRaw, &before) == nil
	afterIsObj := json.Unmarshal(afterRaw, &after) == nil

	if beforeIsObj && afterIsObj {
		for key := range before {
			if _, ok := after[key]; !ok {
				ops = append(ops, JSONPatchOp{Op: "remove", Path: fmt.Sprintf("%s/%s", path, key)})
			}
		}
		for key, afterVal := range after {
			newPath := fmt.Sprintf("%s/%s", path, key)
			if beforeVal, ok := before[key]; ok {
				if !bytes.Equal(bytes.TrimSpace(beforeVal), bytes.TrimSpace(afterVal)) {
					ops = append(ops, computeJSONPatch(newPath, beforeVal, afterVal)...)
				}
			} else {
				ops = append(ops, JSONPatchOp{Op: "add", Path: newPath, Value: afterVal})
			}
		}
		return ops
	}

	return []JSONPatchOp{{Op: "replace", Path: path, Value: afterRaw}}
}

// ReversalMethod names how a reversible effect can be undone.
type ReversalMethod string

const (
	ReversalRestoreState     ReversalMethod = "restore_state"
	ReversalInverseOperation ReversalMethod = "inverse_operation"
	ReversalDelete           ReversalMethod = "delete"
	ReversalRecreate         ReversalMethod = "recreate"
	ReversalCustom           ReversalMethod = "custom"
)

// ReversalInstructions is the data an adapter needs to undo an effect.
type ReversalInstructions struct {
	Method      ReversalMethod  `json:"method"`
	Data        json.RawMessage `json:"data"`
	Description string          `json:"description,omitempty"`
}
