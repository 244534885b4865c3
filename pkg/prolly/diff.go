// Copyright 2025 Certen Protocol

package prolly

import (
	"bytes"
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"
)

// ChangeKind classifies a single key's delta between two tree roots.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
	ChangeModify ChangeKind = "modify"
)

// Change describes one key's difference between an old and new tree root.
type Change struct {
	Key      []byte
	Kind     ChangeKind
	OldValue cid.Cid
	NewValue cid.Cid
}

// Diff walks two tree roots in lockstep and returns the add/remove/modify
// deltas between them, keyed by bytes. Subtrees whose node hashes are
// identical are skipped entirely without being read, since content
// addressing guarantees identical hashes mean identical contents.
//
// from and to may live in different stores (e.g. a local root and a root
// fetched from a peer); each side is read through its own store.
func Diff(ctx context.Context, fromStore NodeStore, fromRoot cid.Cid, toStore NodeStore, toRoot cid.Cid) ([]Change, error) {
	if fromRoot.Equals(toRoot) {
		return nil, nil
	}

	fromNode, err := fromStore.Get(ctx, fromRoot)
	if err != nil {
		return nil, fmt.Errorf("prolly: diff: read from-root %s: %w", fromRoot, err)
	}
	toNode, err := toStore.Get(ctx, toRoot)
	if err != nil {
		return nil, fmt.Errorf("prolly: diff: read to-root %s: %w", toRoot, err)
	}

	return diffNodes(ctx, fromStore, fromNode, toStore, toNode)
}

func diffNodes(ctx context.Context, fromStore NodeStore, from *Node, toStore NodeStore, to *Node) ([]Change, error) {
	if from.Hash() == to.Hash() {
		return nil, nil
	}

	if from.IsLeaf() && to.IsLeaf() {
		return diffLeaves(from, to), nil
	}

	if from.IsLeaf() != to.IsLeaf() {
		// A level mismatch only happens across a tree shape change; treat
		// each side's own entries as a remove-then-add rather than trying
		// to align incompatible levels.
		var changes []Change
		changes = append(changes, leafOrSubtreeRemovals(from)...)
		changes = append(changes, leafOrSubtreeAdditions(to)...)
		return changes, nil
	}

	return diffInternal(ctx, fromStore, from, toStore, to)
}

func diffLeaves(from, to *Node) []Change {
	var changes []Change

	fromIdx, toIdx := 0, 0
	for fromIdx < len(from.Keys) && toIdx < len(to.Keys) {
		cmp := bytes.Compare(from.Keys[fromIdx], to.Keys[toIdx])
		switch {
		case cmp < 0:
			changes = append(changes, Change{Key: from.Keys[fromIdx], Kind: ChangeRemove, OldValue: from.Values[fromIdx]})
			fromIdx++
		case cmp > 0:
			changes = append(changes, Change{Key: to.Keys[toIdx], Kind: ChangeAdd, NewValue: to.Values[toIdx]})
			toIdx++
		default:
			if !from.Values[fromIdx].Equals(to.Values[toIdx]) {
				changes = append(changes, Change{
					Key:      from.Keys[fromIdx],
					Kind:     ChangeModify,
					OldValue: from.Values[fromIdx],
					NewValue: to.Values[toIdx],
				})
			}
			fromIdx++
			toIdx++
		}
	}
	for ; fromIdx < len(from.Keys); fromIdx++ {
		changes = append(changes, Change{Key: from.Keys[fromIdx], Kind: ChangeRemove, OldValue: from.Values[fromIdx]})
	}
	for ; toIdx < len(to.Keys); toIdx++ {
		changes = append(changes, Change{Key: to.Keys[toIdx], Kind: ChangeAdd, NewValue: to.Values[toIdx]})
	}

	return changes
}

// leafOrSubtreeRemovals/Additions are used on the level-mismatch path and
// for a child present on only one side. They emit one change per entry of
// n itself without descending: for a leaf these are its keys and values;
// for an internal node they are its separator keys and child CIDs, not the
// leaf keys beneath them.
func leafOrSubtreeRemovals(n *Node) []Change {
	changes := make([]Change, 0, len(n.Keys))
	for i, key := range n.Keys {
		changes = append(changes, Change{Key: key, Kind: ChangeRemove, OldValue: n.Values[i]})
	}
	return changes
}

func leafOrSubtreeAdditions(n *Node) []Change {
	changes := make([]Change, 0, len(n.Keys))
	for i, key := range n.Keys {
		changes = append(changes, Change{Key: key, Kind: ChangeAdd, NewValue: n.Values[i]})
	}
	return changes
}

func diffInternal(ctx context.Context, fromStore NodeStore, from *Node, toStore NodeStore, to *Node) ([]Change, error) {
	fromChildren := map[string]cid.Cid{}
	for i, key := range from.Keys {
		fromChildren[string(key)] = from.Values[i]
	}
	toChildren := map[string]cid.Cid{}
	for i, key := range to.Keys {
		toChildren[string(key)] = to.Values[i]
	}

	var changes []Change

	for key, fromChildID := range fromChildren {
		toChildID, ok := toChildren[key]
		if !ok {
			child, err := fromStore.Get(ctx, fromChildID)
			if err != nil {
				return nil, fmt.Errorf("prolly: diff: read subtree %s: %w", fromChildID, err)
			}
			changes = append(changes, leafOrSubtreeRemovals(child)...)
			continue
		}
		if fromChildID.Equals(toChildID) {
			continue
		}
		fromChild, err := fromStore.Get(ctx, fromChildID)
		if err != nil {
			return nil, fmt.Errorf("prolly: diff: read subtree %s: %w", fromChildID, err)
		}
		toChild, err := toStore.Get(ctx, toChildID)
		if err != nil {
			return nil, fmt.Errorf("prolly: diff: read subtree %s: %w", toChildID, err)
		}
		sub, err := diffNodes(ctx, fromStore, fromChild, toStore, toChild)
		if err != nil {
			return nil, err
		}
		changes = append(changes, sub...)
	}

	for key, toChildID := range toChildren {
		if _, ok := fromChildren[key]; ok {
			continue
		}
		child, err := toStore.Get(ctx, toChildID)
		if err != nil {
			return nil, fmt.Errorf("prolly: diff: read subtree %s: %w", toChildID, err)
		}
		changes = append(changes, leafOrSubtreeAdditions(child)...)
	}

	return changes, nil
}
