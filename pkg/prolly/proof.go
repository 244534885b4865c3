// Copyright 2025 Certen Protocol

package prolly

import (
	"bytes"

	cid "github.com/ipfs/go-cid"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
)

// Proof is a membership proof for a single key: the leaf node that holds
// it plus the sibling hashes needed to recompute every ancestor hash up to
// the root.
type Proof struct {
	Key      []byte
	ValueCID cid.Cid
	Leaf     *Node
	Path     []ProofStep
	RootHash [32]byte
}

// ProofStep captures one level of the path from leaf to root: the hash of
// the node actually on the path, its siblings at that level (left to
// right, excluding itself), and its position among them.
type ProofStep struct {
	Level         uint8
	NodeHash      [32]byte
	SiblingHashes [][32]byte
	Position      uint16
}

// Verify recomputes the root hash from the leaf and path and compares it
// against the proof's recorded root, confirming the key/value pair is
// genuinely a member of that root without needing the rest of the tree.
func (p *Proof) Verify() bool {
	found := false
	for i, k := range p.Leaf.Keys {
		if bytes.Equal(k, p.Key) {
			if !p.Leaf.Values[i].Equals(p.ValueCID) {
				return false
			}
			found = true
			break
		}
	}
	if !found {
		return false
	}

	current := p.Leaf.Hash()

	for _, step := range p.Path {
		children := make([][32]byte, 0, len(step.SiblingHashes)+1)
		children = append(children, step.SiblingHashes...)
		pos := int(step.Position)
		if pos > len(children) {
			return false
		}
		children = append(children, [32]byte{})
		copy(children[pos+1:], children[pos:])
		children[pos] = current

		var buf bytes.Buffer
		buf.WriteByte(step.Level)
		for _, child := range children {
			buf.Write(child[:])
		}
		current = canon.HashBytes(buf.Bytes())
	}

	return current == p.RootHash
}
