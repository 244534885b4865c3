// Copyright 2025 Certen Protocol
//
// Portable Merkle receipt: a self-contained inclusion proof that a client
// can re-verify offline, without trusting the gateway that issued it.

package merkle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/sandhi-labs/aapi-vac/pkg/canon"
)

// Receipt represents a portable Merkle proof that can be independently
// verified against a merkle checkpoint root recorded in the evidence log.
//
// Verification invariants (fail-closed):
// 1. Start must be exactly 32 bytes
// 2. Anchor must be exactly 32 bytes
// 3. Each Entry.Hash must be exactly 32 bytes
// 4. Merkle recomputation from Start through Entries must equal Anchor
type Receipt struct {
	// Start is the leaf hash being proven (32 bytes, hex-encoded)
	Start string `json:"start"`

	// Anchor is the checkpoint root hash reached by applying the proof (32 bytes, hex-encoded)
	Anchor string `json:"anchor"`

	// LocalBlock is the evidence-log checkpoint sequence number this anchor belongs to
	LocalBlock uint64 `json:"localBlock"`

	// Entries is the Merkle path from Start to Anchor
	Entries []ReceiptEntry `json:"entries"`
}

// ReceiptEntry represents a single step in the Merkle proof path.
type ReceiptEntry struct {
	// Hash is the sibling hash at this level (32 bytes, hex-encoded)
	Hash string `json:"hash"`

	// Right indicates the position of the sibling:
	// - true: sibling is on the right, compute InternalHash(current, sibling)
	// - false: sibling is on the left, compute InternalHash(sibling, current)
	Right bool `json:"right"`
}

// BinaryReceipt is the binary form of Receipt for efficient storage/transmission.
type BinaryReceipt struct {
	Start      [32]byte             `json:"start"`
	Anchor     [32]byte             `json:"anchor"`
	LocalBlock uint64               `json:"localBlock"`
	Entries    []BinaryReceiptEntry `json:"entries"`
}

// BinaryReceiptEntry is the binary form of ReceiptEntry.
type BinaryReceiptEntry struct {
	Hash  [32]byte `json:"hash"`
	Right bool     `json:"right"`
}

// Validate verifies the receipt structure and Merkle recomputation.
// Returns nil if valid, error otherwise (fail-closed).
func (r *Receipt) Validate() error {
	startHex, err := mustHex32Lower(r.Start, "receipt.start")
	if err != nil {
		return err
	}
	anchorHex, err := mustHex32Lower(r.Anchor, "receipt.anchor")
	if err != nil {
		return err
	}

	start, _ := hex.DecodeString(startHex)
	anchor, _ := hex.DecodeString(anchorHex)

	current, err := r.walk(start)
	if err != nil {
		return err
	}

	if !bytes.Equal(current, anchor) {
		return fmt.Errorf("merkle recomputation mismatch: computed=%x, expected=%x", current, anchor)
	}
	return nil
}

// ComputeRoot recomputes the Merkle root from Start through Entries.
// Does not validate - use Validate() first.
func (r *Receipt) ComputeRoot() ([32]byte, error) {
	startHex, err := mustHex32Lower(r.Start, "receipt.start")
	if err != nil {
		return [32]byte{}, err
	}
	start, _ := hex.DecodeString(startHex)

	current, err := r.walk(start)
	if err != nil {
		return [32]byte{}, err
	}

	var result [32]byte
	copy(result[:], current)
	return result, nil
}

func (r *Receipt) walk(start []byte) ([]byte, error) {
	var current [32]byte
	copy(current[:], start)

	for i, entry := range r.Entries {
		entryHex, err := mustHex32Lower(entry.Hash, fmt.Sprintf("receipt.entries[%d].hash", i))
		if err != nil {
			return nil, err
		}
		siblingBytes, _ := hex.DecodeString(entryHex)
		var sibling [32]byte
		copy(sibling[:], siblingBytes)

		if entry.Right {
			current = canon.InternalHash(current, sibling)
		} else {
			current = canon.InternalHash(sibling, current)
		}
	}
	return current[:], nil
}

// ToBinary converts the hex-encoded receipt to binary form.
func (r *Receipt) ToBinary() (*BinaryReceipt, error) {
	startBytes, err := hex.DecodeString(r.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start hash: %w", err)
	}
	anchorBytes, err := hex.DecodeString(r.Anchor)
	if err != nil {
		return nil, fmt.Errorf("invalid anchor hash: %w", err)
	}

	br := &BinaryReceipt{
		LocalBlock: r.LocalBlock,
		Entries:    make([]BinaryReceiptEntry, len(r.Entries)),
	}
	copy(br.Start[:], startBytes)
	copy(br.Anchor[:], anchorBytes)

	for i, entry := range r.Entries {
		entryBytes, err := hex.DecodeString(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid entry[%d] hash: %w", i, err)
		}
		copy(br.Entries[i].Hash[:], entryBytes)
		br.Entries[i].Right = entry.Right
	}

	return br, nil
}

// ToHex converts a binary receipt back to hex-encoded form.
func (br *BinaryReceipt) ToHex() *Receipt {
	r := &Receipt{
		Start:      hex.EncodeToString(br.Start[:]),
		Anchor:     hex.EncodeToString(br.Anchor[:]),
		LocalBlock: br.LocalBlock,
		Entries:    make([]ReceiptEntry, len(br.Entries)),
	}
	for i, entry := range br.Entries {
		r.Entries[i] = ReceiptEntry{
			Hash:  hex.EncodeToString(entry.Hash[:]),
			Right: entry.Right,
		}
	}
	return r
}

// Validate verifies the binary receipt structure and Merkle recomputation.
func (br *BinaryReceipt) Validate() error {
	current := br.Start
	for _, entry := range br.Entries {
		if entry.Right {
			current = canon.InternalHash(current, entry.Hash)
		} else {
			current = canon.InternalHash(entry.Hash, current)
		}
	}
	if current != br.Anchor {
		return fmt.Errorf("merkle recomputation mismatch: computed=%x, expected=%x", current, br.Anchor)
	}
	return nil
}

// ComputeRoot recomputes the Merkle root from Start through Entries.
func (br *BinaryReceipt) ComputeRoot() [32]byte {
	current := br.Start
	for _, entry := range br.Entries {
		if entry.Right {
			current = canon.InternalHash(current, entry.Hash)
		} else {
			current = canon.InternalHash(entry.Hash, current)
		}
	}
	return current
}

func (r *Receipt) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func ReceiptFromJSON(data []byte) (*Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ProofToReceipt converts an InclusionProof generated by a Tree into a
// portable Receipt, so clients can re-verify without depending on the Tree
// type or holding the full leaf set.
func ProofToReceipt(proof *InclusionProof, checkpointSeq uint64) *Receipt {
	r := &Receipt{
		Start:      proof.LeafHash,
		Anchor:     proof.MerkleRoot,
		LocalBlock: checkpointSeq,
		Entries:    make([]ReceiptEntry, len(proof.Path)),
	}
	for i, node := range proof.Path {
		r.Entries[i] = ReceiptEntry{
			Hash:  node.Hash,
			Right: node.Position == Right,
		}
	}
	return r
}

// mustHex32Lower validates that a hex string is exactly 32 bytes (64 hex chars).
func mustHex32Lower(s string, label string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s: empty", label)
	}
	if len(s) != 64 {
		return "", fmt.Errorf("%s: expected 64 hex chars (32 bytes), got len=%d", label, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("%s: invalid hex: %w", label, err)
	}
	return s, nil
}
