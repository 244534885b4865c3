// Copyright 2025 Certen Protocol
//
// Typed vault objects that round-trip through the CAS via Encode/Decode.
// Field layout and cbor keys mirror the vault's original type catalogue;
// of these, only BlockHeader, ManifestRoot and VaultPatch participate in
// the sync protocol (pkg/block) — the rest are content-addressed payload
// kinds with no verification logic built on top of them yet.

package cas

import (
	cid "github.com/ipfs/go-cid"
)

// SourceKind names who or what produced an Event or ClaimBundle.
type SourceKind string

const (
	SourceSelf      SourceKind = "self"
	SourceUser      SourceKind = "user"
	SourceTool      SourceKind = "tool"
	SourceWeb       SourceKind = "web"
	SourceUntrusted SourceKind = "untrusted"
)

// Source records provenance: who produced an object and under which DID.
type Source struct {
	Kind        SourceKind `cbor:"kind"`
	PrincipalID string     `cbor:"principal_id"`
}

// VerificationStatus tracks whether a claim or event has been checked
// against a signed receipt.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// Verification links an object to the receipt CID that confirmed it.
type Verification struct {
	Status     VerificationStatus `cbor:"status"`
	ReceiptCID *cid.Cid           `cbor:"receipt_cid,omitempty"`
}

// ScoreComponents are the inputs to an object's heap-ordering score.
type ScoreComponents struct {
	Salience     float32 `cbor:"salience"`
	Recency      float32 `cbor:"recency"`
	Connectivity uint16  `cbor:"connectivity"`
}

// Event is the raw input atom: one observation or action, with its own
// entropy and importance scores and a pointer to its encoded payload.
type Event struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	Timestamp int64 `cbor:"ts"`

	ChapterHint   *string  `cbor:"chapter_hint,omitempty"`
	Actors        []string `cbor:"actors"`
	Tags          []string `cbor:"tags"`
	Entities      []string `cbor:"entities"`
	PayloadRef    cid.Cid  `cbor:"payload_ref"`
	FeatureSketch []byte   `cbor:"feature_sketch"`

	Entropy         float32         `cbor:"entropy"`
	Importance      float32         `cbor:"importance"`
	ScoreComponents ScoreComponents `cbor:"score_components"`

	Source       Source        `cbor:"source"`
	TrustTier    uint8         `cbor:"trust_tier"`
	Verification *Verification `cbor:"verification,omitempty"`

	Links    map[string]cid.Cid `cbor:"links"`
	Metadata map[string]any     `cbor:"metadata"`
}

// NewEvent returns an Event with the defaults the vault assigns to a
// freshly observed atom: mid-scale entropy and importance, full recency,
// and the lowest trust tier.
func NewEvent(ts int64, payloadRef cid.Cid, source Source) *Event {
	return &Event{
		Type:       "event",
		Version:    1,
		Timestamp:  ts,
		PayloadRef: payloadRef,
		Entropy:    0.5,
		Importance: 0.5,
		ScoreComponents: ScoreComponents{
			Salience: 0.5,
			Recency:  1.0,
		},
		Source:    source,
		TrustTier: 1,
		Links:     map[string]cid.Cid{},
		Metadata:  map[string]any{},
	}
}

// Epistemic tracks a claim's epistemic status.
type Epistemic string

const (
	EpistemicObserved  Epistemic = "observed"
	EpistemicInferred  Epistemic = "inferred"
	EpistemicVerified  Epistemic = "verified"
	EpistemicRetracted Epistemic = "retracted"
)

// ValidityRange bounds when a claim is considered valid.
type ValidityRange struct {
	From int64  `cbor:"from"`
	To   *int64 `cbor:"to,omitempty"`
}

// ClaimBundle is a structured assertion about a subject: a predicate/value
// pair with epistemic status, confidence, and evidence provenance.
type ClaimBundle struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	SubjectID     string  `cbor:"subject_id"`
	PredicateKey  string  `cbor:"predicate_key"`
	Value         any     `cbor:"value"`
	ValueType     string  `cbor:"value_type"`
	Units         *string `cbor:"units,omitempty"`

	Epistemic    Epistemic      `cbor:"epistemic"`
	AssertedTS   int64          `cbor:"asserted_ts"`
	ValidTSRange *ValidityRange `cbor:"valid_ts_range,omitempty"`
	Confidence   *float32       `cbor:"confidence,omitempty"`

	EvidenceRefs []cid.Cid `cbor:"evidence_refs"`
	Supersedes   *cid.Cid  `cbor:"supersedes,omitempty"`

	Source    Source `cbor:"source"`
	TrustTier uint8  `cbor:"trust_tier"`

	Links    map[string][]cid.Cid `cbor:"links"`
	Metadata map[string]any       `cbor:"metadata"`
}

// valueType classifies a dynamically-typed claim value the same way the
// vault's claim constructor does, for the ClaimBundle.ValueType field.
func valueType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float32, float64, int, int64, uint, uint64:
		return "number"
	case bool:
		return "bool"
	default:
		return "json"
	}
}

// NewClaimBundle returns a freshly observed, unsuperseded claim.
func NewClaimBundle(subjectID, predicateKey string, value any, source Source) *ClaimBundle {
	return &ClaimBundle{
		Type:         "claim_bundle",
		Version:      1,
		SubjectID:    subjectID,
		PredicateKey: predicateKey,
		Value:        value,
		ValueType:    valueType(value),
		Epistemic:    EpistemicObserved,
		Source:       source,
		TrustTier:    1,
		Links:        map[string][]cid.Cid{},
		Metadata:     map[string]any{},
	}
}

// EntropyBand buckets a bracket's aggregate entropy for coarse filtering.
type EntropyBand string

const (
	EntropyLow  EntropyBand = "low"
	EntropyMid  EntropyBand = "mid"
	EntropyHigh EntropyBand = "high"
)

// Bracket is a time-entropy window grouping events of similar volatility.
type Bracket struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	TMin        int64       `cbor:"t_min"`
	TMax        int64       `cbor:"t_max"`
	EntropyBand EntropyBand `cbor:"entropy_band"`
	DetailLevel uint8       `cbor:"detail_level"`

	Links      map[string]cid.Cid `cbor:"links"`
	MerkleRoot [32]byte           `cbor:"merkle_root"`
	Metadata   map[string]any     `cbor:"metadata"`
}

// NodeKind distinguishes a compression tree leaf from a summary.
type NodeKind string

const (
	NodeLeaf    NodeKind = "LEAF"
	NodeSummary NodeKind = "SUMMARY"
)

// TimeRange bounds the timestamps a compression node covers.
type TimeRange struct {
	Min int64 `cbor:"min"`
	Max int64 `cbor:"max"`
}

// CompressionNode is a node in the entropy-aware compression tree: either
// a LEAF pointing directly at events, or a SUMMARY aggregating children.
type CompressionNode struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	Kind            NodeKind        `cbor:"kind"`
	TSRange         TimeRange       `cbor:"ts_range"`
	Entropy         float32         `cbor:"entropy"`
	Importance      float32         `cbor:"importance"`
	ScoreComponents ScoreComponents `cbor:"score_components"`

	EventRefs []cid.Cid `cbor:"event_refs,omitempty"` // LEAF only

	SummaryRef *cid.Cid  `cbor:"summary_ref,omitempty"` // SUMMARY only
	Children   []cid.Cid `cbor:"children,omitempty"`    // SUMMARY only

	Links      map[string][]cid.Cid `cbor:"links"`
	MerkleHash [32]byte             `cbor:"merkle_hash"`
	Metadata   map[string]any       `cbor:"metadata"`
}

// FrameLinks ties a Frame to its owning bracket and neighboring frames.
type FrameLinks struct {
	Bracket      cid.Cid   `cbor:"bracket"`
	FrameSummary *cid.Cid  `cbor:"frame_summary,omitempty"`
	Parents      []cid.Cid `cbor:"parents"`
	Children     []cid.Cid `cbor:"children"`
}

// Frame is a snapshot page: a point-in-time view of one chapter's state.
type Frame struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	ChapterID string `cbor:"chapter_id"`
	FrameTS   int64  `cbor:"frame_ts"`

	Links      FrameLinks     `cbor:"links"`
	MerkleRoot [32]byte       `cbor:"merkle_root"`
	Metadata   map[string]any `cbor:"metadata"`
}

// Signature is a detached Ed25519 signature over a block's signing message
// (block.Message), tagged with the signer's did:key.
type Signature struct {
	PublicKey string `cbor:"public_key"`
	Signature []byte `cbor:"signature"`
}

// BlockLinks ties a block header to the patch and manifest it commits.
type BlockLinks struct {
	Patch    cid.Cid `cbor:"patch"`
	Manifest cid.Cid `cbor:"manifest"`
}

// BlockHeader is one attestation block in the vault's append-only chain.
type BlockHeader struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	BlockNo       uint64   `cbor:"block_no"`
	PrevBlockHash [32]byte `cbor:"prev_block_hash"`
	Timestamp     int64    `cbor:"ts"`

	Links      BlockLinks     `cbor:"links"`
	Signatures []Signature    `cbor:"signatures"`
	BlockHash  [32]byte       `cbor:"block_hash"`
	Metadata   map[string]any `cbor:"metadata"`
}

// ManifestRoot summarizes every index root committed by one block.
type ManifestRoot struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	BlockNo uint64 `cbor:"block_no"`

	ChapterIndexRoot [32]byte            `cbor:"chapter_index_root"`
	SnaptreeRoots    map[string][32]byte `cbor:"snaptree_roots"`

	PCNNBasisRoot [32]byte `cbor:"pcnn_basis_root"`
	PCNNMPNRoot   [32]byte `cbor:"pcnn_mpn_root"`
	PCNNIERoot    [32]byte `cbor:"pcnn_ie_root"`

	BodyCASRoot [32]byte `cbor:"body_cas_root"`

	PolicyRoot     [32]byte `cbor:"policy_root"`
	RevocationRoot [32]byte `cbor:"revocation_root"`

	ManifestHash [32]byte       `cbor:"manifest_hash"`
	Metadata     map[string]any `cbor:"metadata"`
}

// VaultPatch is the change manifest committed by one block: every CID
// added since the parent block, any refs tombstoned, and the index roots
// that moved as a result.
type VaultPatch struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	ParentBlockHash [32]byte            `cbor:"parent_block_hash"`
	AddedCIDs       []cid.Cid           `cbor:"added_cids"`
	RemovedRefs     []cid.Cid           `cbor:"removed_refs"`
	UpdatedRoots    map[string][32]byte `cbor:"updated_roots"`

	Links    map[string][]cid.Cid `cbor:"links"`
	Metadata map[string]any       `cbor:"metadata"`
}

// IEKind classifies how two memory objects interact.
type IEKind string

const (
	IEReinforce  IEKind = "reinforce"
	IEContradict IEKind = "contradict"
	IERefine     IEKind = "refine"
	IEAlias      IEKind = "alias"
)

// IELinks names the two objects an interference edge connects.
type IELinks struct {
	From cid.Cid `cbor:"from"`
	To   cid.Cid `cbor:"to"`
}

// InterferenceEdge records that one memory object reinforces, contradicts,
// refines, or aliases another.
type InterferenceEdge struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	Kind      IEKind  `cbor:"kind"`
	Strength  float32 `cbor:"strength"`
	CreatedTS int64   `cbor:"created_ts"`

	Links    IELinks        `cbor:"links"`
	Metadata map[string]any `cbor:"metadata"`
}

// ProllyNode is a node of the narrow (key/value) prolly tree: a leaf or
// internal node holding boundary keys and child/value CIDs.
type ProllyNode struct {
	Type    string `cbor:"type"`
	Version uint32 `cbor:"version"`

	Level  uint8     `cbor:"level"`
	Keys   [][]byte  `cbor:"keys"`
	Values []cid.Cid `cbor:"values"`

	NodeHash [32]byte       `cbor:"node_hash"`
	Metadata map[string]any `cbor:"metadata"`
}
