// Copyright 2025 Certen Protocol
//
// Repositories - Convenience wrapper for all database repositories
// Provides a single point of access to all repository types

package database

// Repositories holds all repository instances the evidence log and
// gateway depend on.
type Repositories struct {
	Envelopes   *EnvelopeRepository
	Effects     *EffectRepository
	Receipts    *ReceiptRepository
	Checkpoints *CheckpointRepository
	MerkleNodes *MerkleNodeRepository
	Audit       *AuditRepository
}

// NewRepositories creates all repositories with the given client
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Envelopes:   NewEnvelopeRepository(client),
		Effects:     NewEffectRepository(client),
		Receipts:    NewReceiptRepository(client),
		Checkpoints: NewCheckpointRepository(client),
		MerkleNodes: NewMerkleNodeRepository(client),
		Audit:       NewAuditRepository(client),
	}
}
