// Package model contains domain models passed between layers.
package model

import (
	"encoding/hex"
	"fmt"
)

// IdentityKeySize is the width of a ledger identity key in bytes.
// Keys are raw fixed-width address bytes; string keys are never used.
const IdentityKeySize = 32

// IdentityKey identifies whose ledger a buffer belongs to.
type IdentityKey [IdentityKeySize]byte

// ParseIdentityKey decodes a 64-character hex string into an IdentityKey.
func ParseIdentityKey(s string) (IdentityKey, error) {
	var key IdentityKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("invalid identity key: %w", err)
	}
	if len(raw) != IdentityKeySize {
		return key, fmt.Errorf("invalid identity key: got %d bytes, want %d", len(raw), IdentityKeySize)
	}
	copy(key[:], raw)
	return key, nil
}

// String returns the lowercase hex form of the key.
func (k IdentityKey) String() string {
	return hex.EncodeToString(k[:])
}

// SkillRecord is a single immutable skill attestation fact. Once a record
// is encoded and appended to a ledger its bytes never change.
type SkillRecord struct {
	Mode         string // evaluation method label, e.g. "ai-graded", "peer-review"
	Domain       string // skill domain, optionally "domain:subdomain"
	Score        uint64 // 0-100 by convention; wire format carries full uint64
	ArtifactHash string // content-addressed reference to off-ledger evidence
	Timestamp    uint64 // unix epoch seconds
}

// Submission is the payload that flows through the submit pipeline.
type Submission struct {
	SubmissionID string // unique id for idempotency
	Key          IdentityKey
	Record       SkillRecord
}
