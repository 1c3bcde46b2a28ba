// Package repository defines the append-only ledger store interface and errors.
//
// A BlobStore keeps one append-only byte buffer per identity key. Encoded
// records are concatenated; no buffer is ever shortened, truncated in the
// middle or mutated in place. The interface generalizes the host chain's
// box primitive so the ledger layer stays storage-backend agnostic: an
// in-memory map and an embedded SQLite database both satisfy it.
package repository

import (
	"context"

	"github.com/verax/verax/internal/domain/model"
)

// BlobStore provides access to per-identity ledger buffers.
type BlobStore interface {
	// Get returns a consistent snapshot of the full current buffer.
	// An identity with no ledger yields empty bytes, not an error.
	Get(ctx context.Context, key model.IdentityKey) ([]byte, error)

	// Put creates or replaces the entire buffer for a key. It exists for
	// bootstrap and migration; the write path goes through Append.
	Put(ctx context.Context, key model.IdentityKey, buf []byte) error

	// Append atomically extends a key's buffer with payload, creating the
	// buffer when absent. Appends to the same key are serialized; prior
	// bytes are left physically undisturbed. Returns ErrLedgerFull when
	// the buffer would exceed the configured ceiling.
	Append(ctx context.Context, key model.IdentityKey, payload []byte) error

	// Size returns the current byte length of a key's buffer, 0 if absent.
	Size(ctx context.Context, key model.IdentityKey) (int, error)

	// Count returns the number of ledgers tracked by the store.
	Count(ctx context.Context) int
}
