package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/pkg/metrics"
)

// MemStore implements BlobStore with an in-memory map of per-key buffers.
//
// Appends build a fresh slice and swap it in under the write lock, so any
// snapshot handed out earlier stays internally consistent: a reader never
// observes a buffer mid-resize. This reproduces the host's serialized
// single-writer-per-key execution model in process.
type MemStore struct {
	mu       sync.RWMutex
	ledgers  map[model.IdentityKey][]byte
	settings settings
}

// NewMemStore creates an empty in-memory store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		ledgers:  make(map[model.IdentityKey][]byte),
		settings: defaultSettings(),
	}
	for _, opt := range opts {
		opt(&s.settings)
	}
	return s
}

// Get returns a copy of the key's buffer, empty if the key has no ledger.
func (s *MemStore) Get(_ context.Context, key model.IdentityKey) ([]byte, error) {
	s.mu.RLock()
	buf := s.ledgers[key]
	s.mu.RUnlock()

	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// Put creates or replaces the entire buffer for a key.
func (s *MemStore) Put(_ context.Context, key model.IdentityKey, buf []byte) error {
	if len(buf) > s.settings.maxLedgerBytes {
		return fmt.Errorf("%w: %d bytes exceeds ceiling %d", ErrLedgerFull, len(buf), s.settings.maxLedgerBytes)
	}
	stored := make([]byte, len(buf))
	copy(stored, buf)

	s.mu.Lock()
	s.ledgers[key] = stored
	s.mu.Unlock()
	return nil
}

// Append extends a key's buffer, creating it when absent. The new total
// is allocated up front and the payload written past the old end; the
// prior bytes are never touched in place.
func (s *MemStore) Append(_ context.Context, key model.IdentityKey, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.ledgers[key]
	newTotal := len(old) + len(payload)
	if newTotal > s.settings.maxLedgerBytes {
		metrics.RecordLedgerFull()
		return fmt.Errorf("%w: append of %d bytes would grow ledger to %d, ceiling %d",
			ErrLedgerFull, len(payload), newTotal, s.settings.maxLedgerBytes)
	}

	grown := make([]byte, 0, newTotal)
	grown = append(grown, old...)
	grown = append(grown, payload...)
	s.ledgers[key] = grown

	metrics.RecordLedgerAppend(len(payload))
	return nil
}

// Size returns the byte length of a key's buffer.
func (s *MemStore) Size(_ context.Context, key model.IdentityKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers[key]), nil
}

// Count returns the number of identities with a ledger.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers)
}
