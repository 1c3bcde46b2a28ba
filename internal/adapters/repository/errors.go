package repository

import "errors"

// Sentinel kinds for ledger store errors.
var (
	// ErrLedgerFull marks an append that would push a buffer past the
	// storage-unit size ceiling. It is fatal for that identity's append,
	// never silently truncated, and not retryable.
	ErrLedgerFull = errors.New("ledger full")

	// ErrStoreClosed marks operations against a closed store.
	ErrStoreClosed = errors.New("store closed")
)
