package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements BlobStore on an embedded SQLite database, one
// BLOB row per identity. Appends run inside a transaction so the ceiling
// check and the concatenation are atomic; SQLite's writer lock gives the
// same single-writer-per-key discipline the in-memory store enforces
// with its mutex.
type SQLiteStore struct {
	db       *sql.DB
	settings settings
}

// NewSQLiteStore opens (and migrates) the database at path.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	s := &SQLiteStore{db: db, settings: defaultSettings()}
	for _, opt := range opts {
		opt(&s.settings)
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledgers (
		identity_key BLOB PRIMARY KEY,
		buf          BLOB NOT NULL
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Get returns the full buffer for a key, empty bytes if absent.
func (s *SQLiteStore) Get(ctx context.Context, key model.IdentityKey) ([]byte, error) {
	var buf []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT buf FROM ledgers WHERE identity_key = ?`, key[:]).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger read failed: %w", err)
	}
	return buf, nil
}

// Put creates or replaces the entire buffer for a key.
func (s *SQLiteStore) Put(ctx context.Context, key model.IdentityKey, buf []byte) error {
	if len(buf) > s.settings.maxLedgerBytes {
		return fmt.Errorf("%w: %d bytes exceeds ceiling %d", ErrLedgerFull, len(buf), s.settings.maxLedgerBytes)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledgers (identity_key, buf) VALUES (?, ?)
		 ON CONFLICT(identity_key) DO UPDATE SET buf = excluded.buf`, key[:], buf)
	if err != nil {
		return fmt.Errorf("ledger write failed: %w", err)
	}
	return nil
}

// Append atomically extends a key's buffer with payload.
func (s *SQLiteStore) Append(ctx context.Context, key model.IdentityKey, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger append failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(length(buf), 0) FROM ledgers WHERE identity_key = ?`, key[:]).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ledger append failed: %w", err)
	}

	newTotal := current + len(payload)
	if newTotal > s.settings.maxLedgerBytes {
		metrics.RecordLedgerFull()
		return fmt.Errorf("%w: append of %d bytes would grow ledger to %d, ceiling %d",
			ErrLedgerFull, len(payload), newTotal, s.settings.maxLedgerBytes)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledgers (identity_key, buf) VALUES (?, ?)
		 ON CONFLICT(identity_key) DO UPDATE SET buf = ledgers.buf || excluded.buf`, key[:], payload)
	if err != nil {
		return fmt.Errorf("ledger append failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger append failed: %w", err)
	}
	metrics.RecordLedgerAppend(len(payload))
	return nil
}

// Size returns the byte length of a key's buffer.
func (s *SQLiteStore) Size(ctx context.Context, key model.IdentityKey) (int, error) {
	var size int
	err := s.db.QueryRowContext(ctx,
		`SELECT length(buf) FROM ledgers WHERE identity_key = ?`, key[:]).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ledger size failed: %w", err)
	}
	return size, nil
}

// Count returns the number of identities with a ledger.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledgers`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
