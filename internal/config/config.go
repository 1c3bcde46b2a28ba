// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"runtime"

	"github.com/verax/verax/internal/adapters/repository"
	"github.com/verax/verax/internal/domain/reputation"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of append workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreBackend selects the ledger store: memory or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// MaxLedgerBytes caps the per-identity ledger buffer.
	MaxLedgerBytes int `koanf:"max_ledger_bytes"`

	// HalfLifeDays sets the reputation decay half-life.
	HalfLifeDays float64 `koanf:"half_life_days"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		QueueSize:      100_000,
		WorkerCount:    runtime.NumCPU() * 4,
		DedupeSize:     50_000,
		StoreBackend:   "memory",
		SQLitePath:     "verax.db",
		MaxLedgerBytes: repository.DefaultMaxLedgerBytes,
		HalfLifeDays:   reputation.DefaultHalfLifeDays,
	}
}
