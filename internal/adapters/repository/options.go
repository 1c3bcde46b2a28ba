package repository

// DefaultMaxLedgerBytes mirrors the host chain's storage-unit ceiling.
const DefaultMaxLedgerBytes = 32768

// settings holds the configuration shared by store backends.
type settings struct {
	maxLedgerBytes int
}

func defaultSettings() settings {
	return settings{maxLedgerBytes: DefaultMaxLedgerBytes}
}

// Option applies a configuration option to a store backend.
type Option func(*settings)

// WithMaxLedgerBytes sets the per-identity buffer size ceiling.
func WithMaxLedgerBytes(limit int) Option {
	return func(s *settings) {
		if limit > 0 {
			s.maxLedgerBytes = limit
		}
	}
}
