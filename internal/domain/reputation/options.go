// Package reputation computes deterministic reputation profiles from
// decoded skill records.
package reputation

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithHalfLife sets the decay half-life in days. A record's influence
// halves every halfLifeDays of age.
func WithHalfLife(halfLifeDays float64) Option {
	return func(e *Engine) {
		if halfLifeDays > 0 {
			e.halfLifeDays = halfLifeDays
		}
	}
}

// WithClock sets the time source used by Compute. Tests use this to pin
// the evaluation time.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}
