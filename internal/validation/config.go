package validation

import "time"

// Config controls a validation engine.
type Config struct {
	// RuleTimeout bounds each rule evaluation. A timed-out rule is recorded
	// as a rule error, not a validation failure.
	RuleTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{RuleTimeout: 30 * time.Second}
}
