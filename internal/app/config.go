package app

import (
	"github.com/raysh454/tagscope/internal/detection"
	"github.com/raysh454/tagscope/internal/store"
	"github.com/raysh454/tagscope/internal/validation"
)

// Config aggregates the per-component configuration the pipeline needs.
type Config struct {
	// DetectionCfg controls detector timeouts and confidence filtering.
	DetectionCfg detection.Config

	// ValidationCfg controls rule evaluation timeouts.
	ValidationCfg validation.Config

	// StoreCfg controls run persistence. Leave nil to run without a store.
	StoreCfg *store.Config
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DetectionCfg:  detection.DefaultConfig(),
		ValidationCfg: validation.DefaultConfig(),
		StoreCfg:      store.DefaultConfig(),
	}
}
