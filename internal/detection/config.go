package detection

import "time"

// Config controls a detection engine.
type Config struct {
	// DetectorTimeout bounds each detector's full pass. A detector that
	// exceeds it is dropped for the run and recorded as a detector error.
	DetectorTimeout time.Duration

	// MinConfidence filters out instances below this aggregate confidence
	// before merging.
	MinConfidence float64
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DetectorTimeout: 5 * time.Second,
		MinConfidence:   0.1,
	}
}
