package store

// Config controls where runs are persisted.
type Config struct {
	// Path is the SQLite database file. ":memory:" keeps everything
	// in-process, which the tests rely on.
	Path string
}

// DefaultConfig returns the store defaults.
func DefaultConfig() *Config {
	return &Config{
		Path: "tagscope.db",
	}
}
