package interfaces

// Logger is the minimal structured-logging surface shared by the detection
// engine, the validation engine, the run pipeline, the store, and the HTTP
// server. Components take a Logger in their constructor and derive a child
// with a "component" field; any backend that satisfies this interface plugs
// in without touching internal packages.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning.
	Warn(msg string, fields ...Field)

	// Error logs an error.
	Error(msg string, fields ...Field)

	// With returns a child logger whose fields are attached to every entry,
	// typically the component name or a run ID.
	With(fields ...Field) Logger
}

// Field is one key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}
