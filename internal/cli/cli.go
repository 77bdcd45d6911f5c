package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// CLIArgs are the command-line arguments for a one-shot scan or the API
// server.
type CLIArgs struct {
	// Snapshot is the path to a JSON observation snapshot to run once.
	Snapshot string

	// Rules is a path to a rule file or directory; empty means detection only.
	Rules string

	// Environment selects which environment-scoped rules apply.
	Environment string

	// DBPath overrides the run database location; empty means the default.
	DBPath string

	// Serve starts the API server instead of a one-shot run.
	Serve bool

	// Addr is the server listen address when serving.
	Addr string

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string
}

// ParseArgs parses a slice of args and returns CLIArgs. Use in tests by
// passing arbitrary slices. The function is deterministic and does not read
// os.Args.
func ParseArgs(args []string) (*CLIArgs, error) {
	fs := flag.NewFlagSet("tagscope", flag.ContinueOnError)
	var (
		snapshot    = fs.String("scan", "", "Path to a JSON observation snapshot to analyze")
		rules       = fs.String("rules", "", "Rule file or directory of rule files")
		environment = fs.String("env", "", "Environment name for environment-scoped rules")
		dbPath      = fs.String("db", "", "Run database path (empty = default)")
		serve       = fs.Bool("serve", false, "Start the API server")
		addr        = fs.String("addr", ":8080", "Listen address for -serve")
	)

	// Ensure Parse doesn't write to stdout/stderr in tests
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if !*serve && strings.TrimSpace(*snapshot) == "" {
		return nil, fmt.Errorf("either -scan or -serve is required")
	}

	return &CLIArgs{
		Snapshot:    *snapshot,
		Rules:       *rules,
		Environment: *environment,
		DBPath:      *dbPath,
		Serve:       *serve,
		Addr:        *addr,
		RawArgs:     args,
	}, nil
}
