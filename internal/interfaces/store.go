package interfaces

import (
	"context"

	"github.com/raysh454/tagscope/internal/model"
)

// RunStore persists completed pipeline runs so that past detections and
// validation reports can be listed and compared. Implementations must be
// safe for concurrent use.
type RunStore interface {
	// SaveRun stores a completed run.
	SaveRun(ctx context.Context, run *model.Run) error

	// GetRun returns the run with the given id, or an error if it does not exist.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns returns the most recent runs, newest first. limit <= 0 means no limit.
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)

	// RunsForURL returns all runs recorded for the given page URL, newest first.
	RunsForURL(ctx context.Context, url string) ([]*model.Run, error)

	// Close releases the underlying storage handle.
	Close() error
}
