// Package detector contains the pluggable platform matchers. Each detector
// performs a cheap presence pre-check over the evidence index and, when it
// fires, a full evidence-collection pass that yields confidence-scored tag
// instances.
package detector

import (
	"context"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// DefaultPriority is used by detectors that do not claim a specific band.
// Tag-manager detectors run first (highest band) so that load-method
// attribution on other platforms can reference their scripts.
const DefaultPriority = 50

// Detector is a named, prioritized matcher for one tracking platform.
type Detector interface {
	// ID uniquely identifies the detector in the registry.
	ID() string

	// Name is the human-readable detector name.
	Name() string

	// Platform is the platform id the detector reports on. It is the merge
	// key for deduplication.
	Platform() string

	// Category classifies the platform.
	Category() model.TagCategory

	// Priority orders detectors; higher runs first.
	Priority() int

	// MightBePresent is a cheap pre-check over the index. It must be
	// conservative: false negatives are forbidden, false positives are fine.
	MightBePresent(idx *evidence.Index) bool

	// Detect runs the full evidence-collection pass. It returns zero or more
	// tag instances; the engine merges same-platform instances afterwards.
	Detect(ctx context.Context, idx *evidence.Index) ([]model.TagInstance, error)
}

// base carries the identity fields shared by all concrete detectors.
type base struct {
	id       string
	name     string
	platform string
	category model.TagCategory
	priority int
}

func (b *base) ID() string                  { return b.id }
func (b *base) Name() string                { return b.name }
func (b *base) Platform() string            { return b.platform }
func (b *base) Category() model.TagCategory { return b.category }
func (b *base) Priority() int               { return b.priority }
