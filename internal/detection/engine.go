// Package detection drives the detector registry over an evidence index and
// turns the raw detector output into a deduplicated, confidence-sorted
// detection result. Detector failures and timeouts are isolated: one broken
// detector never aborts a run.
package detection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/raysh454/tagscope/internal/detector"
	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
)

// Engine runs detection over observations.
type Engine struct {
	cfg      Config
	registry *detector.Registry
	logger   logging.Logger
}

// NewEngine creates an engine over a registry. A zero DetectorTimeout or
// MinConfidence falls back to the defaults.
func NewEngine(cfg Config, registry *detector.Registry, logger logging.Logger) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("creating detection engine: nil registry")
	}
	def := DefaultConfig()
	if cfg.DetectorTimeout <= 0 {
		cfg.DetectorTimeout = def.DetectorTimeout
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("DetectionEngine")
	}
	return &Engine{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With(logging.Field{Key: "component", Value: "DetectionEngine"}),
	}, nil
}

// Detect runs every enabled detector over the observation and returns the
// merged result. It never returns an error: degraded runs carry their
// failures in DetectorErrors.
func (e *Engine) Detect(ctx context.Context, obs *model.Observation) *model.TagDetectionResult {
	start := time.Now()
	idx := evidence.Build(obs)

	result := &model.TagDetectionResult{
		ID:         model.NewID(),
		DetectedAt: start.UnixMilli(),
	}
	if obs != nil {
		result.ScanID = obs.ScanID
		result.URL = obs.URL
	}

	var collected []model.TagInstance
	for _, d := range e.registry.EnabledByPriority() {
		if err := ctx.Err(); err != nil {
			result.DetectorErrors = append(result.DetectorErrors, model.DetectorError{
				DetectorID: d.ID(),
				Error:      fmt.Sprintf("run canceled: %v", err),
			})
			continue
		}
		if !d.MightBePresent(idx) {
			e.logger.Debug("detector pre-check negative", logging.Field{Key: "detector", Value: d.ID()})
			continue
		}
		result.DetectorsRun = append(result.DetectorsRun, d.ID())

		instances, err := e.runDetector(ctx, d, idx)
		if err != nil {
			e.logger.Warn("detector failed",
				logging.Field{Key: "detector", Value: d.ID()},
				logging.Field{Key: "error", Value: err.Error()})
			result.DetectorErrors = append(result.DetectorErrors, model.DetectorError{
				DetectorID: d.ID(),
				Error:      err.Error(),
			})
			continue
		}
		for _, inst := range instances {
			if inst.Confidence >= e.cfg.MinConfidence {
				collected = append(collected, inst)
			}
		}
	}

	tags := Deduplicate(collected)
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].Confidence != tags[j].Confidence {
			return tags[i].Confidence > tags[j].Confidence
		}
		return tags[i].FirstSeenAt < tags[j].FirstSeenAt
	})

	result.Tags = tags
	result.Summary = buildSummary(tags)
	result.Duration = time.Since(start).Milliseconds()

	e.logger.Info("detection complete",
		logging.Field{Key: "url", Value: result.URL},
		logging.Field{Key: "tags", Value: len(tags)},
		logging.Field{Key: "errors", Value: len(result.DetectorErrors)})
	return result
}

type detectorOutcome struct {
	instances []model.TagInstance
	err       error
}

// runDetector invokes one detector under the per-detector timeout. A timed
// out or panicking detector contributes nothing; its partial output is
// discarded entirely.
func (e *Engine) runDetector(ctx context.Context, d detector.Detector, idx *evidence.Index) ([]model.TagInstance, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
	defer cancel()

	ch := make(chan detectorOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- detectorOutcome{err: fmt.Errorf("detector panicked: %v", r)}
			}
		}()
		instances, err := d.Detect(runCtx, idx)
		ch <- detectorOutcome{instances: instances, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("running detector %q: %w", d.ID(), out.err)
		}
		return out.instances, nil
	case <-runCtx.Done():
		return nil, fmt.Errorf("detector %q timed out after %s", d.ID(), e.cfg.DetectorTimeout)
	}
}
