// Package app wires the detection and validation engines, the rule loader and
// the run store into one pipeline, and fans run completions out to
// subscribers.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/tagscope/internal/detection"
	"github.com/raysh454/tagscope/internal/detector"
	"github.com/raysh454/tagscope/internal/interfaces"
	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/rules"
	"github.com/raysh454/tagscope/internal/store"
	"github.com/raysh454/tagscope/internal/validation"
)

// RunEvent is the notification broadcast when a pipeline run completes.
type RunEvent struct {
	RunID    string `json:"runId"`
	ScanID   string `json:"scanId"`
	URL      string `json:"url"`
	Score    int    `json:"score"`
	IsValid  bool   `json:"isValid"`
	TagCount int    `json:"tagCount"`
}

// Pipeline runs observation snapshots through detection and validation and
// persists the result.
type Pipeline struct {
	cfg       *Config
	detection *detection.Engine
	validator *validation.Engine
	loader    *rules.Loader
	store     interfaces.RunStore
	logger    logging.Logger

	subsMu  sync.Mutex
	subs    map[int]chan RunEvent
	nextSub int
}

// NewPipeline builds a pipeline with the default detector set. A nil store
// disables persistence.
func NewPipeline(cfg *Config, runStore interfaces.RunStore, logger logging.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("Pipeline")
	}

	registry := detector.NewDefaultRegistry(logger)
	engine, err := detection.NewEngine(cfg.DetectionCfg, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("creating detection engine: %w", err)
	}

	return &Pipeline{
		cfg:       cfg,
		detection: engine,
		validator: validation.NewEngine(cfg.ValidationCfg, logger),
		loader:    rules.NewLoader(logger),
		store:     runStore,
		logger:    logger.With(logging.Field{Key: "component", Value: "Pipeline"}),
		subs:      make(map[int]chan RunEvent),
	}, nil
}

// OpenStore creates the SQLite store described by cfg.StoreCfg. Callers that
// want persistence pass the result to NewPipeline.
func OpenStore(cfg *Config, logger logging.Logger) (interfaces.RunStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return store.NewSQLiteStore(cfg.StoreCfg, logger)
}

// LoadRules loads a rule file or directory.
func (p *Pipeline) LoadRules(path string, isDir bool) *rules.LoadResult {
	if isDir {
		return p.loader.LoadDirectory(path)
	}
	return p.loader.LoadFile(path)
}

// LoadInlineRules validates rules supplied in-process, e.g. over the API.
func (p *Pipeline) LoadInlineRules(ruleSet []model.Rule) *rules.LoadResult {
	return p.loader.LoadInline(ruleSet)
}

// Run executes detection and, when rules are supplied, validation for one
// observation. The run is persisted when a store is configured, and
// subscribers are notified.
func (p *Pipeline) Run(ctx context.Context, obs *model.Observation, ruleSet []model.Rule, environment string) (*model.Run, error) {
	if obs == nil {
		return nil, fmt.Errorf("observation is nil")
	}

	det := p.detection.Detect(ctx, obs)

	run := &model.Run{
		ID:        model.NewID(),
		ScanID:    obs.ScanID,
		URL:       obs.URL,
		CreatedAt: time.Now().UTC(),
		Detection: det,
		TagCount:  len(det.Tags),
		// Without rules there is nothing to fail.
		Score:   100,
		IsValid: true,
	}

	if len(ruleSet) > 0 {
		applicable := rules.FilterEnvironment(ruleSet, environment)
		report := p.validator.Validate(ctx, obs, det, applicable, environment)
		run.Environment = environment
		run.Report = report
		run.Score = report.Score
		run.IsValid = report.IsValid
	}

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("persisting run: %w", err)
		}
	}

	p.logger.Info("run completed",
		logging.Field{Key: "runId", Value: run.ID},
		logging.Field{Key: "url", Value: run.URL},
		logging.Field{Key: "tags", Value: run.TagCount},
		logging.Field{Key: "score", Value: run.Score},
		logging.Field{Key: "valid", Value: run.IsValid})

	p.broadcast(RunEvent{
		RunID:    run.ID,
		ScanID:   run.ScanID,
		URL:      run.URL,
		Score:    run.Score,
		IsValid:  run.IsValid,
		TagCount: run.TagCount,
	})

	return run, nil
}

// GetRun fetches a persisted run.
func (p *Pipeline) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if p.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	return p.store.GetRun(ctx, id)
}

// ListRuns lists persisted runs, newest first.
func (p *Pipeline) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	if p.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	return p.store.ListRuns(ctx, limit)
}

// Drift compares the tag inventories of two persisted runs.
func (p *Pipeline) Drift(ctx context.Context, baseID, againstID string) (*store.Drift, error) {
	if p.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	base, err := p.store.GetRun(ctx, baseID)
	if err != nil {
		return nil, err
	}
	against, err := p.store.GetRun(ctx, againstID)
	if err != nil {
		return nil, err
	}
	return store.ComputeDrift(base, against)
}

// Subscribe registers a run-completion listener. The returned channel is
// buffered; events are dropped rather than blocking the pipeline.
func (p *Pipeline) Subscribe() (int, <-chan RunEvent) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	id := p.nextSub
	p.nextSub++
	ch := make(chan RunEvent, 16)
	p.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (p *Pipeline) Unsubscribe(id int) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

func (p *Pipeline) broadcast(ev RunEvent) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for _, ch := range p.subs {
		// Non-blocking send; drop if buffer is full.
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close releases the store.
func (p *Pipeline) Close() {
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("closing store", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}
