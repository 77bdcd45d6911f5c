package validation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
)

// Engine drives registered rule handlers over a loaded rule set.
type Engine struct {
	cfg      Config
	handlers map[model.RuleType]RuleHandler
	logger   logging.Logger
}

// NewEngine creates an engine with the built-in handlers registered.
func NewEngine(cfg Config, logger logging.Logger) *Engine {
	if cfg.RuleTimeout <= 0 {
		cfg.RuleTimeout = DefaultConfig().RuleTimeout
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("ValidationEngine")
	}
	e := &Engine{
		cfg:      cfg,
		handlers: make(map[model.RuleType]RuleHandler),
		logger:   logger.With(logging.Field{Key: "component", Value: "ValidationEngine"}),
	}
	for _, h := range []RuleHandler{
		NewPresenceHandler(),
		NewPayloadHandler(),
		NewOrderHandler(),
		NewConsentHandler(),
		NewDataLayerHandler(),
	} {
		e.handlers[h.Type()] = h
	}
	return e
}

// RegisterHandler adds or replaces the handler for a rule type.
func (e *Engine) RegisterHandler(h RuleHandler) error {
	if h == nil {
		return fmt.Errorf("registering handler: nil handler")
	}
	e.handlers[h.Type()] = h
	return nil
}

// Validate evaluates the rules against the observation and detection result
// and returns the scored report. Rule-level failures never abort the run.
func (e *Engine) Validate(ctx context.Context, obs *model.Observation, det *model.TagDetectionResult, rules []model.Rule, environment string) *model.ValidationReport {
	start := time.Now()
	vc := NewContext(obs, det, environment)

	report := &model.ValidationReport{
		ID:          model.NewID(),
		Environment: environment,
		StartedAt:   start.UnixMilli(),
	}
	if obs != nil {
		report.ScanID = obs.ScanID
		report.URL = obs.URL
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.IsEnabled() {
			e.logger.Debug("rule disabled", logging.Field{Key: "rule", Value: rule.ID})
			continue
		}
		handler, ok := e.handlers[rule.Type]
		if !ok {
			report.RuleErrors = append(report.RuleErrors, model.RuleError{
				RuleID: rule.ID,
				Error:  fmt.Sprintf("no handler registered for rule type %q", rule.Type),
			})
			continue
		}
		if !handler.CanHandle(rule) {
			report.RuleErrors = append(report.RuleErrors, model.RuleError{
				RuleID: rule.ID,
				Error:  fmt.Sprintf("handler for %q rejected the rule", rule.Type),
			})
			continue
		}

		results, err := e.runRule(ctx, handler, rule, vc)
		if err != nil {
			e.logger.Warn("rule evaluation failed",
				logging.Field{Key: "rule", Value: rule.ID},
				logging.Field{Key: "error", Value: err.Error()})
			report.RuleErrors = append(report.RuleErrors, model.RuleError{RuleID: rule.ID, Error: err.Error()})
			continue
		}
		report.Results = append(report.Results, results...)
	}

	report.Summary = buildValidationSummary(report.Results)
	report.Score = computeScore(report.Summary)
	report.IsValid = computeIsValid(report.Results)
	report.CompletedAt = time.Now().UnixMilli()

	e.logger.Info("validation complete",
		logging.Field{Key: "url", Value: report.URL},
		logging.Field{Key: "score", Value: report.Score},
		logging.Field{Key: "valid", Value: report.IsValid},
		logging.Field{Key: "ruleErrors", Value: len(report.RuleErrors)})
	return report
}

type ruleOutcome struct {
	results []model.ValidationResult
	err     error
}

// runRule evaluates one rule under the per-rule timeout. Timed-out output is
// discarded entirely.
func (e *Engine) runRule(ctx context.Context, handler RuleHandler, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RuleTimeout)
	defer cancel()

	ch := make(chan ruleOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- ruleOutcome{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		results, err := handler.Evaluate(runCtx, rule, vc)
		ch <- ruleOutcome{results: results, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, fmt.Errorf("evaluating rule %q: %w", rule.ID, out.err)
		}
		return out.results, nil
	case <-runCtx.Done():
		return nil, fmt.Errorf("rule %q timed out after %s", rule.ID, e.cfg.RuleTimeout)
	}
}

func buildValidationSummary(results []model.ValidationResult) model.ValidationSummary {
	summary := model.ValidationSummary{
		Total:      len(results),
		BySeverity: make(map[string]int),
		ByPlatform: make(map[string]model.PlatformOutcome),
	}
	for _, res := range results {
		switch res.Status {
		case model.StatusPassed:
			summary.Passed++
		case model.StatusFailed:
			summary.Failed++
			summary.BySeverity[string(res.Severity)]++
		case model.StatusSkipped:
			summary.Skipped++
		case model.StatusError:
			summary.Errors++
		}
		if res.Platform == "" {
			continue
		}
		outcome := summary.ByPlatform[res.Platform]
		switch res.Status {
		case model.StatusPassed:
			outcome.Passed++
		case model.StatusFailed:
			outcome.Failed++
			if res.Severity == model.SeverityWarning {
				outcome.Warnings++
			}
		}
		summary.ByPlatform[res.Platform] = outcome
	}
	return summary
}

// computeScore maps passed/failed counts to 0-100. Skipped and error results
// are not scorable; a run with nothing scorable is a clean 100.
func computeScore(summary model.ValidationSummary) int {
	scorable := summary.Passed + summary.Failed
	if scorable == 0 {
		return 100
	}
	return int(math.Round(float64(summary.Passed) / float64(scorable) * 100))
}

func computeIsValid(results []model.ValidationResult) bool {
	for _, res := range results {
		if res.Status == model.StatusError {
			return false
		}
		if res.Status == model.StatusFailed && res.Severity == model.SeverityError {
			return false
		}
	}
	return true
}
