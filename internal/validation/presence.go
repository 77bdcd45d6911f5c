package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/tagscope/internal/model"
)

// presenceHandler checks that a tag, event, request, script or data layer
// exists (or does not). Existence is always decidable, so this handler never
// yields a skipped result.
type presenceHandler struct{}

// NewPresenceHandler creates the presence rule handler.
func NewPresenceHandler() RuleHandler { return &presenceHandler{} }

func (h *presenceHandler) Type() model.RuleType { return model.RulePresence }

func (h *presenceHandler) CanHandle(rule *model.Rule) bool {
	return rule != nil && rule.Type == model.RulePresence
}

func (h *presenceHandler) Evaluate(_ context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	start := time.Now()
	if rule.Target == nil {
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("presence rule requires a target"), start)}, nil
	}

	var evidence []model.ValidationEvidence
	matchCount := 0

	switch rule.Target.Type {
	case "tag":
		var tags []model.TagInstance
		if rule.Target.Platform != "" {
			tags = vc.FindTags(rule.Target.Platform)
		} else {
			tags = vc.AllTags()
		}
		matchCount = len(tags)
		for _, tag := range tags {
			evidence = append(evidence, model.ValidationEvidence{
				Type:        "tag",
				Description: fmt.Sprintf("Found %s tag", tag.PlatformName),
				Actual:      tag.Platform,
				Ref:         map[string]any{"id": tag.ID, "timestamp": tag.FirstSeenAt},
			})
		}

	case "event":
		if rule.Target.DataLayerName == "" {
			return []model.ValidationResult{errorResult(rule, fmt.Errorf("event presence rule requires dataLayerName"), start)}, nil
		}
		events := vc.GetDataLayerEvents(rule.Target.DataLayerName, rule.Target.EventName)
		matchCount = len(events)
		for _, ev := range events {
			name := rule.Target.EventName
			if name == "" {
				name = "any"
			}
			evidence = append(evidence, model.ValidationEvidence{
				Type:        "dataLayer",
				Description: "Found data layer event: " + name,
				Actual:      ev.Data,
				Ref:         map[string]any{"timestamp": ev.Timestamp},
			})
		}

	case "request":
		if rule.Target.URLPattern == "" {
			return []model.ValidationResult{errorResult(rule, fmt.Errorf("request presence rule requires urlPattern"), start)}, nil
		}
		requests, err := vc.FindRequests(rule.Target.URLPattern)
		if err != nil {
			return []model.ValidationResult{errorResult(rule, err, start)}, nil
		}
		matchCount = len(requests)
		for i, r := range requests {
			if i == 5 {
				evidence = append(evidence, model.ValidationEvidence{
					Type:        "request",
					Description: fmt.Sprintf("... and %d more requests", matchCount-5),
					Actual:      matchCount,
				})
				break
			}
			evidence = append(evidence, model.ValidationEvidence{
				Type:        "request",
				Description: "Found matching request",
				Actual:      r.URL,
				Ref:         map[string]any{"url": r.URL, "timestamp": r.Timestamp},
			})
		}

	case "script":
		if rule.Target.URLPattern == "" {
			return []model.ValidationResult{errorResult(rule, fmt.Errorf("script presence rule requires urlPattern"), start)}, nil
		}
		scripts, err := vc.FindScripts(rule.Target.URLPattern)
		if err != nil {
			return []model.ValidationResult{errorResult(rule, err, start)}, nil
		}
		matchCount = len(scripts)
		for _, s := range scripts {
			evidence = append(evidence, model.ValidationEvidence{
				Type:        "script",
				Description: "Found matching script",
				Actual:      s.Src,
				Ref:         map[string]any{"id": s.ID, "url": s.Src},
			})
		}

	case "dataLayer":
		if rule.Target.DataLayerName == "" {
			return []model.ValidationResult{errorResult(rule, fmt.Errorf("data layer presence rule requires dataLayerName"), start)}, nil
		}
		events := vc.GetDataLayerEvents(rule.Target.DataLayerName)
		if len(events) > 0 {
			matchCount = 1
			evidence = append(evidence, model.ValidationEvidence{
				Type:        "dataLayer",
				Description: "Found data layer: " + rule.Target.DataLayerName,
				Actual:      fmt.Sprintf("%d events", len(events)),
			})
		}

	default:
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("unknown target type: %q", rule.Target.Type), start)}, nil
	}

	shouldExist := rule.ShouldExist == nil || *rule.ShouldExist
	meetsMin := rule.MinCount == nil || matchCount >= *rule.MinCount
	meetsMax := rule.MaxCount == nil || matchCount <= *rule.MaxCount
	meetsExistence := matchCount == 0
	if shouldExist {
		meetsExistence = matchCount > 0
	}
	passed := meetsMin && meetsMax && meetsExistence

	var message string
	switch {
	case passed && shouldExist:
		message = fmt.Sprintf("Found %d %s(s) as expected", matchCount, rule.Target.Type)
	case passed:
		message = fmt.Sprintf("Correctly verified %s is not present", rule.Target.Type)
	case !meetsExistence && shouldExist:
		message = fmt.Sprintf("Expected %s to be present but found none", rule.Target.Type)
	case !meetsExistence:
		message = fmt.Sprintf("Expected %s to be absent but found %d", rule.Target.Type, matchCount)
	case !meetsMin:
		message = fmt.Sprintf("Found %d %s(s), expected at least %d", matchCount, rule.Target.Type, *rule.MinCount)
	default:
		message = fmt.Sprintf("Found %d %s(s), expected at most %d", matchCount, rule.Target.Type, *rule.MaxCount)
	}

	if !passed {
		expected := "Should not exist"
		if shouldExist {
			minStr, maxStr := "1", "unlimited"
			if rule.MinCount != nil {
				minStr = fmt.Sprint(*rule.MinCount)
			}
			if rule.MaxCount != nil {
				maxStr = fmt.Sprint(*rule.MaxCount)
			}
			expected = fmt.Sprintf("Should exist (min: %s, max: %s)", minStr, maxStr)
		}
		evidence = append(evidence, model.ValidationEvidence{
			Type:        rule.Target.Type,
			Description: "Expected condition",
			Expected:    expected,
			Actual:      matchCount,
		})
	}

	status := model.StatusFailed
	if passed {
		status = model.StatusPassed
	}
	res := newResult(rule, status, message, start)
	res.Evidence = evidence
	return []model.ValidationResult{res}, nil
}
