package validation

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// dataLayerHandler validates the structure of data-layer events: required
// and forbidden keys, key naming, a recursive type schema, and dot-path
// assertions. Zero matching events is a failure — a structural rule implies
// the events should exist.
type dataLayerHandler struct{}

// NewDataLayerHandler creates the data-layer rule handler.
func NewDataLayerHandler() RuleHandler { return &dataLayerHandler{} }

func (h *dataLayerHandler) Type() model.RuleType { return model.RuleDataLayer }

func (h *dataLayerHandler) CanHandle(rule *model.Rule) bool {
	return rule != nil && rule.Type == model.RuleDataLayer
}

func (h *dataLayerHandler) Evaluate(_ context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	start := time.Now()
	if rule.DataLayerName == "" {
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("data layer rule requires dataLayerName"), start)}, nil
	}

	var namingRe *regexp.Regexp
	if rule.KeyNamingPattern != "" {
		re, err := regexp.Compile(rule.KeyNamingPattern)
		if err != nil {
			return []model.ValidationResult{errorResult(rule, fmt.Errorf("invalid keyNamingPattern: %w", err), start)}, nil
		}
		namingRe = re
	}

	var events []model.DataLayerEvent
	if rule.EventName != "" {
		events = vc.GetDataLayerEvents(rule.DataLayerName, rule.EventName)
	} else {
		events = vc.GetDataLayerEvents(rule.DataLayerName)
	}

	if len(events) == 0 {
		target := rule.DataLayerName
		if rule.EventName != "" {
			target = fmt.Sprintf("%s event %q", target, rule.EventName)
		}
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("No data layer events found for %s", target), start)
		return []model.ValidationResult{res}, nil
	}

	var evidenceList []model.ValidationEvidence
	failingEvents := 0
	for _, ev := range events {
		problems := h.checkEvent(rule, namingRe, &ev)
		if len(problems) == 0 {
			continue
		}
		failingEvents++
		evidenceList = append(evidenceList, model.ValidationEvidence{
			Type:        "dataLayer",
			Description: "Event failed checks: " + strings.Join(problems, "; "),
			Actual:      ev.Data,
			Ref:         map[string]any{"timestamp": ev.Timestamp},
		})
	}

	if failingEvents > 0 {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("%d of %d data layer event(s) failed structure checks", failingEvents, len(events)), start)
		res.Evidence = evidenceList
		return []model.ValidationResult{res}, nil
	}

	res := newResult(rule, model.StatusPassed,
		fmt.Sprintf("All %d data layer event(s) passed structure checks", len(events)), start)
	return []model.ValidationResult{res}, nil
}

func (h *dataLayerHandler) checkEvent(rule *model.Rule, namingRe *regexp.Regexp, ev *model.DataLayerEvent) []string {
	var problems []string

	for _, key := range rule.RequiredKeys {
		if _, ok := ev.Data[key]; !ok {
			problems = append(problems, fmt.Sprintf("missing required key %q", key))
		}
	}
	for _, key := range rule.ForbiddenKeys {
		if _, ok := ev.Data[key]; ok {
			problems = append(problems, fmt.Sprintf("forbidden key %q present", key))
		}
	}
	if namingRe != nil {
		for key := range ev.Data {
			if !namingRe.MatchString(key) {
				problems = append(problems, fmt.Sprintf("key %q violates naming pattern", key))
			}
		}
	}
	if len(rule.Schema) > 0 {
		problems = append(problems, checkSchema(ev.Data, rule.Schema, "")...)
	}
	for _, assertion := range rule.Assertions {
		problems = append(problems, checkAssertion(ev.Data, &assertion)...)
	}
	return problems
}

// checkSchema walks a declared type schema: string values name a type,
// nested maps require an object and recurse.
func checkSchema(data map[string]any, schema map[string]any, prefix string) []string {
	var problems []string
	for key, spec := range schema {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		val, ok := data[key]
		if !ok {
			problems = append(problems, fmt.Sprintf("schema: missing %q", path))
			continue
		}
		switch expected := spec.(type) {
		case string:
			if !matchesType(val, expected) {
				problems = append(problems, fmt.Sprintf("schema: %q is not %s", path, expected))
			}
		case map[string]any:
			nested, ok := val.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("schema: %q is not object", path))
				continue
			}
			problems = append(problems, checkSchema(nested, expected, path)...)
		default:
			problems = append(problems, fmt.Sprintf("schema: unsupported spec for %q", path))
		}
	}
	return problems
}

func checkAssertion(data map[string]any, assertion *model.Assertion) []string {
	var problems []string
	val, ok := evidence.GetNestedValue(data, assertion.Path)
	if !ok {
		if assertion.Required {
			problems = append(problems, fmt.Sprintf("assertion: %q missing", assertion.Path))
		}
		return problems
	}

	if assertion.Equals != nil && !valuesEqual(assertion.Equals, val) {
		problems = append(problems, fmt.Sprintf("assertion: %q = %v, expected %v", assertion.Path, val, assertion.Equals))
	}
	if assertion.Matches != "" {
		re, err := regexp.Compile(assertion.Matches)
		if err != nil {
			problems = append(problems, fmt.Sprintf("assertion: invalid pattern for %q", assertion.Path))
		} else if !re.MatchString(stringify(val)) {
			problems = append(problems, fmt.Sprintf("assertion: %q = %v does not match %q", assertion.Path, val, assertion.Matches))
		}
	}
	if assertion.Type != "" && !matchesType(val, assertion.Type) {
		problems = append(problems, fmt.Sprintf("assertion: %q is not %s", assertion.Path, assertion.Type))
	}
	if assertion.Min != nil || assertion.Max != nil {
		if f, numeric := asFloat(val); !numeric {
			problems = append(problems, fmt.Sprintf("assertion: %q is not numeric", assertion.Path))
		} else {
			if assertion.Min != nil && f < *assertion.Min {
				problems = append(problems, fmt.Sprintf("assertion: %q = %v below min %v", assertion.Path, f, *assertion.Min))
			}
			if assertion.Max != nil && f > *assertion.Max {
				problems = append(problems, fmt.Sprintf("assertion: %q = %v above max %v", assertion.Path, f, *assertion.Max))
			}
		}
	}
	if assertion.MinLength != nil || assertion.MaxLength != nil {
		length, measurable := valueLength(val)
		if !measurable {
			problems = append(problems, fmt.Sprintf("assertion: %q has no length", assertion.Path))
		} else {
			if assertion.MinLength != nil && length < *assertion.MinLength {
				problems = append(problems, fmt.Sprintf("assertion: %q length %d below %d", assertion.Path, length, *assertion.MinLength))
			}
			if assertion.MaxLength != nil && length > *assertion.MaxLength {
				problems = append(problems, fmt.Sprintf("assertion: %q length %d above %d", assertion.Path, length, *assertion.MaxLength))
			}
		}
	}
	if len(assertion.AllowedValues) > 0 {
		allowed := false
		for _, candidate := range assertion.AllowedValues {
			if valuesEqual(candidate, val) {
				allowed = true
				break
			}
		}
		if !allowed {
			problems = append(problems, fmt.Sprintf("assertion: %q = %v not in allowed values", assertion.Path, val))
		}
	}
	return problems
}

func valueLength(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case map[string]any:
		return len(t), true
	}
	if v != nil && reflect.TypeOf(v).Kind() == reflect.Slice {
		return reflect.ValueOf(v).Len(), true
	}
	return 0, false
}
