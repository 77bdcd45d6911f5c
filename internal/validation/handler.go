package validation

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/raysh454/tagscope/internal/model"
)

// RuleHandler evaluates one rule variant. Implementations must be stateless:
// everything they need comes from the rule and the context.
type RuleHandler interface {
	// Type is the rule type the handler accepts.
	Type() model.RuleType

	// CanHandle reports whether the handler will evaluate the rule.
	CanHandle(rule *model.Rule) bool

	// Evaluate runs the rule. One rule may yield multiple results. A non-nil
	// error means the rule could not be evaluated at all; the engine records
	// it as a rule error and continues.
	Evaluate(ctx context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error)
}

// newResult fills the boilerplate shared by all handler outcomes.
func newResult(rule *model.Rule, status, message string, start time.Time) model.ValidationResult {
	return model.ValidationResult{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Status:    status,
		Severity:  rule.Severity,
		Message:   message,
		Details:   rule.Description,
		Platform:  rule.Platform,
		Timestamp: start.UnixMilli(),
		Duration:  time.Since(start).Milliseconds(),
	}
}

// errorResult wraps a handler-internal failure (bad target configuration,
// invalid pattern) as an error-status result, mirroring the taxonomy: this
// is a validation outcome, not an engine failure.
func errorResult(rule *model.Rule, err error, start time.Time) model.ValidationResult {
	res := newResult(rule, model.StatusError, fmt.Sprintf("%s validation failed: %v", rule.Type, err), start)
	res.Error = err.Error()
	return res
}

// matchesType reports whether a decoded JSON/YAML value has the declared
// type name.
func matchesType(v any, typeName string) bool {
	switch typeName {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64, uint64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		if v == nil {
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.Slice
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// valuesEqual compares a declared expectation against an observed value,
// tolerating the string/number mismatches that query params introduce.
func valuesEqual(expected, actual any) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	return stringify(expected) == stringify(actual)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// asFloat converts numeric observed values for range assertions.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
