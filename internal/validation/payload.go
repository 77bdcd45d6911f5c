package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// payloadHandler checks the shape of analytics request payloads: every
// request matching the target pattern must satisfy every declared field
// check. No matching request at all is a failure, not a skip — a payload
// rule implies the traffic should exist.
type payloadHandler struct{}

// NewPayloadHandler creates the payload rule handler.
func NewPayloadHandler() RuleHandler { return &payloadHandler{} }

func (h *payloadHandler) Type() model.RuleType { return model.RulePayload }

func (h *payloadHandler) CanHandle(rule *model.Rule) bool {
	return rule != nil && rule.Type == model.RulePayload
}

func (h *payloadHandler) Evaluate(_ context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	start := time.Now()
	if rule.Target == nil || rule.Target.URLPattern == "" {
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("payload rule requires target.urlPattern"), start)}, nil
	}

	requests, err := vc.FindRequests(rule.Target.URLPattern)
	if err != nil {
		return []model.ValidationResult{errorResult(rule, err, start)}, nil
	}
	if rule.Target.Method != "" {
		var filtered []model.NetworkRequest
		for _, r := range requests {
			if strings.EqualFold(r.Method, rule.Target.Method) {
				filtered = append(filtered, r)
			}
		}
		requests = filtered
	}

	if len(requests) == 0 {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("No requests matched %q; cannot verify payload", rule.Target.URLPattern), start)
		res.Evidence = []model.ValidationEvidence{{
			Type:        "request",
			Description: "Expected at least one matching request",
			Expected:    rule.Target.URLPattern,
			Actual:      0,
		}}
		return []model.ValidationResult{res}, nil
	}

	var evidenceList []model.ValidationEvidence
	failingRequests := 0
	for _, r := range requests {
		fieldErrors := h.checkRequest(rule, &r)
		if len(fieldErrors) == 0 {
			continue
		}
		failingRequests++
		evidenceList = append(evidenceList, model.ValidationEvidence{
			Type:        "request",
			Description: "Request failed field checks: " + strings.Join(fieldErrors, "; "),
			Actual:      r.URL,
			Ref:         map[string]any{"url": r.URL, "timestamp": r.Timestamp},
		})
	}

	if failingRequests > 0 {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("%d of %d matching request(s) failed payload checks", failingRequests, len(requests)), start)
		res.Evidence = evidenceList
		return []model.ValidationResult{res}, nil
	}

	res := newResult(rule, model.StatusPassed,
		fmt.Sprintf("All %d matching request(s) passed payload checks", len(requests)), start)
	return []model.ValidationResult{res}, nil
}

// checkRequest applies every declared field check to one request and returns
// the failures.
func (h *payloadHandler) checkRequest(rule *model.Rule, r *model.NetworkRequest) []string {
	fields := h.extractFields(rule.Source, r)

	var errors []string
	for _, check := range rule.Fields {
		key := check.Name
		if rule.Source == "headers" {
			key = strings.ToLower(key)
		}
		val, exists := fields[key]
		if !exists {
			if check.Required {
				errors = append(errors, fmt.Sprintf("missing required field %q", check.Name))
			}
			continue
		}
		if check.Type != "" && !matchesType(val, check.Type) {
			errors = append(errors, fmt.Sprintf("field %q has wrong type (expected %s)", check.Name, check.Type))
		}
		if check.Value != nil && !valuesEqual(check.Value, val) {
			errors = append(errors, fmt.Sprintf("field %q = %v, expected %v", check.Name, val, check.Value))
		}
		if check.Pattern != "" {
			re, err := regexp.Compile(check.Pattern)
			if err != nil {
				errors = append(errors, fmt.Sprintf("field %q has invalid pattern %q", check.Name, check.Pattern))
				continue
			}
			if !re.MatchString(stringify(val)) {
				errors = append(errors, fmt.Sprintf("field %q = %v does not match %q", check.Name, val, check.Pattern))
			}
		}
	}
	return errors
}

// extractFields builds the field map from the declared source. Headers are
// matched case-insensitively; bodies are parsed as JSON first with a
// form-encoding fallback.
func (h *payloadHandler) extractFields(source string, r *model.NetworkRequest) map[string]any {
	switch source {
	case "body":
		return evidence.ParsePayload(r.Body)
	case "headers":
		out := make(map[string]any, len(r.Headers))
		for k, v := range r.Headers {
			out[strings.ToLower(k)] = v
		}
		return out
	default: // query
		params := evidence.ExtractQueryParams(r.URL)
		out := make(map[string]any, len(params))
		for k, v := range params {
			out[k] = v
		}
		return out
	}
}
