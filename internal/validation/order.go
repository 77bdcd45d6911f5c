package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/tagscope/internal/model"
)

// orderHandler checks that one item fired before another, optionally within
// a maximum time window. A missing item on either side is a failure with a
// message naming the missing side — an order requirement over absent items
// cannot be satisfied.
type orderHandler struct{}

// NewOrderHandler creates the order rule handler.
func NewOrderHandler() RuleHandler { return &orderHandler{} }

func (h *orderHandler) Type() model.RuleType { return model.RuleOrder }

func (h *orderHandler) CanHandle(rule *model.Rule) bool {
	return rule != nil && rule.Type == model.RuleOrder
}

func (h *orderHandler) Evaluate(_ context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	start := time.Now()
	if rule.Before == nil || rule.After == nil {
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("order rule requires before and after items"), start)}, nil
	}

	beforeTS, beforeOK, err := h.itemTimestamp(rule.Before, vc)
	if err != nil {
		return []model.ValidationResult{errorResult(rule, err, start)}, nil
	}
	afterTS, afterOK, err := h.itemTimestamp(rule.After, vc)
	if err != nil {
		return []model.ValidationResult{errorResult(rule, err, start)}, nil
	}

	if !beforeOK || !afterOK {
		missing := describeItem(rule.Before)
		if !afterOK {
			missing = describeItem(rule.After)
			if !beforeOK {
				missing = describeItem(rule.Before) + " and " + describeItem(rule.After)
			}
		}
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("Cannot verify order: %s not found", missing), start)
		res.Evidence = []model.ValidationEvidence{{
			Type:        "order",
			Description: "Missing order item",
			Expected:    fmt.Sprintf("%s before %s", describeItem(rule.Before), describeItem(rule.After)),
			Actual:      missing + " absent",
		}}
		return []model.ValidationResult{res}, nil
	}

	ev := model.ValidationEvidence{
		Type:        "order",
		Description: fmt.Sprintf("%s at %d, %s at %d", describeItem(rule.Before), beforeTS, describeItem(rule.After), afterTS),
		Actual:      afterTS - beforeTS,
	}

	if beforeTS >= afterTS {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("Wrong order: %s fired at %d, after %s at %d",
				describeItem(rule.Before), beforeTS, describeItem(rule.After), afterTS), start)
		res.Evidence = []model.ValidationEvidence{ev}
		return []model.ValidationResult{res}, nil
	}

	if rule.MaxTimeDifference != nil && afterTS-beforeTS > *rule.MaxTimeDifference {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("Order correct but time constraint exceeded: %dms apart, allowed %dms",
				afterTS-beforeTS, *rule.MaxTimeDifference), start)
		res.Evidence = []model.ValidationEvidence{ev}
		return []model.ValidationResult{res}, nil
	}

	res := newResult(rule, model.StatusPassed,
		fmt.Sprintf("%s fired before %s", describeItem(rule.Before), describeItem(rule.After)), start)
	res.Evidence = []model.ValidationEvidence{ev}
	return []model.ValidationResult{res}, nil
}

// itemTimestamp resolves when an order item occurred: tags use first-seen,
// events use the first matching data-layer push, scripts use their observed
// timestamp (falling back to the scan start when the collaborator did not
// record one).
func (h *orderHandler) itemTimestamp(item *model.OrderItem, vc *Context) (int64, bool, error) {
	switch item.Type {
	case "tag":
		tag := vc.FindTag(item.Identifier)
		if tag == nil {
			return 0, false, nil
		}
		return tag.FirstSeenAt, true, nil
	case "event":
		ts, ok := vc.EventTimestamp(item.Identifier)
		return ts, ok, nil
	case "script":
		scripts, err := vc.FindScripts(item.Identifier)
		if err != nil {
			return 0, false, err
		}
		if len(scripts) == 0 {
			return 0, false, nil
		}
		ts := scripts[0].Timestamp
		if ts == 0 && vc.Observation != nil {
			ts = vc.Observation.StartedAt
		}
		return ts, true, nil
	default:
		return 0, false, fmt.Errorf("unknown order item type: %q", item.Type)
	}
}

func describeItem(item *model.OrderItem) string {
	return fmt.Sprintf("%s %q", item.Type, item.Identifier)
}
