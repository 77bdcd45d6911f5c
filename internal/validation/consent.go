package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/raysh454/tagscope/internal/model"
)

// consentHandler checks consent signaling around a platform's tag. An
// absent tag yields a skipped result: a tag that never fired cannot violate
// a consent-ordering requirement.
type consentHandler struct{}

// NewConsentHandler creates the consent rule handler.
func NewConsentHandler() RuleHandler { return &consentHandler{} }

func (h *consentHandler) Type() model.RuleType { return model.RuleConsent }

func (h *consentHandler) CanHandle(rule *model.Rule) bool {
	return rule != nil && rule.Type == model.RuleConsent
}

func (h *consentHandler) Evaluate(_ context.Context, rule *model.Rule, vc *Context) ([]model.ValidationResult, error) {
	start := time.Now()
	if rule.Platform == "" {
		return []model.ValidationResult{errorResult(rule, fmt.Errorf("consent rule requires a platform"), start)}, nil
	}
	tag := vc.FindTag(rule.Platform)
	if tag == nil {
		res := newResult(rule, model.StatusSkipped,
			fmt.Sprintf("Tag for platform %q not detected; consent check not applicable", rule.Platform), start)
		return []model.ValidationResult{res}, nil
	}

	// No signal descriptor means no specific signal is required: consent is
	// assumed present from the start of the scan.
	found, signalTS, detail := true, int64(0), "No specific consent signal required"
	if rule.ConsentSignal != nil {
		found, signalTS, detail = h.findSignal(rule.ConsentSignal, vc)
	}
	if !found {
		res := newResult(rule, model.StatusFailed,
			fmt.Sprintf("Consent signal %q (%s) not found", rule.ConsentSignal.Name, rule.ConsentSignal.Source), start)
		res.Evidence = []model.ValidationEvidence{{
			Type:        "consent",
			Description: "Expected consent signal",
			Expected:    rule.ConsentSignal.Name,
		}}
		return []model.ValidationResult{res}, nil
	}

	ev := model.ValidationEvidence{
		Type:        "consent",
		Description: detail,
		Actual:      signalTS,
		Ref:         map[string]any{"tagFirstSeenAt": tag.FirstSeenAt},
	}

	if !rule.RequireConsentBefore {
		res := newResult(rule, model.StatusPassed, "Consent signal present", start)
		res.Evidence = []model.ValidationEvidence{ev}
		return []model.ValidationResult{res}, nil
	}

	// Cookie and localStorage signals carry no timestamp and resolve to 0,
	// which always precedes a real tag timestamp.
	if signalTS < tag.FirstSeenAt {
		res := newResult(rule, model.StatusPassed,
			fmt.Sprintf("Consent granted at %d before %s tag fired at %d", signalTS, rule.Platform, tag.FirstSeenAt), start)
		res.Evidence = []model.ValidationEvidence{ev}
		return []model.ValidationResult{res}, nil
	}

	res := newResult(rule, model.StatusFailed,
		fmt.Sprintf("Tag %q fired at %d before consent was granted at %d", rule.Platform, tag.FirstSeenAt, signalTS), start)
	res.Evidence = []model.ValidationEvidence{ev}
	return []model.ValidationResult{res}, nil
}

// findSignal locates the consent indicator. Data-layer signals match events
// whose event name equals the signal name or whose payload carries the name
// as a key; cookie and localStorage signals match by key and optional value.
func (h *consentHandler) findSignal(sig *model.ConsentSignal, vc *Context) (bool, int64, string) {
	switch sig.Source {
	case "dataLayer":
		if vc.Observation == nil {
			return false, 0, ""
		}
		for _, ev := range vc.Observation.DataLayerEvents {
			name, _ := ev.Data["event"].(string)
			if name == sig.Name {
				if sig.Value == nil || valuesEqual(sig.Value, ev.Data["event"]) {
					return true, ev.Timestamp, fmt.Sprintf("Consent event %q on %s", sig.Name, ev.ContainerName)
				}
			}
			if v, ok := ev.Data[sig.Name]; ok {
				if sig.Value == nil || valuesEqual(sig.Value, v) {
					return true, ev.Timestamp, fmt.Sprintf("Consent key %q on %s", sig.Name, ev.ContainerName)
				}
			}
		}
		return false, 0, ""
	case "cookie":
		v, ok := vc.GetCookie(sig.Name)
		if !ok || (sig.Value != nil && !valuesEqual(sig.Value, v)) {
			return false, 0, ""
		}
		return true, 0, fmt.Sprintf("Consent cookie %q", sig.Name)
	case "localStorage":
		v, ok := vc.GetLocalStorage(sig.Name)
		if !ok || (sig.Value != nil && !valuesEqual(sig.Value, v)) {
			return false, 0, ""
		}
		return true, 0, fmt.Sprintf("Consent storage key %q", sig.Name)
	default:
		return false, 0, ""
	}
}
