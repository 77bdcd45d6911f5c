package validation_test

import (
	"strings"
	"testing"

	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/testutil"
	"github.com/raysh454/tagscope/internal/validation"
)

func orderRule(before, after *model.OrderItem) *model.Rule {
	return &model.Rule{
		ID:       "o1",
		Name:     "firing order",
		Type:     model.RuleOrder,
		Severity: model.SeverityError,
		Before:   before,
		After:    after,
	}
}

func TestOrderEventBeforeTagPasses(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.DataLayerPush(obs, "dataLayer", 1100, map[string]any{"event": "consent_granted"})
	det := detectionWith(ga4Tag(1500))

	rule := orderRule(
		&model.OrderItem{Type: "event", Identifier: "consent_granted"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, det, ""))
	if res.Status != model.StatusPassed {
		t.Fatalf("status = %q, want passed (%s)", res.Status, res.Message)
	}
	if res.Message != `event "consent_granted" fired before tag "ga4"` {
		t.Errorf("message = %q", res.Message)
	}
}

func TestOrderWrongOrderFails(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.DataLayerPush(obs, "dataLayer", 2000, map[string]any{"event": "consent_granted"})
	det := detectionWith(ga4Tag(1500))

	rule := orderRule(
		&model.OrderItem{Type: "event", Identifier: "consent_granted"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, det, ""))
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if !strings.HasPrefix(res.Message, "Wrong order:") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestOrderSwappedSidesMirrorEvidence(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.DataLayerPush(obs, "dataLayer", 1100, map[string]any{"event": "consent_granted"})
	det := detectionWith(ga4Tag(1500))

	event := &model.OrderItem{Type: "event", Identifier: "consent_granted"}
	tag := &model.OrderItem{Type: "tag", Identifier: "ga4"}

	forward := evaluateOne(t, validation.NewOrderHandler(), orderRule(event, tag), validation.NewContext(obs, det, ""))
	if forward.Status != model.StatusPassed {
		t.Fatalf("forward status = %q, want passed (%s)", forward.Status, forward.Message)
	}
	if forward.Evidence[0].Actual != int64(400) {
		t.Errorf("forward gap = %v, want 400", forward.Evidence[0].Actual)
	}

	swapped := evaluateOne(t, validation.NewOrderHandler(), orderRule(tag, event), validation.NewContext(obs, det, ""))
	if swapped.Status != model.StatusFailed {
		t.Fatalf("swapped status = %q, want failed (%s)", swapped.Status, swapped.Message)
	}
	if !strings.HasPrefix(swapped.Message, "Wrong order:") {
		t.Errorf("swapped message = %q", swapped.Message)
	}
	if swapped.Evidence[0].Actual != int64(-400) {
		t.Errorf("swapped gap = %v, want -400", swapped.Evidence[0].Actual)
	}

	// Both directions observe the same underlying timestamps.
	for _, desc := range []string{forward.Evidence[0].Description, swapped.Evidence[0].Description} {
		if !strings.Contains(desc, "1100") || !strings.Contains(desc, "1500") {
			t.Errorf("evidence description %q missing observed timestamps", desc)
		}
	}
}

func TestOrderTimeConstraintExceeded(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.DataLayerPush(obs, "dataLayer", 1000, map[string]any{"event": "page_view"})
	det := detectionWith(ga4Tag(5000))

	rule := orderRule(
		&model.OrderItem{Type: "event", Identifier: "page_view"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	rule.MaxTimeDifference = int64Ptr(1000)

	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, det, ""))
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Message != "Order correct but time constraint exceeded: 4000ms apart, allowed 1000ms" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestOrderMissingItemFails(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	det := detectionWith(ga4Tag(1500))

	rule := orderRule(
		&model.OrderItem{Type: "event", Identifier: "consent_granted"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, det, ""))
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Message != `Cannot verify order: event "consent_granted" not found` {
		t.Errorf("message = %q", res.Message)
	}
}

func TestOrderBothItemsMissingNamesBoth(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	rule := orderRule(
		&model.OrderItem{Type: "event", Identifier: "consent_granted"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, nil, ""))
	if res.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if !strings.Contains(res.Message, `event "consent_granted" and tag "ga4"`) {
		t.Errorf("message = %q", res.Message)
	}
}

func TestOrderScriptFallsBackToScanStart(t *testing.T) {
	obs := testutil.NewObservation("https://example.com") // StartedAt 1000
	testutil.Script(obs, "https://www.googletagmanager.com/gtag/js?id=G-AAA111", false)
	det := detectionWith(ga4Tag(1500))

	rule := orderRule(
		&model.OrderItem{Type: "script", Identifier: `googletagmanager\.com/gtag/js`},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, det, ""))
	if res.Status != model.StatusPassed {
		t.Fatalf("status = %q, want passed (%s)", res.Status, res.Message)
	}
}

func TestOrderUnknownItemTypeIsError(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	rule := orderRule(
		&model.OrderItem{Type: "cookie", Identifier: "consent"},
		&model.OrderItem{Type: "tag", Identifier: "ga4"},
	)
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, nil, ""))
	if res.Status != model.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
}

func TestOrderMissingSidesIsError(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	rule := orderRule(nil, &model.OrderItem{Type: "tag", Identifier: "ga4"})
	res := evaluateOne(t, validation.NewOrderHandler(), rule, validation.NewContext(obs, nil, ""))
	if res.Status != model.StatusError {
		t.Fatalf("status = %q, want error", res.Status)
	}
}
