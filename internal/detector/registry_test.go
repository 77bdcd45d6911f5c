package detector_test

import (
	"context"
	"testing"

	"github.com/raysh454/tagscope/internal/detector"
	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/testutil"
)

type stubDetector struct {
	id       string
	priority int
}

func (d *stubDetector) ID() string                  { return d.id }
func (d *stubDetector) Name() string                { return d.id }
func (d *stubDetector) Platform() string            { return d.id }
func (d *stubDetector) Category() model.TagCategory { return model.CategoryAnalytics }
func (d *stubDetector) Priority() int               { return d.priority }
func (d *stubDetector) MightBePresent(_ *evidence.Index) bool {
	return true
}
func (d *stubDetector) Detect(_ context.Context, _ *evidence.Index) ([]model.TagInstance, error) {
	return nil, nil
}

func TestRegistryPriorityOrder(t *testing.T) {
	r := detector.NewRegistry(&testutil.DummyLogger{})
	for _, d := range []detector.Detector{
		&stubDetector{id: "low", priority: 10},
		&stubDetector{id: "high", priority: 90},
		&stubDetector{id: "mid", priority: 50},
	} {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID(), err)
		}
	}

	got := r.EnabledByPriority()
	want := []string{"high", "mid", "low"}
	if len(got) != len(want) {
		t.Fatalf("got %d detectors, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID() != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID(), id)
		}
	}
}

func TestRegistryStableTies(t *testing.T) {
	r := detector.NewRegistry(&testutil.DummyLogger{})
	for _, id := range []string{"a", "b", "c"} {
		if err := r.Register(&stubDetector{id: id, priority: 50}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	got := r.EnabledByPriority()
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID() != id {
			t.Errorf("position %d: got %q, want %q (registration order)", i, got[i].ID(), id)
		}
	}
}

func TestRegistryDuplicateID(t *testing.T) {
	r := detector.NewRegistry(&testutil.DummyLogger{})
	if err := r.Register(&stubDetector{id: "dup", priority: 10}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(&stubDetector{id: "dup", priority: 20}); err == nil {
		t.Fatal("duplicate register: expected error")
	}
}

func TestRegistryEnableDisable(t *testing.T) {
	r := detector.NewRegistry(&testutil.DummyLogger{})
	if err := r.Register(&stubDetector{id: "x", priority: 10}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if !r.Disable("x") {
		t.Fatal("Disable returned false for registered detector")
	}
	if got := r.EnabledByPriority(); len(got) != 0 {
		t.Fatalf("disabled detector still enumerated: %d", len(got))
	}
	if !r.Enable("x") {
		t.Fatal("Enable returned false for registered detector")
	}
	if got := r.EnabledByPriority(); len(got) != 1 {
		t.Fatalf("re-enabled detector missing: %d", len(got))
	}
	if r.Enable("missing") {
		t.Fatal("Enable returned true for unknown id")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := detector.NewRegistry(&testutil.DummyLogger{})
	if err := r.Register(&stubDetector{id: "x", priority: 10}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.Unregister("x") {
		t.Fatal("Unregister returned false")
	}
	if _, ok := r.Get("x"); ok {
		t.Fatal("detector still present after Unregister")
	}
	if r.Unregister("x") {
		t.Fatal("second Unregister returned true")
	}
}

func TestDefaultRegistryHasBuiltins(t *testing.T) {
	r := detector.NewDefaultRegistry(&testutil.DummyLogger{})
	detectors := r.EnabledByPriority()
	if len(detectors) != 6 {
		t.Fatalf("got %d built-in detectors, want 6", len(detectors))
	}
	// GTM runs first, the unknown fallback last.
	if detectors[0].ID() != "gtm" {
		t.Errorf("first detector %q, want gtm", detectors[0].ID())
	}
	if detectors[len(detectors)-1].ID() != "unknown-tag" {
		t.Errorf("last detector %q, want unknown-tag", detectors[len(detectors)-1].ID())
	}
}
