package detection_test

import (
	"testing"

	"github.com/raysh454/tagscope/internal/detection"
	"github.com/raysh454/tagscope/internal/model"
)

func instance(platform, primaryID string, conf float64, evConfs ...float64) model.TagInstance {
	inst := model.TagInstance{
		ID:           platform + "-" + primaryID,
		Platform:     platform,
		PlatformName: platform,
		Category:     model.CategoryAnalytics,
		Confidence:   conf,
		LoadMethod:   model.LoadUnknown,
		Configuration: model.TagConfiguration{
			PrimaryID: primaryID,
		},
	}
	for _, c := range evConfs {
		inst.Evidence = append(inst.Evidence, model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "signal",
			Confidence: c,
		})
	}
	return inst
}

func TestDeduplicateDistinctPlatformsUntouched(t *testing.T) {
	in := []model.TagInstance{
		instance("ga4", "G-AAA111", 0.9, 0.9),
		instance("gtm", "GTM-ABC123", 0.75, 0.75),
	}
	out := detection.Deduplicate(in)
	if len(out) != 2 {
		t.Fatalf("got %d tags, want 2", len(out))
	}
	if out[0].Platform != "ga4" || out[1].Platform != "gtm" {
		t.Errorf("order changed: %q, %q", out[0].Platform, out[1].Platform)
	}
}

func TestDeduplicateNeverRepeatsPlatform(t *testing.T) {
	in := []model.TagInstance{
		instance("ga4", "G-AAA111", 0.6, 0.6),
		instance("gtm", "GTM-ABC123", 0.75, 0.75),
		instance("ga4", "G-BBB222", 0.5, 0.5),
		instance("ga4", "G-AAA111", 0.4, 0.4),
	}
	out := detection.Deduplicate(in)
	seen := make(map[string]bool)
	for _, tag := range out {
		if seen[tag.Platform] {
			t.Fatalf("platform %q appears twice", tag.Platform)
		}
		seen[tag.Platform] = true
	}
	if len(out) != 2 {
		t.Fatalf("got %d tags, want 2", len(out))
	}
}

func TestMergeSingleInstanceUnchanged(t *testing.T) {
	in := instance("ga4", "G-AAA111", 0.37, 0.37)
	out := detection.Merge([]model.TagInstance{in})
	if out.Confidence != 0.37 {
		t.Errorf("single-element merge recomputed confidence: %v", out.Confidence)
	}
	if out.ID != in.ID {
		t.Errorf("single-element merge replaced the instance")
	}
}

func TestMergeRaisesConfidence(t *testing.T) {
	a := instance("ga4", "G-AAA111", 0.6, 0.6)
	b := instance("ga4", "G-AAA111", 0.5, 0.5)
	out := detection.Merge([]model.TagInstance{a, b})

	// 0.6 + 0.5*0.7
	if out.Confidence <= 0.6 {
		t.Errorf("merged confidence %v, want above the strongest input", out.Confidence)
	}
	if len(out.Evidence) != 2 {
		t.Errorf("got %d evidence items, want the union of both", len(out.Evidence))
	}
	if out.Configuration.PrimaryID != "G-AAA111" {
		t.Errorf("primary id %q, want G-AAA111", out.Configuration.PrimaryID)
	}
}

func TestMergePrimaryIDInsertionOrder(t *testing.T) {
	a := instance("ga4", "G-AAA111", 0.6, 0.6)
	a.Configuration.AdditionalIDs = []string{"G-EXTRA1"}
	b := instance("ga4", "G-BBB222", 0.5, 0.5)

	out := detection.Merge([]model.TagInstance{a, b})
	if out.Configuration.PrimaryID != "G-AAA111" {
		t.Errorf("primary id %q, want first instance's primary", out.Configuration.PrimaryID)
	}
	// Primaries outrank additional ids regardless of instance order.
	want := []string{"G-BBB222", "G-EXTRA1"}
	if len(out.Configuration.AdditionalIDs) != len(want) {
		t.Fatalf("additional ids %v, want %v", out.Configuration.AdditionalIDs, want)
	}
	for i, id := range want {
		if out.Configuration.AdditionalIDs[i] != id {
			t.Errorf("additional id %d = %q, want %q", i, out.Configuration.AdditionalIDs[i], id)
		}
	}
}

func TestMergeUnionsAndFlags(t *testing.T) {
	a := instance("ga4", "G-AAA111", 0.6, 0.6)
	a.ScriptURLs = []string{"https://a.example/one.js"}
	a.RequestIDs = []string{"req-1"}
	a.FirstSeenAt = 200
	a.LastSeenAt = 300
	a.DetectionMethods = []model.DetectionMethod{model.MethodScriptTag}

	b := instance("ga4", "G-AAA111", 0.5, 0.5)
	b.ScriptURLs = []string{"https://a.example/one.js", "https://a.example/two.js"}
	b.RequestIDs = []string{"req-1", "req-2"}
	b.FirstSeenAt = 100
	b.LastSeenAt = 250
	b.HasErrors = true
	b.Errors = []string{"boom"}
	b.DetectionMethods = []model.DetectionMethod{model.MethodNetworkRequest}
	b.LoadMethod = model.LoadGTM

	out := detection.Merge([]model.TagInstance{a, b})
	if len(out.ScriptURLs) != 2 {
		t.Errorf("script urls %v, want deduped union of 2", out.ScriptURLs)
	}
	if len(out.RequestIDs) != 2 {
		t.Errorf("request ids %v, want deduped union of 2", out.RequestIDs)
	}
	if out.FirstSeenAt != 100 || out.LastSeenAt != 300 {
		t.Errorf("seen window [%d, %d], want [100, 300]", out.FirstSeenAt, out.LastSeenAt)
	}
	if !out.HasErrors || len(out.Errors) != 1 {
		t.Errorf("error flags not OR-ed: hasErrors=%v errors=%v", out.HasErrors, out.Errors)
	}
	if out.LoadMethod != model.LoadGTM {
		t.Errorf("load method %q, want the more specific gtm", out.LoadMethod)
	}
	if len(out.DetectionMethods) != 2 {
		t.Errorf("detection methods %v, want union of 2", out.DetectionMethods)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := instance("ga4", "G-AAA111", 0.6, 0.6)
	b := instance("ga4", "G-BBB222", 0.5, 0.5)

	once := detection.Merge([]model.TagInstance{a, b})
	twice := detection.Merge([]model.TagInstance{once})
	if twice.Confidence != once.Confidence {
		t.Errorf("re-merge changed confidence: %v vs %v", twice.Confidence, once.Confidence)
	}
	if twice.Configuration.PrimaryID != once.Configuration.PrimaryID {
		t.Errorf("re-merge changed primary id")
	}
	if len(twice.Evidence) != len(once.Evidence) {
		t.Errorf("re-merge changed evidence count")
	}
}
