package detector_test

import (
	"context"
	"testing"

	"github.com/raysh454/tagscope/internal/detector"
	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/testutil"
)

func detectOne(t *testing.T, d detector.Detector, obs *model.Observation) *model.TagInstance {
	t.Helper()
	idx := evidence.Build(obs)
	if !d.MightBePresent(idx) {
		t.Fatalf("%s: pre-check negative for a page that contains the platform", d.ID())
	}
	instances, err := d.Detect(context.Background(), idx)
	if err != nil {
		t.Fatalf("%s: detect: %v", d.ID(), err)
	}
	if len(instances) != 1 {
		t.Fatalf("%s: got %d instances, want 1", d.ID(), len(instances))
	}
	return &instances[0]
}

func detectNone(t *testing.T, d detector.Detector, obs *model.Observation) {
	t.Helper()
	idx := evidence.Build(obs)
	if !d.MightBePresent(idx) {
		return
	}
	instances, err := d.Detect(context.Background(), idx)
	if err != nil {
		t.Fatalf("%s: detect: %v", d.ID(), err)
	}
	if len(instances) != 0 {
		t.Fatalf("%s: got %d instances on a page without the platform", d.ID(), len(instances))
	}
}

func TestGTMDetectorScriptAndDataLayer(t *testing.T) {
	obs := testutil.GTMObservation("GTM-ABC123")
	inst := detectOne(t, detector.NewGTMDetector(), obs)

	if inst.Platform != "gtm" {
		t.Errorf("platform %q, want gtm", inst.Platform)
	}
	if inst.Category != model.CategoryTagManager {
		t.Errorf("category %q, want tag-manager", inst.Category)
	}
	if inst.Configuration.PrimaryID != "GTM-ABC123" {
		t.Errorf("primary id %q, want GTM-ABC123", inst.Configuration.PrimaryID)
	}
	// Script tag (0.9) plus two lifecycle events corroborate well past the
	// high-confidence threshold.
	if inst.Confidence < 0.75 {
		t.Errorf("confidence %v, want >= 0.75", inst.Confidence)
	}
	if inst.LoadMethod != model.LoadDirect {
		t.Errorf("load method %q, want direct", inst.LoadMethod)
	}
	if len(inst.DataLayerEventIDs) != 2 {
		t.Errorf("got %d data layer event ids, want 2", len(inst.DataLayerEventIDs))
	}
}

func TestGTMDetectorInlineContainerIDs(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.InlineScript(obs, `(function(){/* loader */})(window,document,'script','dataLayer','GTM-XYZ999');`)
	inst := detectOne(t, detector.NewGTMDetector(), obs)

	if inst.Configuration.PrimaryID != "GTM-XYZ999" {
		t.Errorf("primary id %q, want GTM-XYZ999", inst.Configuration.PrimaryID)
	}
	if len(inst.DetectionMethods) != 1 || inst.DetectionMethods[0] != model.MethodInlineScript {
		t.Errorf("detection methods %v, want [inline-script]", inst.DetectionMethods)
	}
}

func TestGTMDetectorAbsent(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://cdn.example/app.js", false)
	detectNone(t, detector.NewGTMDetector(), obs)
}

func TestGA4DetectorCollectBeacon(t *testing.T) {
	obs := testutil.GA4Observation("G-AAA111")
	inst := detectOne(t, detector.NewGA4Detector(), obs)

	if inst.Configuration.PrimaryID != "G-AAA111" {
		t.Errorf("primary id %q, want G-AAA111", inst.Configuration.PrimaryID)
	}
	if inst.Category != model.CategoryAnalytics {
		t.Errorf("category %q, want analytics", inst.Category)
	}
	// gtag.js script + collect request + tid payload
	if len(inst.Evidence) != 3 {
		t.Errorf("got %d evidence items, want 3", len(inst.Evidence))
	}
	if inst.FirstSeenAt != 1500 || inst.LastSeenAt != 1500 {
		t.Errorf("seen window [%d, %d], want [1500, 1500]", inst.FirstSeenAt, inst.LastSeenAt)
	}
}

func TestGA4DetectorMeasurementIDFromCookie(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Cookie(obs, "_ga", "GA1.1.123.456")
	testutil.Cookie(obs, "_ga_AAA111", "GS1.1.789")
	// A cookie alone gives no URL signal, so the pre-check needs one.
	req := testutil.Request(obs, "https://www.google-analytics.com/g/collect?v=2", 1200)
	req.IsAnalyticsRequest = true

	inst := detectOne(t, detector.NewGA4Detector(), obs)
	if inst.Configuration.PrimaryID != "G-AAA111" {
		t.Errorf("primary id %q, want G-AAA111 recovered from cookie", inst.Configuration.PrimaryID)
	}
}

func TestAdobeDetectorBeaconRSIDs(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://cdn.example/AppMeasurement.js", false)
	testutil.Request(obs, "https://metrics.example.com/b/ss/suiteone,suitetwo/1/JS-2.22.0/s123", 2000)

	inst := detectOne(t, detector.NewAdobeDetector(), obs)
	if inst.Configuration.PrimaryID != "suiteone" {
		t.Errorf("primary id %q, want suiteone", inst.Configuration.PrimaryID)
	}
	if len(inst.Configuration.AdditionalIDs) != 1 || inst.Configuration.AdditionalIDs[0] != "suitetwo" {
		t.Errorf("additional ids %v, want [suitetwo]", inst.Configuration.AdditionalIDs)
	}
	if inst.LoadMethod != model.LoadDirect {
		t.Errorf("load method %q, want direct", inst.LoadMethod)
	}
}

func TestAdobeDetectorLaunchUpgradesLoadMethod(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://assets.adobedtm.com/launch-abc.min.js", false)
	testutil.Request(obs, "https://metrics.example.com/b/ss/suiteone/1/JS-2.22.0/s123", 2000)

	inst := detectOne(t, detector.NewAdobeDetector(), obs)
	if inst.LoadMethod != model.LoadAdobeLaunch {
		t.Errorf("load method %q, want adobe-launch", inst.LoadMethod)
	}
}

func TestMetaDetectorPixel(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://connect.facebook.net/en_US/fbevents.js", true)
	testutil.InlineScript(obs, `fbq('init', '123456789012345'); fbq('track', 'PageView');`)
	testutil.Request(obs, "https://www.facebook.com/tr?id=123456789012345&ev=PageView", 1800)

	inst := detectOne(t, detector.NewMetaDetector(), obs)
	if inst.Configuration.PrimaryID != "123456789012345" {
		t.Errorf("primary id %q, want the pixel id", inst.Configuration.PrimaryID)
	}
	if inst.Category != model.CategoryAdvertising {
		t.Errorf("category %q, want advertising", inst.Category)
	}
	events, _ := inst.Configuration.Properties["trackedEvents"].([]string)
	if len(events) != 1 || events[0] != "PageView" {
		t.Errorf("tracked events %v, want [PageView]", events)
	}
	if inst.LoadMethod != model.LoadDynamic {
		t.Errorf("load method %q, want dynamic (injected, no TMS on page)", inst.LoadMethod)
	}
}

func TestSegmentDetectorWriteKey(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Script(obs, "https://cdn.segment.com/analytics.js/v1/AbCdEfGh1234567890XyZw/analytics.min.js", false)
	testutil.Request(obs, "https://api.segment.io/v1/t", 2100)

	inst := detectOne(t, detector.NewSegmentDetector(), obs)
	if inst.Configuration.PrimaryID != "AbCdEfGh1234567890XyZw" {
		t.Errorf("primary id %q, want the write key", inst.Configuration.PrimaryID)
	}
	calls, _ := inst.Configuration.Properties["callTypes"].([]string)
	if len(calls) != 1 || calls[0] != "track" {
		t.Errorf("call types %v, want [track]", calls)
	}
}

func TestUnknownDetectorGroupsByDomain(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Request(obs, "https://beacon.tracker-one.com/collect?event=view&uid=1&ts=2", 1100)
	testutil.Request(obs, "https://px.tracker-one.com/pixel?event=click&uid=1", 1200)
	testutil.Request(obs, "https://cdn.static-assets.com/logo.png", 1300)

	d := detector.NewUnknownDetector(detector.DefaultUnknownConfig())
	idx := evidence.Build(obs)
	instances, err := d.Detect(context.Background(), idx)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("got %d instances, want 1 (the tracker domain only)", len(instances))
	}
	inst := instances[0]
	if inst.Platform != "unknown" {
		t.Errorf("platform %q, want unknown", inst.Platform)
	}
	if inst.Configuration.PrimaryID != "tracker-one.com" {
		t.Errorf("primary id %q, want tracker-one.com", inst.Configuration.PrimaryID)
	}
	if len(inst.Endpoints) != 2 {
		t.Errorf("got %d endpoints, want both tracker requests", len(inst.Endpoints))
	}
}

func TestUnknownDetectorSkipsKnownPlatforms(t *testing.T) {
	obs := testutil.NewObservation("https://example.com")
	testutil.Request(obs, "https://www.google-analytics.com/g/collect?v=2&tid=G-AAA111", 1100)

	d := detector.NewUnknownDetector(detector.DefaultUnknownConfig())
	instances, err := d.Detect(context.Background(), evidence.Build(obs))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(instances) != 0 {
		t.Fatalf("known platform traffic reported as unknown: %d instances", len(instances))
	}
}
