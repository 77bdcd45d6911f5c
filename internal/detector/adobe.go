package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

var (
	adobeBeaconRe  = regexp.MustCompile(`/b/ss/([^/]+)/`)
	adobeAccountRe = regexp.MustCompile(`s\.account\s*=\s*['"]([^'"]+)['"]`)
)

// adobeDetector matches Adobe Analytics (AppMeasurement) deployments,
// including ones bootstrapped through Adobe Launch.
type adobeDetector struct {
	base
}

// NewAdobeDetector creates the Adobe Analytics detector.
func NewAdobeDetector() Detector {
	return &adobeDetector{base{
		id:       "adobe-analytics",
		name:     "Adobe Analytics Detector",
		platform: "adobe-analytics",
		category: model.CategoryAnalytics,
		priority: 80,
	}}
}

func (d *adobeDetector) MightBePresent(idx *evidence.Index) bool {
	return idx.AnyURLContains("appmeasurement") ||
		idx.AnyURLContains("s_code") ||
		idx.AnyURLContains("omtrdc.net") ||
		idx.AnyURLContains("demdex.net") ||
		idx.AnyURLContains("assets.adobedtm.com") ||
		idx.AnyInlineContains("s.account") ||
		len(idx.CookiesWithPrefix("AMCV_")) > 0
}

func (d *adobeDetector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	b := newInstance(d.platform, "Adobe Analytics", d.category)

	for _, fragment := range []string{"appmeasurement", "s_code.js"} {
		for _, s := range idx.ScriptsMatching(fragment) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodScriptTag,
				Matched:    "AppMeasurement library",
				Value:      s.Src,
				Confidence: model.ConfidenceHigh,
			})
			b.addScriptURL(s.Src)
		}
	}

	for _, r := range idx.RequestsMatching("/b/ss/") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "Analytics beacon",
			Value:      r.URL,
			Confidence: model.ConfidenceHigh,
		})
		// The first path segment after /b/ss/ carries the report suite ids,
		// comma-separated for multi-suite tagging.
		if m := adobeBeaconRe.FindStringSubmatch(strings.ToLower(r.URL)); m != nil {
			for _, rsid := range strings.Split(m[1], ",") {
				if rsid = strings.TrimSpace(rsid); rsid != "" {
					b.addID(rsid)
				}
			}
		}
		b.addEndpoint(r.URL)
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	for _, r := range idx.RequestsMatching("omtrdc.net") {
		if strings.Contains(strings.ToLower(r.URL), "/b/ss/") {
			continue // already counted as a beacon
		}
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "omtrdc.net collection request",
			Value:      r.URL,
			Confidence: model.ConfidenceMediumHigh,
		})
		b.addEndpoint(r.URL)
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	for _, r := range idx.RequestsMatching("demdex.net") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "Audience Manager request",
			Value:      r.URL,
			Confidence: model.ConfidenceMediumLow,
		})
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	for _, s := range idx.InlineScripts {
		if m := adobeAccountRe.FindStringSubmatch(s.Content); m != nil {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "s.account assignment",
				Value:      m[1],
				Confidence: model.ConfidenceMedium,
			})
			for _, rsid := range strings.Split(m[1], ",") {
				if rsid = strings.TrimSpace(rsid); rsid != "" {
					b.addID(rsid)
				}
			}
		}
		if strings.Contains(s.Content, "s.trackingServer") {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "s.trackingServer assignment",
				Confidence: model.ConfidenceMediumLow,
			})
		}
		if strings.Contains(s.Content, "s.t(") || strings.Contains(s.Content, "s.tl(") {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "track call",
				Confidence: model.ConfidenceMediumLow,
			})
		}
	}

	for _, name := range idx.CookiesWithPrefix("AMCV_") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodCookie,
			Matched:    "Experience Cloud identity cookie",
			Value:      name,
			Confidence: model.ConfidenceMediumLow,
		})
	}

	if !b.hasEvidence() {
		return nil, nil
	}

	inst := b.build(idx)
	// A Launch library on the page means the deployment is managed by Adobe
	// Launch even when the AppMeasurement script itself was not injected.
	if idx.AnyURLContains("assets.adobedtm.com") {
		inst.LoadMethod = MoreSpecificLoadMethod(inst.LoadMethod, model.LoadAdobeLaunch)
	}
	return []model.TagInstance{inst}, nil
}
