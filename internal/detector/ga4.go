package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

var (
	ga4MeasurementRe = regexp.MustCompile(`G-[A-Z0-9]{6,10}`)
	gtagConfigRe     = regexp.MustCompile(`gtag\(\s*['"]config['"]\s*,\s*['"](G-[A-Z0-9]{6,10})['"]`)
)

// ga4Detector matches Google Analytics 4 properties.
type ga4Detector struct {
	base
}

// NewGA4Detector creates the Google Analytics 4 detector.
func NewGA4Detector() Detector {
	return &ga4Detector{base{
		id:       "ga4",
		name:     "Google Analytics 4 Detector",
		platform: "ga4",
		category: model.CategoryAnalytics,
		priority: 80,
	}}
}

func (d *ga4Detector) MightBePresent(idx *evidence.Index) bool {
	return idx.AnyURLContains("googletagmanager.com/gtag/js") ||
		idx.AnyURLContains("google-analytics.com") ||
		idx.AnyURLContains("/g/collect") ||
		idx.AnyInlineContains("gtag(")
}

func (d *ga4Detector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	b := newInstance(d.platform, "Google Analytics 4", d.category)

	for _, s := range idx.ScriptsMatching("googletagmanager.com/gtag/js") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodScriptTag,
			Matched:    "gtag.js script",
			Value:      s.Src,
			Confidence: model.ConfidenceHigh,
		})
		b.addScriptURL(s.Src)
		if id := evidence.ExtractQueryParams(s.Src)["id"]; ga4MeasurementRe.MatchString(id) {
			b.addID(id)
		}
	}

	for _, r := range idx.RequestsMatching("/g/collect") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "GA4 collect endpoint",
			Value:      r.URL,
			Confidence: model.ConfidenceHigh,
		})
		params := evidence.ExtractQueryParams(r.URL)
		if tid := params["tid"]; ga4MeasurementRe.MatchString(tid) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkPayload,
				Matched:    "tid parameter",
				Value:      tid,
				Confidence: model.ConfidenceMedium,
			})
			b.addID(tid)
		}
		b.addEndpoint(r.URL)
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	for _, s := range idx.InlineScripts {
		for _, m := range gtagConfigRe.FindAllStringSubmatch(s.Content, -1) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "gtag config call",
				Value:      m[1],
				Confidence: model.ConfidenceMediumHigh,
			})
			b.addID(m[1])
		}
	}

	if idx.HasCookie("_ga") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodCookie,
			Matched:    "_ga cookie",
			Confidence: model.ConfidenceLow,
		})
	}
	for _, name := range idx.CookiesWithPrefix("_ga_") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodCookie,
			Matched:    "measurement-scoped _ga cookie",
			Value:      name,
			Confidence: model.ConfidenceMediumLow,
		})
		// The cookie suffix mirrors the measurement id stream.
		if suffix := strings.TrimPrefix(name, "_ga_"); suffix != "" {
			if id := "G-" + suffix; ga4MeasurementRe.MatchString(id) {
				b.addID(id)
			}
		}
	}

	if !b.hasEvidence() {
		return nil, nil
	}
	return []model.TagInstance{b.build(idx)}, nil
}
