package detector

import (
	"context"
	"regexp"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

var (
	metaPixelIDRe = regexp.MustCompile(`^\d{15,16}$`)
	fbqInitRe     = regexp.MustCompile(`fbq\(\s*['"]init['"]\s*,\s*['"](\d{15,16})['"]`)
	fbqTrackRe    = regexp.MustCompile(`fbq\(\s*['"]track['"]\s*,\s*['"]([^'"]+)['"]`)
)

// metaDetector matches the Meta (Facebook) Pixel.
type metaDetector struct {
	base
}

// NewMetaDetector creates the Meta Pixel detector.
func NewMetaDetector() Detector {
	return &metaDetector{base{
		id:       "meta-pixel",
		name:     "Meta Pixel Detector",
		platform: "meta-pixel",
		category: model.CategoryAdvertising,
		priority: 70,
	}}
}

func (d *metaDetector) MightBePresent(idx *evidence.Index) bool {
	return idx.AnyURLContains("connect.facebook.net") ||
		idx.AnyURLContains("facebook.com/tr") ||
		idx.AnyInlineContains("fbq(") ||
		idx.HasCookie("_fbp")
}

func (d *metaDetector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	b := newInstance(d.platform, "Meta Pixel", d.category)

	for _, s := range idx.ScriptsMatching("fbevents.js") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodScriptTag,
			Matched:    "fbevents.js script",
			Value:      s.Src,
			Confidence: model.ConfidenceHigh,
		})
		b.addScriptURL(s.Src)
	}

	for _, r := range idx.RequestsMatching("facebook.com/tr") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodNetworkRequest,
			Matched:    "pixel fire",
			Value:      r.URL,
			Confidence: model.ConfidenceHigh,
		})
		if id := evidence.ExtractQueryParams(r.URL)["id"]; metaPixelIDRe.MatchString(id) {
			b.addID(id)
		}
		b.addEndpoint(r.URL)
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	trackedEvents := make([]string, 0)
	for _, s := range idx.InlineScripts {
		for _, m := range fbqInitRe.FindAllStringSubmatch(s.Content, -1) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "fbq init call",
				Value:      m[1],
				Confidence: model.ConfidenceMediumHigh,
			})
			b.addID(m[1])
		}
		for _, m := range fbqTrackRe.FindAllStringSubmatch(s.Content, -1) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "fbq track call",
				Value:      m[1],
				Confidence: model.ConfidenceMedium,
			})
			trackedEvents = append(trackedEvents, m[1])
		}
	}
	if len(trackedEvents) > 0 {
		b.setProperty("trackedEvents", trackedEvents)
	}

	for _, name := range []string{"_fbp", "_fbc"} {
		if idx.HasCookie(name) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodCookie,
				Matched:    name + " cookie",
				Confidence: model.ConfidenceMediumLow,
			})
		}
	}

	if !b.hasEvidence() {
		return nil, nil
	}
	return []model.TagInstance{b.build(idx)}, nil
}
