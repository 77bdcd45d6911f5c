package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

var (
	segmentWriteKeyRe = regexp.MustCompile(`analytics\.js/v1/([A-Za-z0-9]{20,})/`)
	analyticsLoadRe   = regexp.MustCompile(`analytics\.load\(\s*['"]([A-Za-z0-9]{20,})['"]`)
)

// segmentEndpoints maps the single-letter Segment API paths to call types.
var segmentEndpoints = map[string]string{
	"/v1/t": "track",
	"/v1/i": "identify",
	"/v1/p": "page",
	"/v1/g": "group",
	"/v1/a": "alias",
	"/v1/b": "batch",
}

// segmentDetector matches Segment's analytics.js.
type segmentDetector struct {
	base
}

// NewSegmentDetector creates the Segment detector.
func NewSegmentDetector() Detector {
	return &segmentDetector{base{
		id:       "segment",
		name:     "Segment Detector",
		platform: "segment",
		category: model.CategoryAnalytics,
		priority: 75,
	}}
}

func (d *segmentDetector) MightBePresent(idx *evidence.Index) bool {
	return idx.AnyURLContains("segment.com") ||
		idx.AnyURLContains("segment.io") ||
		idx.AnyInlineContains("analytics.load")
}

func (d *segmentDetector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	b := newInstance(d.platform, "Segment", d.category)

	for _, fragment := range []string{"cdn.segment.com", "cdn.segment.io"} {
		for _, s := range idx.ScriptsMatching(fragment) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodScriptTag,
				Matched:    "analytics.js script",
				Value:      s.Src,
				Confidence: model.ConfidenceHigh,
			})
			b.addScriptURL(s.Src)
			if m := segmentWriteKeyRe.FindStringSubmatch(s.Src); m != nil {
				b.addID(m[1])
			}
		}
	}

	callTypes := make([]string, 0)
	for _, fragment := range []string{"api.segment.com", "api.segment.io"} {
		for _, r := range idx.RequestsMatching(fragment) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkRequest,
				Matched:    "Segment API request",
				Value:      r.URL,
				Confidence: model.ConfidenceHigh,
			})
			lower := strings.ToLower(r.URL)
			for path, call := range segmentEndpoints {
				if strings.Contains(lower, path) {
					callTypes = append(callTypes, call)
					break
				}
			}
			b.addEndpoint(r.URL)
			b.addRequestID(r.ID)
			b.touch(r.Timestamp)
		}
	}
	if len(callTypes) > 0 {
		b.setProperty("callTypes", callTypes)
	}

	for _, s := range idx.InlineScripts {
		if m := analyticsLoadRe.FindStringSubmatch(s.Content); m != nil {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "analytics.load call",
				Value:      m[1],
				Confidence: model.ConfidenceMediumHigh,
			})
			b.addID(m[1])
		}
		for _, call := range []string{"analytics.track(", "analytics.page(", "analytics.identify(", "analytics.group(", "analytics.alias("} {
			if strings.Contains(s.Content, call) {
				b.addEvidence(model.DetectionEvidence{
					Method:     model.MethodInlineScript,
					Matched:    strings.TrimSuffix(call, "(") + " call",
					Confidence: model.ConfidenceMedium,
				})
			}
		}
	}

	for _, name := range []string{"ajs_user_id", "ajs_anonymous_id"} {
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
