package detector

import (
	"context"
	"regexp"
	"strings"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

var gtmContainerRe = regexp.MustCompile(`GTM-[A-Z0-9]{6,8}`)

// gtmDetector matches Google Tag Manager containers. It runs in the highest
// priority band because load-method attribution on other platforms depends
// on knowing whether a GTM container is present.
type gtmDetector struct {
	base
}

// NewGTMDetector creates the Google Tag Manager detector.
func NewGTMDetector() Detector {
	return &gtmDetector{base{
		id:       "gtm",
		name:     "Google Tag Manager Detector",
		platform: "gtm",
		category: model.CategoryTagManager,
		priority: 100,
	}}
}

func (d *gtmDetector) MightBePresent(idx *evidence.Index) bool {
	return idx.AnyURLContains("googletagmanager.com") ||
		idx.AnyInlineContains("GTM-") ||
		len(idx.Events("dataLayer")) > 0
}

func (d *gtmDetector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	b := newInstance(d.platform, "Google Tag Manager", d.category)

	for _, s := range idx.ScriptsMatching("googletagmanager.com/gtm.js") {
		b.addEvidence(model.DetectionEvidence{
			Method:     model.MethodScriptTag,
			Matched:    "gtm.js script",
			Value:      s.Src,
			Confidence: model.ConfidenceHigh,
		})
		b.addScriptURL(s.Src)
		if id := evidence.ExtractQueryParams(s.Src)["id"]; gtmContainerRe.MatchString(id) {
			b.addID(id)
		}
	}

	for _, s := range idx.InlineScripts {
		if !strings.Contains(s.Content, "GTM-") {
			continue
		}
		for _, id := range gtmContainerRe.FindAllString(s.Content, -1) {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodInlineScript,
				Matched:    "GTM container id in inline script",
				Value:      id,
				Confidence: model.ConfidenceMedium,
			})
			b.addID(id)
		}
	}

	for _, r := range idx.RequestsMatching("googletagmanager.com") {
		lower := strings.ToLower(r.URL)
		switch {
		case strings.Contains(lower, "/gtm.js"):
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkRequest,
				Matched:    "gtm.js request",
				Value:      r.URL,
				Confidence: model.ConfidenceHigh,
			})
		case strings.Contains(lower, "/ns.html"):
			// noscript fallback iframe
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkRequest,
				Matched:    "ns.html noscript request",
				Value:      r.URL,
				Confidence: model.ConfidenceMediumHigh,
			})
		default:
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkRequest,
				Matched:    "googletagmanager.com request",
				Value:      r.URL,
				Confidence: model.ConfidenceLow,
			})
		}
		if id := evidence.ExtractQueryParams(r.URL)["id"]; gtmContainerRe.MatchString(id) {
			b.addID(id)
		}
		b.addEndpoint(r.URL)
		b.addRequestID(r.ID)
		b.touch(r.Timestamp)
	}

	for _, ev := range idx.Events("dataLayer") {
		name, _ := ev.Data["event"].(string)
		switch name {
		case "gtm.js", "gtm.dom", "gtm.load":
			conf := model.ConfidenceMedium
			if name == "gtm.js" {
				conf = model.ConfidenceMediumHigh
			}
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodDataLayer,
				Matched:    "dataLayer lifecycle event",
				Value:      name,
				Confidence: conf,
			})
			b.addEventID(ev.ID)
			b.touch(ev.Timestamp)
		}
	}

	if !b.hasEvidence() {
		return nil, nil
	}
	return []model.TagInstance{b.build(idx)}, nil
}
