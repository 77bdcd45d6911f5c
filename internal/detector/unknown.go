package detector

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/raysh454/tagscope/internal/evidence"
	"github.com/raysh454/tagscope/internal/model"
)

// UnknownConfig is the tunable heuristic table for the catch-all detector.
// The keyword sets are inherently fuzzy; adjust them per deployment rather
// than treating them as a contract.
type UnknownConfig struct {
	// KnownPlatformDomains are domains already covered by dedicated
	// detectors; requests to them are never reported as unknown tags.
	KnownPlatformDomains []string

	// TrackingDomainKeywords flag a host as tracking-like.
	TrackingDomainKeywords []string

	// TrackingPathKeywords flag a URL path as tracking-like.
	TrackingPathKeywords []string

	// TrackingParams are query parameter names typical for beacons.
	TrackingParams []string
}

// DefaultUnknownConfig returns the built-in heuristic table.
func DefaultUnknownConfig() UnknownConfig {
	return UnknownConfig{
		KnownPlatformDomains: []string{
			"google-analytics.com", "googletagmanager.com",
			"facebook.com", "facebook.net",
			"segment.com", "segment.io",
			"omtrdc.net", "demdex.net", "adobedtm.com",
			"tiqcdn.com", "tealiumiq.com",
		},
		TrackingDomainKeywords: []string{
			"analytics", "tracking", "pixel", "beacon", "telemetry",
			"stats", "metrics", "collect", "events", "conversion", "tag",
		},
		TrackingPathKeywords: []string{
			"track", "collect", "pixel", "beacon", "event", "analytics",
			"conversion", "impression", "click", "view",
		},
		TrackingParams: []string{
			"event", "e", "ev", "pid", "uid", "cid", "sid", "tid",
			"timestamp", "ts", "track", "action",
		},
	}
}

// unknownDetector is the catch-all for tracking-looking traffic no dedicated
// detector claims. It groups candidate requests by registrable domain and
// emits one low-confidence instance per domain; the engine then merges them
// under the shared "unknown" platform key.
type unknownDetector struct {
	base
	cfg UnknownConfig
}

// NewUnknownDetector creates the catch-all detector with the given heuristic
// table.
func NewUnknownDetector(cfg UnknownConfig) Detector {
	return &unknownDetector{
		base: base{
			id:       "unknown-tag",
			name:     "Unknown Tag Detector",
			platform: "unknown",
			category: model.CategoryUnknown,
			priority: 1,
		},
		cfg: cfg,
	}
}

// MightBePresent always reports true: the catch-all has no cheap signature.
func (d *unknownDetector) MightBePresent(*evidence.Index) bool { return true }

func (d *unknownDetector) Detect(_ context.Context, idx *evidence.Index) ([]model.TagInstance, error) {
	obs := idx.Observation()
	if obs == nil {
		return nil, nil
	}

	type candidate struct {
		req  *model.NetworkRequest
		conf float64
	}
	byDomain := make(map[string][]candidate)
	var domains []string

	for i := range obs.Requests {
		r := &obs.Requests[i]
		host := evidence.ExtractDomain(r.URL)
		if host == "" || d.isKnownPlatform(host) {
			continue
		}
		conf := d.scoreRequest(r, host)
		if conf == 0 {
			continue
		}
		key := registrableDomain(host)
		if _, seen := byDomain[key]; !seen {
			domains = append(domains, key)
		}
		byDomain[key] = append(byDomain[key], candidate{req: r, conf: conf})
	}

	sort.Strings(domains)

	var out []model.TagInstance
	for _, domain := range domains {
		b := newInstance(d.platform, "Unknown Platform", d.category)
		b.addID(domain)
		b.setProperty("domain", domain)
		for _, c := range byDomain[domain] {
			b.addEvidence(model.DetectionEvidence{
				Method:     model.MethodNetworkRequest,
				Matched:    "tracking-like request",
				Value:      c.req.URL,
				Confidence: c.conf,
				Context:    map[string]any{"domain": domain},
			})
			b.addEndpoint(c.req.URL)
			b.addRequestID(c.req.ID)
			b.touch(c.req.Timestamp)
		}
		inst := b.build(idx)
		if inst.Confidence < model.ConfidenceMinimal {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// scoreRequest weighs one request; 0 means "not tracking-like at all".
func (d *unknownDetector) scoreRequest(r *model.NetworkRequest, host string) float64 {
	conf := 0.0
	if r.IsAnalyticsRequest {
		conf = model.ConfidenceLow
	}
	for _, kw := range d.cfg.TrackingDomainKeywords {
		if strings.Contains(host, kw) {
			conf = max(conf, model.ConfidenceLow)
			break
		}
	}
	lower := strings.ToLower(r.URL)
	for _, kw := range d.cfg.TrackingPathKeywords {
		if strings.Contains(lower, "/"+kw) {
			conf = max(conf, model.ConfidenceLow)
			break
		}
	}
	params := evidence.ExtractQueryParams(r.URL)
	hits := 0
	for _, p := range d.cfg.TrackingParams {
		if _, ok := params[p]; ok {
			hits++
		}
	}
	switch {
	case hits >= 2:
		conf = max(conf, model.ConfidenceMediumLow)
	case hits == 1 && conf > 0:
		conf = max(conf, model.ConfidenceLow)
	case hits == 1:
		conf = model.ConfidenceMinimal
	}
	return conf
}

func (d *unknownDetector) isKnownPlatform(host string) bool {
	for _, known := range d.cfg.KnownPlatformDomains {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

// registrableDomain collapses a hostname to its eTLD+1 so that subdomain
// variants of one vendor group together.
func registrableDomain(host string) string {
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}
