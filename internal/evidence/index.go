// Package evidence normalizes a page observation into lookup-optimized
// indexes that detectors and validation handlers query. The index is a pure
// view over the observation: it is rebuilt per run and never mutates its
// source.
package evidence

import (
	"net/url"
	"strings"

	"github.com/raysh454/tagscope/internal/model"
)

// Index holds lowercase URL lists and lookup maps derived from one
// Observation. Build it once per detection run and share it read-only.
type Index struct {
	obs *model.Observation

	// ScriptURLs are the lowercased src values of all external scripts, in
	// document order.
	ScriptURLs   []string
	ScriptsByURL map[string]*model.ScriptTag

	// InlineScripts are scripts with inline content, in document order.
	InlineScripts []*model.ScriptTag

	// RequestURLs are the lowercased URLs of all observed requests.
	RequestURLs   []string
	RequestsByURL map[string][]*model.NetworkRequest

	CookieNames  map[string]struct{}
	CookieValues map[string]string

	// DataLayers groups pushed events by container name.
	DataLayers map[string][]model.DataLayerEvent
}

// Build derives an Index from an observation. Entries whose URLs cannot be
// parsed are skipped; Build never fails.
func Build(obs *model.Observation) *Index {
	idx := &Index{
		obs:           obs,
		ScriptsByURL:  make(map[string]*model.ScriptTag),
		RequestsByURL: make(map[string][]*model.NetworkRequest),
		CookieNames:   make(map[string]struct{}),
		CookieValues:  make(map[string]string),
		DataLayers:    make(map[string][]model.DataLayerEvent),
	}
	if obs == nil {
		return idx
	}

	for i := range obs.Scripts {
		s := &obs.Scripts[i]
		if s.Src != "" {
			lower := strings.ToLower(s.Src)
			if _, err := url.Parse(s.Src); err != nil {
				continue
			}
			idx.ScriptURLs = append(idx.ScriptURLs, lower)
			if _, seen := idx.ScriptsByURL[lower]; !seen {
				idx.ScriptsByURL[lower] = s
			}
		}
		if s.Content != "" {
			idx.InlineScripts = append(idx.InlineScripts, s)
		}
	}

	for i := range obs.Requests {
		r := &obs.Requests[i]
		if _, err := url.Parse(r.URL); err != nil {
			continue
		}
		lower := strings.ToLower(r.URL)
		if _, seen := idx.RequestsByURL[lower]; !seen {
			idx.RequestURLs = append(idx.RequestURLs, lower)
		}
		idx.RequestsByURL[lower] = append(idx.RequestsByURL[lower], r)
	}

	for _, c := range obs.Cookies {
		idx.CookieNames[c.Name] = struct{}{}
		if _, seen := idx.CookieValues[c.Name]; !seen {
			idx.CookieValues[c.Name] = c.Value
		}
	}

	for _, ev := range obs.DataLayerEvents {
		idx.DataLayers[ev.ContainerName] = append(idx.DataLayers[ev.ContainerName], ev)
	}

	return idx
}

// Observation returns the underlying observation.
func (idx *Index) Observation() *model.Observation { return idx.obs }

// ScriptsMatching returns external scripts whose lowercased src contains
// substr (substr must already be lowercase).
func (idx *Index) ScriptsMatching(substr string) []*model.ScriptTag {
	var out []*model.ScriptTag
	for _, u := range idx.ScriptURLs {
		if strings.Contains(u, substr) {
			if s, ok := idx.ScriptsByURL[u]; ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// RequestsMatching returns requests whose lowercased URL contains substr.
func (idx *Index) RequestsMatching(substr string) []*model.NetworkRequest {
	var out []*model.NetworkRequest
	for _, u := range idx.RequestURLs {
		if strings.Contains(u, substr) {
			out = append(out, idx.RequestsByURL[u]...)
		}
	}
	return out
}

// InlineContaining returns inline scripts whose content contains substr
// (case-sensitive, matching the patterns detectors look for).
func (idx *Index) InlineContaining(substr string) []*model.ScriptTag {
	var out []*model.ScriptTag
	for _, s := range idx.InlineScripts {
		if strings.Contains(s.Content, substr) {
			out = append(out, s)
		}
	}
	return out
}

// HasCookie reports whether a cookie with the exact name was observed.
func (idx *Index) HasCookie(name string) bool {
	_, ok := idx.CookieNames[name]
	return ok
}

// CookieValue returns the first observed value for the cookie name.
func (idx *Index) CookieValue(name string) (string, bool) {
	v, ok := idx.CookieValues[name]
	return v, ok
}

// CookiesWithPrefix returns all cookie names starting with prefix.
func (idx *Index) CookiesWithPrefix(prefix string) []string {
	var out []string
	for name := range idx.CookieNames {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Events returns the data-layer events for one container, in observed order.
func (idx *Index) Events(container string) []model.DataLayerEvent {
	return idx.DataLayers[container]
}

// AnyURLContains is the cheap pre-check primitive: it reports whether any
// script or request URL contains substr (substr must be lowercase).
func (idx *Index) AnyURLContains(substr string) bool {
	for _, u := range idx.ScriptURLs {
		if strings.Contains(u, substr) {
			return true
		}
	}
	for _, u := range idx.RequestURLs {
		if strings.Contains(u, substr) {
			return true
		}
	}
	return false
}

// AnyInlineContains reports whether any inline script contains substr.
func (idx *Index) AnyInlineContains(substr string) bool {
	for _, s := range idx.InlineScripts {
		if strings.Contains(s.Content, substr) {
			return true
		}
	}
	return false
}
