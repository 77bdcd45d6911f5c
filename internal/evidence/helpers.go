package evidence

import (
	"encoding/json"
	"net/url"
	"strings"
)

// ExtractQueryParams parses the query string of a URL into a flat map,
// keeping the first value per key. Returns an empty map on malformed URLs.
func ExtractQueryParams(raw string) map[string]string {
	out := make(map[string]string)
	u, err := url.Parse(raw)
	if err != nil {
		return out
	}
	for key, vals := range u.Query() {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

// ExtractDomain returns the lowercased hostname of a URL, or "" if it cannot
// be parsed.
func ExtractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ParsePayload interprets a request body as a field map: JSON object first,
// falling back to form encoding. Returns nil when the body matches neither.
func ParsePayload(body string) map[string]any {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	var asJSON map[string]any
	if err := json.Unmarshal([]byte(body), &asJSON); err == nil {
		return asJSON
	}
	vals, err := url.ParseQuery(body)
	if err != nil || len(vals) == 0 {
		return nil
	}
	out := make(map[string]any, len(vals))
	for key, vv := range vals {
		if len(vv) > 0 {
			out[key] = vv[0]
		}
	}
	return out
}

// GetNestedValue resolves a dot-separated path ("ecommerce.items.price")
// inside nested maps. The second return is false when any segment is missing
// or a non-map is traversed.
func GetNestedValue(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = data
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
