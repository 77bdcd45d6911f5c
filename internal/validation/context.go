// Package validation evaluates declarative rules against a page observation
// and its detection result, producing a scored report. Each rule type has a
// dedicated handler; handlers only read from the shared context and return
// fresh result lists, so independent rules are safe to evaluate in any order.
package validation

import (
	"fmt"
	"regexp"

	"github.com/raysh454/tagscope/internal/model"
)

// Context is the read-only query surface handlers work against. It combines
// the raw observation with the detection result.
type Context struct {
	Observation *model.Observation
	Detection   *model.TagDetectionResult
	Environment string
}

// NewContext builds a validation context. Both inputs are kept by reference
// and must not be mutated afterwards.
func NewContext(obs *model.Observation, det *model.TagDetectionResult, environment string) *Context {
	return &Context{
		Observation: obs,
		Detection:   det,
		Environment: environment,
	}
}

// FindTag returns the detected instance for a platform, or nil.
func (c *Context) FindTag(platform string) *model.TagInstance {
	if c.Detection == nil {
		return nil
	}
	for i := range c.Detection.Tags {
		if c.Detection.Tags[i].Platform == platform {
			return &c.Detection.Tags[i]
		}
	}
	return nil
}

// FindTags returns all detected instances for a platform. After merging
// there is at most one per platform, but handlers do not rely on that.
func (c *Context) FindTags(platform string) []model.TagInstance {
	var out []model.TagInstance
	if c.Detection == nil {
		return out
	}
	for _, tag := range c.Detection.Tags {
		if tag.Platform == platform {
			out = append(out, tag)
		}
	}
	return out
}

// AllTags returns every detected instance.
func (c *Context) AllTags() []model.TagInstance {
	if c.Detection == nil {
		return nil
	}
	return c.Detection.Tags
}

// FindRequests returns observed requests whose URL matches the pattern,
// compiled as a case-insensitive regular expression.
func (c *Context) FindRequests(pattern string) ([]model.NetworkRequest, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling request pattern %q: %w", pattern, err)
	}
	var out []model.NetworkRequest
	if c.Observation == nil {
		return out, nil
	}
	for _, r := range c.Observation.Requests {
		if re.MatchString(r.URL) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindScripts returns script tags whose src matches the pattern,
// case-insensitively.
func (c *Context) FindScripts(pattern string) ([]model.ScriptTag, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling script pattern %q: %w", pattern, err)
	}
	var out []model.ScriptTag
	if c.Observation == nil {
		return out, nil
	}
	for _, s := range c.Observation.Scripts {
		if s.Src != "" && re.MatchString(s.Src) {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetDataLayerEvents returns events for a container, optionally filtered to
// a named event (matched against the event key of the payload).
func (c *Context) GetDataLayerEvents(container string, eventName ...string) []model.DataLayerEvent {
	var out []model.DataLayerEvent
	if c.Observation == nil {
		return out
	}
	var filter string
	if len(eventName) > 0 {
		filter = eventName[0]
	}
	for _, ev := range c.Observation.DataLayerEvents {
		if ev.ContainerName != container {
			continue
		}
		if filter != "" {
			if name, _ := ev.Data["event"].(string); name != filter {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}

// HasDataLayerEvent reports whether the container saw the named event.
func (c *Context) HasDataLayerEvent(container, eventName string) bool {
	return len(c.GetDataLayerEvents(container, eventName)) > 0
}

// GetCookie returns the value of the named cookie.
func (c *Context) GetCookie(name string) (string, bool) {
	if c.Observation == nil {
		return "", false
	}
	for _, ck := range c.Observation.Cookies {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// GetLocalStorage returns the value stored under the key.
func (c *Context) GetLocalStorage(key string) (string, bool) {
	if c.Observation == nil || c.Observation.LocalStorage == nil {
		return "", false
	}
	v, ok := c.Observation.LocalStorage[key]
	return v, ok
}

// TagTimestamp returns when a tag was first seen.
func (c *Context) TagTimestamp(tag *model.TagInstance) int64 {
	if tag == nil {
		return 0
	}
	return tag.FirstSeenAt
}

// EventTimestamp returns the timestamp of the first data-layer event whose
// payload event key equals name, across all containers. The second return
// is false when no event matches.
func (c *Context) EventTimestamp(name string) (int64, bool) {
	if c.Observation == nil {
		return 0, false
	}
	for _, ev := range c.Observation.DataLayerEvents {
		if evName, _ := ev.Data["event"].(string); evName == name {
			return ev.Timestamp, true
		}
	}
	return 0, false
}
