// Package testutil provides shared test doubles and observation fixtures for
// use across package tests. All dummies implement the corresponding
// interfaces from the production code, allowing injection into components
// under test without real I/O or side effects.
package testutil

import (
	"fmt"
	"sync"

	"github.com/raysh454/tagscope/internal/logging"
	"github.com/raysh454/tagscope/internal/model"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Observation fixtures ──────────────────────────────────────────────

var (
	fixtureMu  sync.Mutex
	fixtureSeq int
)

func nextID(prefix string) string {
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	fixtureSeq++
	return fmt.Sprintf("%s-%d", prefix, fixtureSeq)
}

// NewObservation returns an empty observation for the given page.
func NewObservation(url string) *model.Observation {
	return &model.Observation{
		ScanID:    nextID("scan"),
		URL:       url,
		StartedAt: 1000,
	}
}

// Script appends an external script tag and returns the observation for
// chaining.
func Script(obs *model.Observation, src string, injected bool) *model.Observation {
	obs.Scripts = append(obs.Scripts, model.ScriptTag{
		ID:                  nextID("script"),
		Src:                 src,
		DynamicallyInjected: injected,
		DocumentOrder:       len(obs.Scripts),
	})
	return obs
}

// InlineScript appends an inline script with the given content.
func InlineScript(obs *model.Observation, content string) *model.Observation {
	obs.Scripts = append(obs.Scripts, model.ScriptTag{
		ID:            nextID("script"),
		Content:       content,
		DocumentOrder: len(obs.Scripts),
	})
	return obs
}

// Request appends a network request and returns it for further tweaking.
func Request(obs *model.Observation, url string, ts int64) *model.NetworkRequest {
	obs.Requests = append(obs.Requests, model.NetworkRequest{
		ID:        nextID("req"),
		URL:       url,
		Method:    "GET",
		Status:    200,
		Timestamp: ts,
	})
	return &obs.Requests[len(obs.Requests)-1]
}

// DataLayerPush appends a data-layer event to the named container.
func DataLayerPush(obs *model.Observation, container string, ts int64, data map[string]any) *model.Observation {
	obs.DataLayerEvents = append(obs.DataLayerEvents, model.DataLayerEvent{
		ID:            nextID("event"),
		ContainerName: container,
		Data:          data,
		Timestamp:     ts,
		Source:        "push",
	})
	return obs
}

// Cookie appends a cookie.
func Cookie(obs *model.Observation, name, value string) *model.Observation {
	obs.Cookies = append(obs.Cookies, model.Cookie{Name: name, Value: value})
	return obs
}

// GTMObservation is a page that loads Google Tag Manager the usual way:
// a gtm.js script plus the bootstrap data-layer pushes.
func GTMObservation(container string) *model.Observation {
	obs := NewObservation("https://shop.example/checkout")
	Script(obs, "https://www.googletagmanager.com/gtm.js?id="+container, false)
	DataLayerPush(obs, "dataLayer", 1100, map[string]any{
		"gtm.start": 1100,
		"event":     "gtm.js",
	})
	DataLayerPush(obs, "dataLayer", 1200, map[string]any{"event": "gtm.load"})
	return obs
}

// GA4Observation is a page with a gtag.js include and a collect beacon for
// the given measurement id.
func GA4Observation(measurementID string) *model.Observation {
	obs := NewObservation("https://shop.example/checkout")
	Script(obs, "https://www.googletagmanager.com/gtag/js?id="+measurementID, false)
	req := Request(obs, "https://www.google-analytics.com/g/collect?v=2&tid="+measurementID+"&en=page_view", 1500)
	req.IsAnalyticsRequest = true
	return obs
}
