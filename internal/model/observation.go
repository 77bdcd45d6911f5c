// Package model holds the shared data model: the page observation consumed by
// the pipeline, the detection result it produces, and the validation rules and
// reports evaluated against it. Everything here is JSON-serializable and
// treated as read-only once constructed.
package model

// NetworkRequest is one observed network exchange during a page visit.
type NetworkRequest struct {
	ID                 string            `json:"id"`
	URL                string            `json:"url"`
	Method             string            `json:"method"`
	Headers            map[string]string `json:"headers,omitempty"`
	Body               string            `json:"body,omitempty"`
	Status             int               `json:"status,omitempty"`
	ResourceType       string            `json:"resourceType,omitempty"`
	IsAnalyticsRequest bool              `json:"isAnalyticsRequest"`
	Timestamp          int64             `json:"timestamp"`
	Duration           int64             `json:"duration,omitempty"`
}

// ScriptTag is one script element observed in the document, either external
// (Src set) or inline (Content set).
type ScriptTag struct {
	ID                  string `json:"id"`
	Src                 string `json:"src,omitempty"`
	Content             string `json:"content,omitempty"`
	Async               bool   `json:"async,omitempty"`
	Defer               bool   `json:"defer,omitempty"`
	DynamicallyInjected bool   `json:"dynamicallyInjected"`
	DocumentOrder       int    `json:"documentOrder"`
	Timestamp           int64  `json:"timestamp,omitempty"`
}

// DataLayerEvent is one entry pushed to (or initially present on) a page
// data layer such as window.dataLayer.
type DataLayerEvent struct {
	ID            string         `json:"id"`
	ContainerName string         `json:"containerName"`
	Data          map[string]any `json:"data"`
	Timestamp     int64          `json:"timestamp"`
	// Source is "push" for runtime pushes and "initial" for entries present
	// when the snapshot was taken.
	Source string `json:"source"`
}

// Cookie is a name/value pair observed on the page.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ConsoleMessage is one console entry emitted while the page loaded.
type ConsoleMessage struct {
	Level     string `json:"level"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PageError is an uncaught page error.
type PageError struct {
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Observation is the immutable snapshot of one page visit, produced by an
// external scanning collaborator. The pipeline only ever reads it.
type Observation struct {
	ScanID          string            `json:"scanId"`
	URL             string            `json:"url"`
	StartedAt       int64             `json:"startedAt"`
	CompletedAt     int64             `json:"completedAt,omitempty"`
	Requests        []NetworkRequest  `json:"requests"`
	Scripts         []ScriptTag       `json:"scripts"`
	DataLayerEvents []DataLayerEvent  `json:"dataLayerEvents"`
	Cookies         []Cookie          `json:"cookies"`
	LocalStorage    map[string]string `json:"localStorage,omitempty"`
	ConsoleMessages []ConsoleMessage  `json:"consoleMessages,omitempty"`
	Errors          []PageError       `json:"errors,omitempty"`
}
