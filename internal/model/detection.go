package model

// Confidence weights assigned to individual detection signals. These are
// heuristic weights, not probabilities.
const (
	ConfidenceHigh       = 0.9
	ConfidenceMediumHigh = 0.75
	ConfidenceMedium     = 0.6
	ConfidenceMediumLow  = 0.4
	ConfidenceLow        = 0.25
	ConfidenceMinimal    = 0.1
)

// TagCategory classifies what a detected platform is for.
type TagCategory string

const (
	CategoryAnalytics   TagCategory = "analytics"
	CategoryAdvertising TagCategory = "advertising"
	CategoryTagManager  TagCategory = "tag-manager"
	CategoryUnknown     TagCategory = "unknown"
)

// LoadMethod describes how a tag's script arrived on the page.
type LoadMethod string

const (
	LoadGTM         LoadMethod = "gtm"
	LoadAdobeLaunch LoadMethod = "adobe-launch"
	LoadTealium     LoadMethod = "tealium"
	LoadSegment     LoadMethod = "segment"
	LoadOtherTMS    LoadMethod = "other-tms"
	LoadDirect      LoadMethod = "direct"
	LoadDynamic     LoadMethod = "dynamic"
	LoadUnknown     LoadMethod = "unknown"
)

// DetectionMethod names the signal source an evidence item came from.
type DetectionMethod string

const (
	MethodScriptTag      DetectionMethod = "script-tag"
	MethodInlineScript   DetectionMethod = "inline-script"
	MethodNetworkRequest DetectionMethod = "network-request"
	MethodNetworkPayload DetectionMethod = "network-payload"
	MethodCookie         DetectionMethod = "cookie"
	MethodDataLayer      DetectionMethod = "data-layer"
)

// DetectionEvidence is one weighted signal supporting the presence of a
// platform. Immutable once created.
type DetectionEvidence struct {
	Method     DetectionMethod `json:"method"`
	Matched    string          `json:"matched"`
	Value      string          `json:"value,omitempty"`
	Confidence float64         `json:"confidence"`
	Context    map[string]any  `json:"context,omitempty"`
}

// TagConfiguration carries the identifiers a detector extracted for a tag,
// e.g. a GTM container id or a GA4 measurement id.
type TagConfiguration struct {
	PrimaryID     string         `json:"primaryId,omitempty"`
	AdditionalIDs []string       `json:"additionalIds,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// TagInstance is the detection unit of record: one confidence-scored record
// of a tracking platform found on a page. Platform is the merge key — the
// engine never returns two instances with the same Platform value.
type TagInstance struct {
	ID                string              `json:"id"`
	Platform          string              `json:"platform"`
	PlatformName      string              `json:"platformName"`
	Category          TagCategory         `json:"category"`
	Confidence        float64             `json:"confidence"`
	LoadMethod        LoadMethod          `json:"loadMethod"`
	DetectionMethods  []DetectionMethod   `json:"detectionMethods"`
	Evidence          []DetectionEvidence `json:"evidence"`
	Configuration     TagConfiguration    `json:"configuration"`
	ScriptURLs        []string            `json:"scriptUrls,omitempty"`
	Endpoints         []string            `json:"endpoints,omitempty"`
	RequestIDs        []string            `json:"requestIds,omitempty"`
	DataLayerEventIDs []string            `json:"dataLayerEventIds,omitempty"`
	FirstSeenAt       int64               `json:"firstSeenAt"`
	LastSeenAt        int64               `json:"lastSeenAt"`
	IsActive          bool                `json:"isActive"`
	HasErrors         bool                `json:"hasErrors"`
	Errors            []string            `json:"errors,omitempty"`
}

// DetectionSummary aggregates counts over the final tag list.
type DetectionSummary struct {
	TotalTags           int            `json:"totalTags"`
	ByCategory          map[string]int `json:"byCategory"`
	ByPlatform          map[string]int `json:"byPlatform"`
	ByLoadMethod        map[string]int `json:"byLoadMethod"`
	HighConfidenceCount int            `json:"highConfidenceCount"`
	LowConfidenceCount  int            `json:"lowConfidenceCount"`
	UnknownTagCount     int            `json:"unknownTagCount"`
	HasTMS              bool           `json:"hasTms"`
	DetectedTMS         []string       `json:"detectedTms,omitempty"`
}

// DetectorError records one detector that failed or timed out. The run
// continues without its output.
type DetectorError struct {
	DetectorID string `json:"detectorId"`
	Error      string `json:"error"`
}

// TagDetectionResult is the immutable output of one detection run.
type TagDetectionResult struct {
	ID             string           `json:"id"`
	ScanID         string           `json:"scanId"`
	URL            string           `json:"url"`
	DetectedAt     int64            `json:"detectedAt"`
	Duration       int64            `json:"duration"`
	Tags           []TagInstance    `json:"tags"`
	Summary        DetectionSummary `json:"summary"`
	DetectorsRun   []string         `json:"detectorsRun"`
	DetectorErrors []DetectorError  `json:"detectorErrors,omitempty"`
}
