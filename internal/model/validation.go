package model

// Severity grades how serious a failed rule is. Only error-severity failures
// make a report invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RuleType selects which handler evaluates a rule.
type RuleType string

const (
	RulePresence  RuleType = "presence"
	RulePayload   RuleType = "payload"
	RuleOrder     RuleType = "order"
	RuleConsent   RuleType = "consent"
	RuleDataLayer RuleType = "dataLayer"
)

// Result statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// RuleTarget describes what a rule points at. Which fields are meaningful
// depends on the rule type: presence rules use Type plus one of Platform,
// EventName/DataLayerName or URLPattern; payload rules use URLPattern and
// Method.
type RuleTarget struct {
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
	Platform      string `json:"platform,omitempty" yaml:"platform,omitempty"`
	EventName     string `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	URLPattern    string `json:"urlPattern,omitempty" yaml:"urlPattern,omitempty"`
	DataLayerName string `json:"dataLayerName,omitempty" yaml:"dataLayerName,omitempty"`
	Method        string `json:"method,omitempty" yaml:"method,omitempty"`
}

// FieldCheck is one declared expectation about a payload field.
type FieldCheck struct {
	Name     string `json:"name" yaml:"name"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// OrderItem identifies one side of an order rule: a tag (identifier is a
// platform id), a data-layer event (identifier is the event name) or a
// script (identifier is a URL pattern).
type OrderItem struct {
	Type       string `json:"type" yaml:"type"`
	Identifier string `json:"identifier" yaml:"identifier"`
}

// ConsentSignal describes where a consent indicator lives.
type ConsentSignal struct {
	Source string `json:"source" yaml:"source"` // dataLayer, cookie or localStorage
	Name   string `json:"name" yaml:"name"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Assertion is one declarative check against a value addressed by a dot path
// inside a data-layer event.
type Assertion struct {
	Path          string   `json:"path" yaml:"path"`
	Required      bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Equals        any      `json:"equals,omitempty" yaml:"equals,omitempty"`
	Matches       string   `json:"matches,omitempty" yaml:"matches,omitempty"`
	Type          string   `json:"type,omitempty" yaml:"type,omitempty"`
	Min           *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max           *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength     *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength     *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	AllowedValues []any    `json:"allowedValues,omitempty" yaml:"allowedValues,omitempty"`
}

// Rule is one declarative assertion loaded from external configuration.
// The struct is a flat union: the shared fields are always set, the rest
// depend on Type. Schema validation in the rules package enforces that the
// fields required by each type are present.
type Rule struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type         RuleType       `json:"type" yaml:"type"`
	Severity     Severity       `json:"severity" yaml:"severity"`
	Platform     string         `json:"platform,omitempty" yaml:"platform,omitempty"`
	Environments []string       `json:"environments,omitempty" yaml:"environments,omitempty"`
	Enabled      *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// presence and payload
	Target      *RuleTarget `json:"target,omitempty" yaml:"target,omitempty"`
	ShouldExist *bool       `json:"shouldExist,omitempty" yaml:"shouldExist,omitempty"`
	MinCount    *int        `json:"minCount,omitempty" yaml:"minCount,omitempty"`
	MaxCount    *int        `json:"maxCount,omitempty" yaml:"maxCount,omitempty"`

	// payload
	Source string       `json:"source,omitempty" yaml:"source,omitempty"` // query, body or headers
	Fields []FieldCheck `json:"fields,omitempty" yaml:"fields,omitempty"`

	// order
	Before            *OrderItem `json:"before,omitempty" yaml:"before,omitempty"`
	After             *OrderItem `json:"after,omitempty" yaml:"after,omitempty"`
	MaxTimeDifference *int64     `json:"maxTimeDifference,omitempty" yaml:"maxTimeDifference,omitempty"`

	// consent
	RequireConsentBefore bool           `json:"requireConsentBefore,omitempty" yaml:"requireConsentBefore,omitempty"`
	ConsentSignal        *ConsentSignal `json:"consentSignal,omitempty" yaml:"consentSignal,omitempty"`

	// dataLayer
	DataLayerName    string         `json:"dataLayerName,omitempty" yaml:"dataLayerName,omitempty"`
	EventName        string         `json:"eventName,omitempty" yaml:"eventName,omitempty"`
	RequiredKeys     []string       `json:"requiredKeys,omitempty" yaml:"requiredKeys,omitempty"`
	ForbiddenKeys    []string       `json:"forbiddenKeys,omitempty" yaml:"forbiddenKeys,omitempty"`
	KeyNamingPattern string         `json:"keyNamingPattern,omitempty" yaml:"keyNamingPattern,omitempty"`
	Schema           map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	Assertions       []Assertion    `json:"assertions,omitempty" yaml:"assertions,omitempty"`
}

// IsEnabled reports whether the rule should run. Rules are enabled unless
// explicitly disabled.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ValidationEvidence is one supporting fact attached to a validation result.
type ValidationEvidence struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Expected    any            `json:"expected,omitempty"`
	Actual      any            `json:"actual,omitempty"`
	Ref         map[string]any `json:"ref,omitempty"`
}

// ValidationResult is the outcome of evaluating one rule. A single rule may
// yield multiple results.
type ValidationResult struct {
	RuleID     string               `json:"ruleId"`
	RuleName   string               `json:"ruleName"`
	Status     string               `json:"status"`
	Severity   Severity             `json:"severity"`
	Message    string               `json:"message"`
	Details    string               `json:"details,omitempty"`
	Platform   string               `json:"platform,omitempty"`
	Evidence   []ValidationEvidence `json:"evidence,omitempty"`
	Suggestion string               `json:"suggestion,omitempty"`
	Error      string               `json:"error,omitempty"`
	Timestamp  int64                `json:"timestamp"`
	Duration   int64                `json:"duration"`
}

// RuleError records a rule that could not be evaluated at all (unknown type,
// handler rejection, timeout).
type RuleError struct {
	RuleID string `json:"ruleId"`
	Error  string `json:"error"`
}

// PlatformOutcome counts results grouped by the rule's platform.
type PlatformOutcome struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
}

// ValidationSummary aggregates result counts for a report.
type ValidationSummary struct {
	Total      int                        `json:"total"`
	Passed     int                        `json:"passed"`
	Failed     int                        `json:"failed"`
	Skipped    int                        `json:"skipped"`
	Errors     int                        `json:"errors"`
	BySeverity map[string]int             `json:"bySeverity"`
	ByPlatform map[string]PlatformOutcome `json:"byPlatform"`
}

// ValidationReport is the scored output of one validation run.
type ValidationReport struct {
	ID          string             `json:"id"`
	ScanID      string             `json:"scanId"`
	URL         string             `json:"url"`
	Environment string             `json:"environment,omitempty"`
	Results     []ValidationResult `json:"results"`
	Summary     ValidationSummary  `json:"summary"`
	Score       int                `json:"score"`
	IsValid     bool               `json:"isValid"`
	RuleErrors  []RuleError        `json:"ruleErrors,omitempty"`
	StartedAt   int64              `json:"startedAt"`
	CompletedAt int64              `json:"completedAt"`
}
