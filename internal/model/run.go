package model

import "time"

// Run bundles everything produced by one end-to-end pipeline invocation:
// the detection result and, when rules were supplied, the validation report.
// Runs are what the store persists and the API serves.
type Run struct {
	ID          string              `json:"id"`
	ScanID      string              `json:"scanId"`
	URL         string              `json:"url"`
	Environment string              `json:"environment,omitempty"`
	Score       int                 `json:"score"`
	IsValid     bool                `json:"isValid"`
	TagCount    int                 `json:"tagCount"`
	CreatedAt   time.Time           `json:"createdAt"`
	Detection   *TagDetectionResult `json:"detection,omitempty"`
	Report      *ValidationReport   `json:"report,omitempty"`
}
