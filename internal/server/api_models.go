package server

import (
	"github.com/raysh454/tagscope/internal/model"
	"github.com/raysh454/tagscope/internal/rules"
)

// CreateRunRequest is the payload for starting a pipeline run: an observation
// snapshot plus optional inline rules.
type CreateRunRequest struct {
	Observation *model.Observation `json:"observation"`
	Rules       []model.Rule       `json:"rules,omitempty"`
	Environment string             `json:"environment,omitempty" example:"production"`
}

// CreateRunResponse returns the completed run plus any rules that were
// rejected at load time.
type CreateRunResponse struct {
	Run        *model.Run        `json:"run"`
	RuleErrors []rules.LoadError `json:"ruleLoadErrors,omitempty"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
