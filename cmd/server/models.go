package main

import (
	"time"

	"github.com/liamcoop/csvetl/catalog"
	"github.com/liamcoop/csvetl/convert"
	"github.com/liamcoop/csvetl/rules"
)

// API Request and Response Models with Swagger annotations

// RuleSetResponse represents a rule set in API responses
type RuleSetResponse struct {
	ID        string             `json:"id" example:"123e4567-e89b-12d3-a456-426614174000"`
	Name      string             `json:"name" example:"orders"`
	Active    bool               `json:"active" example:"true"`
	Rules     []rules.Definition `json:"rules"`
	Targets   []string           `json:"targets" example:"OrderId,OrderDate"`
	CreatedAt time.Time          `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt time.Time          `json:"updated_at" example:"2024-01-15T10:30:00Z"`
} // @name RuleSetResponse

func newRuleSetResponse(doc *catalog.Document) RuleSetResponse {
	targets := make([]string, 0, len(doc.Rules))
	seen := make(map[string]bool, len(doc.Rules))
	for _, def := range doc.Rules {
		if !seen[def.Target] {
			seen[def.Target] = true
			targets = append(targets, def.Target)
		}
	}

	return RuleSetResponse{
		ID:        doc.ID,
		Name:      doc.Name,
		Active:    doc.Active,
		Rules:     doc.Rules,
		Targets:   targets,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// RuleSetsListResponse represents the response for listing rule sets
type RuleSetsListResponse struct {
	RuleSets []RuleSetResponse `json:"rulesets"`
} // @name RuleSetsListResponse

// DiagnosticResponse represents one rule that failed on one row
type DiagnosticResponse struct {
	Row    int               `json:"row" example:"3"`
	Target string            `json:"target" example:"OrderDate"`
	Rule   map[string]any    `json:"rule"`
	Data   map[string]string `json:"data"`
	Error  string            `json:"error" example:"unable to retrieve source data from field \"Day\""`
} // @name DiagnosticResponse

func newDiagnosticResponse(d convert.Diagnostic) DiagnosticResponse {
	return DiagnosticResponse{
		Row:    d.Row,
		Target: d.Target,
		Rule:   d.Rule,
		Data:   d.Data,
		Error:  d.Message(),
	}
}

// ConvertResponse represents the response for a conversion. Result is the
// encoded output: a JSON array for json, a string for other formats.
type ConvertResponse struct {
	RunID          string               `json:"run_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	RuleSet        string               `json:"ruleset" example:"orders"`
	Format         string               `json:"format" example:"json"`
	Rows           int                  `json:"rows" example:"2"`
	Failures       int                  `json:"failures" example:"0"`
	ConversionTime string               `json:"conversion_time" example:"1.2ms"`
	Result         any                  `json:"result"`
	Diagnostics    []DiagnosticResponse `json:"diagnostics"`
} // @name ConvertResponse

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"failed to add rule set"`
	Details string `json:"details,omitempty" example:"rule set already exists: orders"`
} // @name ErrorResponse

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status" example:"healthy"`
	RuleSetsLoaded int    `json:"rulesetsLoaded" example:"3"`
	Diagnostics    int64  `json:"diagnostics" example:"0"`
} // @name HealthResponse
