// Package tools binds the metrics engine to the model's tool-calling
// protocol. Tool invocations are parsed into typed request structs at the
// deserialization boundary; from there dispatch is an exhaustive switch,
// so an unknown tool name can only enter through a model-issued string
// and is answered with an error payload rather than a failure.
package tools

import (
	"encoding/json"
	"fmt"

	"factoryops/internal/chat"
	"factoryops/internal/metrics"
	"factoryops/internal/store"
)

const (
	NameCalculateOEE     = "calculate_oee"
	NameScrapMetrics     = "get_scrap_metrics"
	NameQualityIssues    = "get_quality_issues"
	NameDowntimeAnalysis = "get_downtime_analysis"
)

// Request is one parsed, typed tool invocation.
type Request interface {
	toolName() string
}

type OEERequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	MachineName string `json:"machine_name,omitempty"`
}

type ScrapRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	MachineName string `json:"machine_name,omitempty"`
}

type QualityRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Severity    string `json:"severity,omitempty"`
	MachineName string `json:"machine_name,omitempty"`
}

type DowntimeRequest struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	MachineName string `json:"machine_name,omitempty"`
}

func (OEERequest) toolName() string      { return NameCalculateOEE }
func (ScrapRequest) toolName() string    { return NameScrapMetrics }
func (QualityRequest) toolName() string  { return NameQualityIssues }
func (DowntimeRequest) toolName() string { return NameDowntimeAnalysis }

// UnknownToolError reports a model-issued tool name with no registered
// counterpart.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

// ArgumentError reports tool arguments that could not be decoded. It is
// local to the single call that carried them.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// ParseRequest decodes a model-issued (name, arguments) pair into a typed
// request. Empty arguments decode as an all-defaults request; the engine
// rejects missing dates itself.
func ParseRequest(name string, args json.RawMessage) (Request, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	decode := func(dst Request) (Request, error) {
		if err := json.Unmarshal(args, dst); err != nil {
			return nil, &ArgumentError{Tool: name, Err: err}
		}
		return dst, nil
	}
	switch name {
	case NameCalculateOEE:
		return decode(&OEERequest{})
	case NameScrapMetrics:
		return decode(&ScrapRequest{})
	case NameQualityIssues:
		return decode(&QualityRequest{})
	case NameDowntimeAnalysis:
		return decode(&DowntimeRequest{})
	default:
		return nil, &UnknownToolError{Name: name}
	}
}

// Registry executes tool requests against the metrics engine.
type Registry struct {
	engine *metrics.Engine
}

func NewRegistry(engine *metrics.Engine) *Registry {
	return &Registry{engine: engine}
}

// Dispatch runs one tool call and always produces a JSON payload: either
// the metric report or {"error": "..."}. Nothing here panics or aborts
// the turn; the model sees every failure as tool output.
func (r *Registry) Dispatch(name string, args json.RawMessage) json.RawMessage {
	req, err := ParseRequest(name, args)
	if err != nil {
		return errorPayload(err)
	}
	result, err := r.Execute(req)
	if err != nil {
		return errorPayload(err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return errorPayload(fmt.Errorf("encoding %s result: %w", name, err))
	}
	return payload
}

// Execute evaluates one typed request. The switch is exhaustive over the
// request types ParseRequest can produce.
func (r *Registry) Execute(req Request) (any, error) {
	switch q := req.(type) {
	case *OEERequest:
		return r.engine.CalculateOEE(q.StartDate, q.EndDate, q.MachineName)
	case *ScrapRequest:
		return r.engine.ScrapMetrics(q.StartDate, q.EndDate, q.MachineName)
	case *QualityRequest:
		return r.engine.QualityIssues(q.StartDate, q.EndDate, store.Severity(q.Severity), q.MachineName)
	case *DowntimeRequest:
		return r.engine.DowntimeAnalysis(q.StartDate, q.EndDate, q.MachineName)
	default:
		return nil, &UnknownToolError{Name: fmt.Sprintf("%T", req)}
	}
}

func errorPayload(err error) json.RawMessage {
	payload, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return json.RawMessage(`{"error": "internal error"}`)
	}
	return payload
}

var dateProperties = map[string]any{
	"start_date": map[string]any{
		"type":        "string",
		"description": "Start date (YYYY-MM-DD)",
	},
	"end_date": map[string]any{
		"type":        "string",
		"description": "End date (YYYY-MM-DD)",
	},
}

func withMachine(extra map[string]any) map[string]any {
	props := map[string]any{
		"machine_name": map[string]any{
			"type":        "string",
			"description": "Optional machine name filter",
		},
	}
	for k, v := range dateProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// Descriptors advertises the four tool contracts to the model.
func (r *Registry) Descriptors() []chat.ToolDescriptor {
	return []chat.ToolDescriptor{
		{
			Name:        NameCalculateOEE,
			Description: "Calculate Overall Equipment Effectiveness (OEE) for a date range. Returns OEE percentage and breakdown.",
			Properties:  withMachine(nil),
			Required:    []string{"start_date", "end_date"},
		},
		{
			Name:        NameScrapMetrics,
			Description: "Get scrap production metrics including total scrap, scrap rate, and breakdown by machine.",
			Properties:  withMachine(nil),
			Required:    []string{"start_date", "end_date"},
		},
		{
			Name:        NameQualityIssues,
			Description: "Get quality defect events with details about defect types, severity, and affected parts.",
			Properties: withMachine(map[string]any{
				"severity": map[string]any{
					"type":        "string",
					"description": "Optional severity filter: Low, Medium, or High",
				},
			}),
			Required: []string{"start_date", "end_date"},
		},
		{
			Name:        NameDowntimeAnalysis,
			Description: "Analyze downtime events including reasons, duration, and major incidents.",
			Properties:  withMachine(nil),
			Required:    []string{"start_date", "end_date"},
		},
	}
}
