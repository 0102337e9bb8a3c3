package report

import (
	"strings"
	"time"
)

// MetricValue is a single named measurement produced by an evaluator,
// grounded on models/evaluation.py's MetricValue.
type MetricValue struct {
	Name        string         `json:"name" validate:"required"`
	Value       any            `json:"value"`
	DisplayName string         `json:"display_name" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// MetricGroup collects related metrics under one category, grounded on
// models/report.py's MetricGroup.
type MetricGroup struct {
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Metrics     []MetricValue    `json:"metrics,omitempty"`
	Description string           `json:"description,omitempty"`
}

// NewMetricGroup builds a MetricGroup from a category and a map of
// metric id -> raw metric data, mirroring create_metric_group's
// title-casing of the category into a display name.
func NewMetricGroup(category string, metrics map[string]map[string]any) MetricGroup {
	words := strings.Fields(strings.ReplaceAll(category, "_", " "))
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	display := strings.Join(words, " ")

	values := make([]MetricValue, 0, len(metrics))
	for id, data := range metrics {
		displayName, _ := data["name"].(string)
		if displayName == "" {
			displayName = id
		}
		values = append(values, MetricValue{
			Name:        id,
			Value:       data["value"],
			DisplayName: displayName,
			Metadata:    data,
		})
	}

	return MetricGroup{
		Name:        strings.ReplaceAll(strings.ToLower(category), " ", "_"),
		DisplayName: display,
		Metrics:     values,
	}
}

// PolicyResult is the outcome of evaluating one policy, grounded on
// models/report.py's PolicyResult.
type PolicyResult struct {
	Name     string         `json:"name" validate:"required"`
	Result   bool           `json:"result"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	IsNested bool           `json:"is_nested"`
}

// IsSatisfied reports whether the policy passed.
func (p *PolicyResult) IsSatisfied() bool { return p.Result }

// ApplicationDetails describes the evaluated application, grounded on
// models/report.py's ApplicationDetails.
type ApplicationDetails struct {
	Name           string         `json:"name" validate:"required"`
	EvaluationMode string         `json:"evaluation_mode"`
	ContractCount  int            `json:"contract_count"`
	EvaluationDate time.Time      `json:"evaluation_date"`
	ModelInfo      map[string]any `json:"model_info,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// EvaluationReport is the complete output of one orchestrator run,
// grounded on models/report.py's EvaluationReport.
type EvaluationReport struct {
	AppDetails    ApplicationDetails `json:"app_details" validate:"required"`
	MetricGroups  []MetricGroup      `json:"metric_groups,omitempty"`
	PolicyResults []PolicyResult     `json:"policy_results,omitempty"`
	Summary       map[string]any     `json:"summary,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// NewEvaluationReport assembles a report, stamping CreatedAt and
// defaulting EvaluationDate if unset, mirroring create_evaluation_report.
func NewEvaluationReport(app ApplicationDetails, groups []MetricGroup, policies []PolicyResult, summary map[string]any) *EvaluationReport {
	if app.EvaluationDate.IsZero() {
		app.EvaluationDate = time.Now().UTC()
	}
	return &EvaluationReport{
		AppDetails:    app,
		MetricGroups:  groups,
		PolicyResults: policies,
		Summary:       summary,
		CreatedAt:     time.Now().UTC(),
	}
}

// OverallPass reports whether every policy result in the report passed.
func (r *EvaluationReport) OverallPass() bool {
	for _, p := range r.PolicyResults {
		if !p.Result {
			return false
		}
	}
	return true
}

// Validate checks the report's required fields.
func (r *EvaluationReport) Validate() error {
	return validate.Struct(r)
}
