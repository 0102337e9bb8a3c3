package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContract() *Contract {
	return NewContract("demo-app", ModelInfo{ModelName: "gpt-5-mini"}, []Interaction{
		{InputText: "hi", OutputText: "hello"},
	})
}

func TestNewContract_FillsDefaults(t *testing.T) {
	c := sampleContract()
	assert.NotEqual(t, uuid.Nil, c.ContractID)
	require.Len(t, c.Interactions, 1)
	assert.NotEqual(t, uuid.Nil, c.Interactions[0].InteractionID)
	assert.False(t, c.Interactions[0].Timestamp.IsZero())
}

func TestContract_Validate_RequiresDomainFields(t *testing.T) {
	c := sampleContract()
	c.Context = map[string]any{"domain": "healthcare"}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_documentation")

	c.Context["risk_documentation"] = "present"
	c.Context["patient_data"] = "present"
	assert.NoError(t, c.Validate())
}

func TestContract_Get_FallsBackToContext(t *testing.T) {
	c := sampleContract()
	c.Context = map[string]any{"domain": "finance"}
	assert.Equal(t, "finance", c.Get("domain", nil))
	assert.Equal(t, "fallback", c.Get("missing", "fallback"))
}

func TestNewMetricGroup_TitleCasesDisplayName(t *testing.T) {
	g := NewMetricGroup("fairness_metrics", map[string]map[string]any{
		"ftu_satisfied": {"name": "FTU Satisfied", "value": true},
	})
	assert.Equal(t, "fairness_metrics", g.Name)
	assert.Equal(t, "Fairness Metrics", g.DisplayName)
	require.Len(t, g.Metrics, 1)
}

func TestEvaluationReport_OverallPass(t *testing.T) {
	r := NewEvaluationReport(
		ApplicationDetails{Name: "demo", EvaluationDate: time.Now()},
		nil,
		[]PolicyResult{{Name: "eu_ai_act", Result: true}, {Name: "fairness", Result: true}},
		nil,
	)
	assert.True(t, r.OverallPass())

	r.PolicyResults = append(r.PolicyResults, PolicyResult{Name: "security", Result: false})
	assert.False(t, r.OverallPass())
}
