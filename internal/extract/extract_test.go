package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision() map[string]any {
	return map[string]any{
		"result": []any{
			map[string]any{
				"expressions": []any{
					map[string]any{
						"value": map[string]any{
							"v1": map[string]any{
								"fairness_policy": map[string]any{
									"compliance_report": map[string]any{
										"compliant":      true,
										"reason":         "ok",
										"recommendations": []any{"keep doing this"},
										"score":          0.9,
									},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestValidate_AcceptsWellFormedDecision(t *testing.T) {
	assert.True(t, Validate(sampleDecision()))
}

func TestValidate_AcceptsFlatShapeWithWarning(t *testing.T) {
	flat := map[string]any{
		"result": []any{
			map[string]any{
				"expressions": []any{
					map[string]any{
						"value": map[string]any{
							"fairness_policy": map[string]any{"compliance_report": map[string]any{"compliant": true}},
						},
					},
				},
			},
		},
	}
	assert.True(t, Validate(flat))
}

func TestValidate_RejectsMissingResult(t *testing.T) {
	assert.False(t, Validate(map[string]any{}))
}

func TestPolicyResult_ExtractsCompliance(t *testing.T) {
	result := PolicyResult(sampleDecision(), "fairness_policy")
	assert.True(t, result.Result)
	assert.Equal(t, []string{"keep doing this"}, result.Details["recommendations"])
	assert.Equal(t, 0.9, result.Details["score"])
}

func TestPolicyResult_NormalizedNameFallback(t *testing.T) {
	decision := sampleDecision()
	v1 := decision["result"].([]any)[0].(map[string]any)["expressions"].([]any)[0].(map[string]any)["value"].(map[string]any)["v1"].(map[string]any)
	delete(v1, "fairness_policy")
	v1["Fairness Policy"] = map[string]any{
		"compliance_report": map[string]any{"compliant": false, "reason": "nope"},
	}

	result := PolicyResult(decision, "fairness_policy")
	assert.False(t, result.Result)
}

func TestPolicyResult_MissingPolicyReturnsDefault(t *testing.T) {
	result := PolicyResult(sampleDecision(), "nonexistent")
	require.False(t, result.Result)
	assert.Contains(t, result.Details["error"], "No compliance report found")
}

func TestAllPolicyResults_DedupsAcrossVersions(t *testing.T) {
	decision := map[string]any{
		"result": []any{
			map[string]any{
				"expressions": []any{
					map[string]any{
						"value": map[string]any{
							"v1": map[string]any{
								"fairness": map[string]any{"compliance_report": map[string]any{"compliant": true}},
							},
							"v2": map[string]any{
								"fairness":     map[string]any{"compliance_report": map[string]any{"compliant": false}},
								"transparency": map[string]any{"compliance_report": map[string]any{"compliant": true}},
							},
						},
					},
				},
			},
		},
	}

	results := AllPolicyResults(decision)
	require.Len(t, results, 2)

	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	assert.True(t, names["fairness"])
	assert.True(t, names["transparency"])
}
