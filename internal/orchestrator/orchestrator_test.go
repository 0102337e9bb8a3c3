package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Principled-Evolution/aicertify/internal/decision"
	"github.com/Principled-Evolution/aicertify/internal/evalreg"
	"github.com/Principled-Evolution/aicertify/internal/policylib"
	"github.com/Principled-Evolution/aicertify/internal/report"
)

type stubEvaluator struct{ metric string }

func (s *stubEvaluator) Name() string               { return "stub." + s.metric }
func (s *stubEvaluator) SupportedMetrics() []string { return []string{s.metric} }
func (s *stubEvaluator) Evaluate(ctx context.Context, input, config map[string]any) (map[string]any, error) {
	return map[string]any{s.metric: map[string]any{"value": true}}, nil
}

func newFixtureLibrary(t *testing.T) *policylib.Library {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/global/v1/common/fairness.rego", []byte(`package global.v1.common.fairness

# RequiredMetrics:
# - fairness.demographic_parity

compliance_report := {}
`), 0o644))
	lib, err := policylib.OpenFs(fs, "/lib")
	require.NoError(t, err)
	return lib
}

func TestEvaluateByFolder_EndToEnd(t *testing.T) {
	registry := evalreg.Default()
	registry.Clear()
	registry.Register(func() evalreg.Evaluator { return &stubEvaluator{metric: "fairness.demographic_parity"} }, []string{"fairness.demographic_parity"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []any{
				map[string]any{
					"expressions": []any{
						map[string]any{
							"value": map[string]any{
								"v1": map[string]any{
									"fairness": map[string]any{
										"compliance_report": map[string]any{"compliant": true, "reason": "ok"},
									},
								},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	lib := newFixtureLibrary(t)
	driver := decision.NewServerDriver(srv.URL)
	orch := New(lib, driver)
	orch.Registry = registry

	contract := report.NewContract("demo", report.ModelInfo{ModelName: "gpt-5-mini"}, []report.Interaction{
		{InputText: "hi", OutputText: "hello"},
	})

	result, err := orch.EvaluateByFolder(context.Background(), contract, "/lib/global/v1", Options{})
	require.NoError(t, err)
	require.Len(t, result.PolicyResults, 1)
	assert.True(t, result.PolicyResults[0].Result)
	assert.True(t, result.OverallPass)
	assert.Contains(t, result.Metrics, "fairness.demographic_parity")
}

func TestEvaluateByFolder_NoPoliciesIsCompliantEmptyResult(t *testing.T) {
	lib := newFixtureLibrary(t)
	orch := New(lib, decision.NewServerDriver("http://unused"))
	result, err := orch.EvaluateByFolder(context.Background(), report.NewContract("demo", report.ModelInfo{ModelName: "x"}, nil), "/lib/nonexistent", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.PolicyResults)
	assert.True(t, result.OverallPass)
}

func TestEvaluateByCategory_NoPoliciesIsCompliantEmptyResult(t *testing.T) {
	lib := newFixtureLibrary(t)
	orch := New(lib, decision.NewServerDriver("http://unused"))
	result, err := orch.EvaluateByCategory(context.Background(), report.NewContract("demo", report.ModelInfo{ModelName: "x"}, nil), "no_such_category", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.PolicyResults)
	assert.True(t, result.OverallPass)
}

// TestEvaluateByFolder_PolicyKeyDiffersFromPackageSegment guards against
// guessing a policy's decision-document key from its Rego package name:
// the fixture's package ends in ".fairness" but the mocked decision
// document reports compliance under an unrelated human-readable key, the
// normal case for a real policy's declared report name.
func TestEvaluateByFolder_PolicyKeyDiffersFromPackageSegment(t *testing.T) {
	registry := evalreg.Default()
	registry.Clear()
	registry.Register(func() evalreg.Evaluator { return &stubEvaluator{metric: "fairness.demographic_parity"} }, []string{"fairness.demographic_parity"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []any{
				map[string]any{
					"expressions": []any{
						map[string]any{
							"value": map[string]any{
								"v1": map[string]any{
									"EU AI Act Transparency Requirements": map[string]any{
										"compliance_report": map[string]any{"compliant": true, "reason": "ok"},
									},
								},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	lib := newFixtureLibrary(t)
	driver := decision.NewServerDriver(srv.URL)
	orch := New(lib, driver)
	orch.Registry = registry

	contract := report.NewContract("demo", report.ModelInfo{ModelName: "gpt-5-mini"}, []report.Interaction{
		{InputText: "hi", OutputText: "hello"},
	})

	result, err := orch.EvaluateByFolder(context.Background(), contract, "/lib/global/v1", Options{})
	require.NoError(t, err)
	require.Len(t, result.PolicyResults, 1)
	assert.True(t, result.PolicyResults[0].Result)
	assert.True(t, result.OverallPass)
}
