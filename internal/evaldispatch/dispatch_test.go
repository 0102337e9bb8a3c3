package evaldispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	name    string
	metrics map[string]any
	err     error
	panics  bool
}

func (f *fakeEvaluator) Name() string              { return f.name }
func (f *fakeEvaluator) SupportedMetrics() []string { return nil }
func (f *fakeEvaluator) Evaluate(ctx context.Context, input, config map[string]any) (map[string]any, error) {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]any, len(f.metrics))
	for k, v := range f.metrics {
		out[k] = v
	}
	out["threshold"] = config["threshold"]
	return out, nil
}

func TestRun_AllSucceed(t *testing.T) {
	evs := []RunnableEvaluator{
		&fakeEvaluator{name: "fairness", metrics: map[string]any{"score": 0.9}},
		&fakeEvaluator{name: "transparency", metrics: map[string]any{"score": 0.5}},
	}
	outcomes := Run(context.Background(), evs, map[string]any{}, map[string]any{"threshold": 0.5})
	require.Len(t, outcomes, 2)
	assert.Empty(t, Errors(outcomes))
	assert.Len(t, Succeeded(outcomes), 2)
}

func TestRun_PerEvaluatorConfigOverride(t *testing.T) {
	evs := []RunnableEvaluator{&fakeEvaluator{name: "fairness", metrics: map[string]any{}}}
	defaults := map[string]any{
		"threshold": 0.5,
		"fairness":  map[string]any{"threshold": 0.9},
	}
	outcomes := Run(context.Background(), evs, map[string]any{}, defaults)
	require.Len(t, outcomes, 1)
	assert.Equal(t, 0.9, outcomes[0].Metrics["threshold"])
}

func TestRun_RecoversPanicAsError(t *testing.T) {
	evs := []RunnableEvaluator{&fakeEvaluator{name: "crasher", panics: true}}
	outcomes := Run(context.Background(), evs, map[string]any{}, nil)
	require.Len(t, outcomes, 1)
	require.Error(t, outcomes[0].Err)
	assert.Contains(t, outcomes[0].Err.Error(), "crasher")
}

func TestRun_OtherEvaluatorsUnaffectedByOneFailure(t *testing.T) {
	evs := []RunnableEvaluator{
		&fakeEvaluator{name: "ok", metrics: map[string]any{"score": 1}},
		&fakeEvaluator{name: "failing", err: errors.New("down")},
	}
	outcomes := Run(context.Background(), evs, map[string]any{}, nil)
	succeeded := Succeeded(outcomes)
	require.Len(t, succeeded, 1)
	assert.Equal(t, "ok", succeeded[0].EvaluatorName)
	require.Len(t, Errors(outcomes), 1)
}
