package evalreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	name    string
	metrics []string
}

func (s *stubEvaluator) Name() string            { return s.name }
func (s *stubEvaluator) SupportedMetrics() []string { return s.metrics }

func newStub(name string, metrics ...string) Constructor {
	return func() Evaluator { return &stubEvaluator{name: name, metrics: metrics} }
}

func TestRegister_AndDiscoverForMetrics(t *testing.T) {
	r := Default()
	r.Clear()

	fairness := newStub("fairness", "fairness.demographic_parity", "fairness.equal_opportunity")
	transparency := newStub("transparency", "model_card.completeness")

	r.Register(fairness, []string{"fairness.demographic_parity", "fairness.equal_opportunity"})
	r.Register(transparency, []string{"model_card.completeness"})

	require.True(t, r.IsRegistered("fairness"))
	require.True(t, r.IsRegistered("transparency"))
	assert.False(t, r.IsRegistered("nonexistent"))

	ctors := r.DiscoverForMetrics([]string{"fairness.demographic_parity", "model_card.completeness"})
	assert.Len(t, ctors, 2)

	names := make(map[string]bool)
	for _, c := range ctors {
		names[c().Name()] = true
	}
	assert.True(t, names["fairness"])
	assert.True(t, names["transparency"])
}

func TestDiscoverForMetrics_CaseInsensitiveFallback(t *testing.T) {
	r := Default()
	r.Clear()

	r.Register(newStub("fairness", "Fairness.DemographicParity"), []string{"Fairness.DemographicParity"})

	ctors := r.DiscoverForMetrics([]string{"fairness.demographicparity"})
	require.Len(t, ctors, 1)
	assert.Equal(t, "fairness", ctors[0]().Name())
}

func TestDiscoverForMetrics_UnknownMetricSkipped(t *testing.T) {
	r := Default()
	r.Clear()

	r.Register(newStub("fairness", "fairness.demographic_parity"), []string{"fairness.demographic_parity"})

	ctors := r.DiscoverForMetrics([]string{"does.not.exist"})
	assert.Empty(t, ctors)
}

func TestAllMetricsAndEvaluators(t *testing.T) {
	r := Default()
	r.Clear()

	r.Register(newStub("fairness", "a", "b"), []string{"a", "b"})
	r.Register(newStub("transparency", "c"), []string{"c"})

	assert.ElementsMatch(t, []string{"a", "b", "c"}, r.AllMetrics())
	assert.ElementsMatch(t, []string{"fairness", "transparency"}, r.AllEvaluators())
}
