package policymeta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicy = `package international.eu_ai_act.v1.transparency

# RequiredMetrics:
# - model_card.completeness
# - fairness.counterfactual_score

# RequiredParams:
# - max_toxicity (default 0.2)
# - strict_mode (default true)
# - label (default "draft")

import data.common.fairness.v1 as fairness

compliance_report[...] := {}
`

func TestParseContent(t *testing.T) {
	md := ParseContent("transparency.rego", samplePolicy)

	assert.Equal(t, "international.eu_ai_act.v1.transparency", md.PackageName)
	assert.Equal(t, []string{"model_card.completeness", "fairness.counterfactual_score"}, md.RequiredMetrics)

	require.Contains(t, md.RequiredParams, "max_toxicity")
	assert.InDelta(t, 0.2, md.RequiredParams["max_toxicity"], 0.0001)
	assert.Equal(t, true, md.RequiredParams["strict_mode"])
	assert.Equal(t, "draft", md.RequiredParams["label"])
}

func TestParseContent_StripsTrailingLineComments(t *testing.T) {
	src := "package global.v1.common\n" +
		"# RequiredMetrics:\n" +
		"# - fairness.counterfactual_score  # primary signal\n" +
		"# RequiredParams:\n" +
		"# - max_toxicity (default 0.2)  # threshold\n"

	md := ParseContent("commented.rego", src)

	assert.Equal(t, []string{"fairness.counterfactual_score"}, md.RequiredMetrics)
	require.Contains(t, md.RequiredParams, "max_toxicity")
	assert.InDelta(t, 0.2, md.RequiredParams["max_toxicity"], 0.0001)
}

func TestParseParams_MalformedLineSkippedWithWarning(t *testing.T) {
	src := "package global.v1.common\n" +
		"# RequiredParams:\n" +
		"# - (default 0.2)\n" +
		"# - max_toxicity (default 0.3)\n"

	md := ParseContent("malformed.rego", src)

	assert.NotContains(t, md.RequiredParams, "")
	require.Contains(t, md.RequiredParams, "max_toxicity")
	assert.InDelta(t, 0.3, md.RequiredParams["max_toxicity"], 0.0001)
}

func TestParseContentMissingSections(t *testing.T) {
	md := ParseContent("bare.rego", "package global.v1.common\n\ndeny[msg] { false }\n")
	assert.Empty(t, md.RequiredMetrics)
	assert.Empty(t, md.RequiredParams)
	assert.Equal(t, "global.v1.common", md.PackageName)
}

func TestParse_Unreadable(t *testing.T) {
	_, err := Parse("broken.rego", &errorReader{})
	require.Error(t, err)
	var unreadable *PolicyUnreadable
	require.ErrorAs(t, err, &unreadable)
}

type errorReader struct{}

var errBoom = errors.New("boom")

func (e *errorReader) Read(p []byte) (int, error) { return 0, errBoom }

func TestMergeMetricsAndParams(t *testing.T) {
	a := ParseContent("a.rego", "package a\n# RequiredMetrics:\n# - m1\n# - m2\n")
	b := ParseContent("b.rego", "package b\n# RequiredMetrics:\n# - m2\n# - m3\n# RequiredParams:\n# - p1 (default 1)\n")
	c := ParseContent("c.rego", "package c\n# RequiredParams:\n# - p1 (default 2)\n")

	merged := MergeMetrics([]*Metadata{a, b})
	assert.Equal(t, []string{"m1", "m2", "m3"}, merged)

	params := MergeParams([]*Metadata{b, c})
	assert.Equal(t, 1, params["p1"]) // first occurrence wins
}
