package evaluators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Principled-Evolution/aicertify/internal/evalreg"
	"github.com/Principled-Evolution/aicertify/internal/llm"
)

func TestParseVerdict_ExtractsJSONObject(t *testing.T) {
	v, err := parseVerdict("Here is my answer: {\"value\": true, \"confidence\": 0.8, \"rationale\": \"looks fine\"} done")
	require.NoError(t, err)
	assert.Equal(t, true, v.Value)
	assert.Equal(t, 0.8, v.Confidence)
}

func TestParseVerdict_NoJSONObjectErrors(t *testing.T) {
	_, err := parseVerdict("no json here")
	assert.Error(t, err)
}

func TestRenderTranscript_FormatsInteractions(t *testing.T) {
	out := renderTranscript(map[string]any{
		"interactions": []map[string]any{
			{"input_text": "hi", "output_text": "hello"},
		},
	})
	assert.Contains(t, out, "User: hi")
	assert.Contains(t, out, "Assistant: hello")
}

func TestRegisterBuiltins_PopulatesRegistry(t *testing.T) {
	r := evalreg.Default()
	r.Clear()

	RegisterBuiltins(r, llm.Config{Provider: "openai", Model: "gpt-5-mini"})

	assert.True(t, r.IsRegistered("fairness.demographic_parity"))
	assert.True(t, r.IsRegistered("model_card.completeness"))
	assert.True(t, r.IsRegistered("toxicity.absence"))
	assert.True(t, r.IsRegistered("consistency.semantic_similarity"))

	ctors := r.DiscoverForMetrics([]string{"toxicity.absence"})
	require.Len(t, ctors, 1)
	assert.Equal(t, "toxicity.absence", ctors[0]().Name())
}
