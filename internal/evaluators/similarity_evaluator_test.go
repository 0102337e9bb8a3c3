package evaluators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Principled-Evolution/aicertify/internal/llm"
)

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float64{0.1, 0.2, 0.3}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 0.0001)
}

func TestCosineSimilarity_OrthogonalVectorsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}))
}

func TestCosineSimilarity_MismatchedLengthScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2}))
}

func TestSemanticSimilarityEvaluator_NoInteractionsShortCircuits(t *testing.T) {
	e := NewSemanticSimilarityEvaluator("consistency.semantic_similarity", "consistency.semantic_similarity", llm.Config{Provider: "openai", Model: "gpt-5-mini"})

	metrics, err := e.Evaluate(context.Background(), map[string]any{}, nil)
	assert := assert.New(t)
	assert.NoError(err)
	doc, ok := metrics["consistency.semantic_similarity"].(map[string]any)
	assert.True(ok)
	assert.Equal(0.0, doc["value"])
}
