package evaluators

import (
	"context"
	"fmt"
	"math"

	"github.com/Principled-Evolution/aicertify/internal/llm"
	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// SemanticSimilarityEvaluator scores how closely each interaction's
// output stays on-topic with its input, by embedding both sides and
// averaging their cosine similarity across the transcript. Grounded on
// the teacher's internal/knowledge/embed.go (GenerateEmbedding,
// CosineSimilarity), generalized from a single-text embedding call to
// llm.NewCloseableEmbedder's multi-provider embedding.Embedder so any
// configured provider (including TEI) can back the metric.
type SemanticSimilarityEvaluator struct {
	name    string
	metric  string
	llmConf llm.Config
}

// NewSemanticSimilarityEvaluator builds an evaluator that owns metric,
// scored via cfg's embedding provider.
func NewSemanticSimilarityEvaluator(name, metric string, cfg llm.Config) *SemanticSimilarityEvaluator {
	return &SemanticSimilarityEvaluator{name: name, metric: metric, llmConf: cfg}
}

func (e *SemanticSimilarityEvaluator) Name() string               { return e.name }
func (e *SemanticSimilarityEvaluator) SupportedMetrics() []string { return []string{e.metric} }

// Evaluate embeds every interaction's input and output text and
// reports the mean cosine similarity as the metric's value, alongside
// the per-interaction minimum (the weakest exchange in the transcript).
func (e *SemanticSimilarityEvaluator) Evaluate(ctx context.Context, input map[string]any, config map[string]any) (map[string]any, error) {
	log := logging.For("evaluators").With("evaluator", e.name, "metric", e.metric)

	interactions, _ := input["interactions"].([]map[string]any)
	if len(interactions) == 0 {
		return map[string]any{
			e.metric: map[string]any{"value": 0.0, "rationale": "no interactions to score"},
		}, nil
	}

	embedder, err := llm.NewCloseableEmbedder(ctx, e.llmConf)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	defer embedder.Close()

	texts := make([]string, 0, len(interactions)*2)
	for _, it := range interactions {
		texts = append(texts, fmt.Sprintf("%v", it["input_text"]), fmt.Sprintf("%v", it["output_text"]))
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed transcript: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	var sum, min float64
	min = 1
	for i := range interactions {
		sim := cosineSimilarity(vectors[2*i], vectors[2*i+1])
		sum += sim
		if sim < min {
			min = sim
		}
	}
	mean := sum / float64(len(interactions))
	log.Debug("scored transcript semantic similarity", "mean", mean, "min", min)

	return map[string]any{
		e.metric: map[string]any{
			"value":     mean,
			"min":       min,
			"rationale": fmt.Sprintf("mean cosine similarity %.3f across %d interaction(s)", mean, len(interactions)),
		},
	}, nil
}

// cosineSimilarity returns the cosine similarity between two vectors,
// 0 for mismatched lengths or a zero vector on either side.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
