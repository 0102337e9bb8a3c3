// Package evaluators holds the built-in metric evaluators shipped with
// aicertify, registered against internal/evalreg so the orchestrator
// can discover them by metric name.
//
// Grounded on internal/llm/client.go's multi-provider Eino chat-model
// factory and on the teacher's internal/agents/duplicate_agent.go
// prompt-then-parse pattern (schema.UserMessage, chatModel.Generate).
package evaluators

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Principled-Evolution/aicertify/internal/llm"
	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// LLMJudgeEvaluator asks a chat model to judge one metric from the
// interactions in a contract input document and parses its structured
// JSON verdict.
type LLMJudgeEvaluator struct {
	name    string
	metric  string
	prompt  string
	llmConf llm.Config
}

// NewLLMJudgeEvaluator builds an evaluator that owns a single metric,
// judged by prompting cfg's chat model with promptTemplate (which
// receives the rendered interaction transcript appended to it).
func NewLLMJudgeEvaluator(name, metric, promptTemplate string, cfg llm.Config) *LLMJudgeEvaluator {
	return &LLMJudgeEvaluator{name: name, metric: metric, prompt: promptTemplate, llmConf: cfg}
}

func (e *LLMJudgeEvaluator) Name() string               { return e.name }
func (e *LLMJudgeEvaluator) SupportedMetrics() []string { return []string{e.metric} }

type judgeVerdict struct {
	Value      any    `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// Evaluate renders the interaction transcript from input, prompts the
// configured chat model, and parses the JSON verdict it returns into a
// metric document keyed by this evaluator's metric name.
func (e *LLMJudgeEvaluator) Evaluate(ctx context.Context, input map[string]any, config map[string]any) (map[string]any, error) {
	log := logging.For("evaluators").With("evaluator", e.name, "metric", e.metric)

	transcript := renderTranscript(input)
	prompt := fmt.Sprintf("%s\n\nTranscript:\n%s\n\nRespond with JSON: {\"value\": <bool|number|string>, \"confidence\": <0-1>, \"rationale\": <string>}", e.prompt, transcript)

	chatModel, err := llm.NewCloseableChatModel(ctx, e.llmConf)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	defer chatModel.Close()

	messages := []*schema.Message{schema.UserMessage(prompt)}
	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("llm generate: %w", err)
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		log.Warn("could not parse verdict, defaulting to non-compliant", "error", err)
		verdict = judgeVerdict{Value: false, Rationale: "failed to parse model response"}
	}

	inputTokens := llm.EstimateTokens(prompt)
	outputTokens := llm.EstimateTokens(resp.Content)

	return map[string]any{
		e.metric: map[string]any{
			"value":      verdict.Value,
			"confidence": verdict.Confidence,
			"rationale":  verdict.Rationale,
			// _llm_usage lets callers (the audit trail, in particular)
			// account for the cost of this judge call without re-deriving
			// it from the raw prompt/response text.
			"_llm_usage": map[string]any{
				"model":         e.llmConf.Model,
				"input_tokens":  inputTokens,
				"output_tokens": outputTokens,
				"cost_usd":      llm.CalculateCost(e.llmConf.Model, inputTokens, outputTokens),
			},
		},
	}, nil
}

func renderTranscript(input map[string]any) string {
	interactions, _ := input["interactions"].([]map[string]any)
	var b strings.Builder
	for _, it := range interactions {
		fmt.Fprintf(&b, "User: %v\nAssistant: %v\n", it["input_text"], it["output_text"])
	}
	return b.String()
}

func parseVerdict(content string) (judgeVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return judgeVerdict{}, fmt.Errorf("no JSON object found in response")
	}
	var v judgeVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return judgeVerdict{}, err
	}
	return v, nil
}
