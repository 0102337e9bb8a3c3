// Package evaldispatch runs the evaluators selected for a compliance
// run concurrently and fans their results back into one map.
//
// Grounded on internal/agents/orchestrator.go's RunAll: one goroutine
// per unit of work, a WaitGroup barrier, and private indexed
// output/error slots to avoid a shared-map data race, combined with
// the evaluator_registry.py notion that a single metric may have more
// than one registered evaluator.
package evaldispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/Principled-Evolution/aicertify/internal/evalreg"
	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// RunnableEvaluator is the capability set dispatch needs beyond
// identity: given a contract-shaped input document and a
// per-evaluator configuration bag, produce the metric document it owns.
type RunnableEvaluator interface {
	evalreg.Evaluator
	Evaluate(ctx context.Context, input map[string]any, config map[string]any) (map[string]any, error)
}

// Outcome is one evaluator's result or failure.
type Outcome struct {
	EvaluatorName string
	Metrics       map[string]any
	Err           error
}

// Run executes every evaluator concurrently against the same input
// document, merging each evaluator's own configuration sub-bag (keyed
// by evaluator name) over the shared defaults. A panic inside one
// evaluator is recovered and reported as that evaluator's error;
// it never aborts the others.
func Run(ctx context.Context, evaluators []RunnableEvaluator, input map[string]any, defaults map[string]any) []Outcome {
	log := logging.For("evaldispatch")

	outcomes := make([]Outcome, len(evaluators))
	var wg sync.WaitGroup
	wg.Add(len(evaluators))

	for i, ev := range evaluators {
		i, ev := i, ev
		go func() {
			defer wg.Done()
			name := ev.Name()
			outcomes[i].EvaluatorName = name

			var panicErr error
			defer func() {
				if panicErr != nil {
					outcomes[i].Err = panicErr
				}
			}()
			defer logging.RecoverToError(log, name, &panicErr)

			cfg := mergeConfig(defaults, name)
			metrics, err := ev.Evaluate(ctx, input, cfg)
			if err != nil {
				outcomes[i].Err = fmt.Errorf("evaluator %s: %w", name, err)
				return
			}
			outcomes[i].Metrics = metrics
		}()
	}

	wg.Wait()
	return outcomes
}

func mergeConfig(defaults map[string]any, evaluatorName string) map[string]any {
	merged := make(map[string]any, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if override, ok := defaults[evaluatorName].(map[string]any); ok {
		for k, v := range override {
			merged[k] = v
		}
	}
	return merged
}

// Succeeded filters outcomes down to those that produced metrics
// without error.
func Succeeded(outcomes []Outcome) []Outcome {
	out := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Errors collects every non-nil error across outcomes.
func Errors(outcomes []Outcome) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
