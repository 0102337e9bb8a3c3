// Package orchestrator is the single externally visible entry point
// for a contract-level compliance evaluation against a policy
// selector, wiring together the policy library (policylib), required
// metric/parameter aggregation (policylib), the evaluator registry
// (evalreg), evaluator dispatch (evaldispatch), dependency resolution
// and query building (depresolve), the decision engine driver
// (decision), and result extraction (extract). Grounded on spec.md's
// §4.H seven-step algorithm and, for the bounded-concurrency policy
// evaluation fan-out, on internal/agents/orchestrator.go's RunAll idiom.
package orchestrator

import (
	"context"
	"runtime"
	"sync"

	"github.com/Principled-Evolution/aicertify/internal/decision"
	"github.com/Principled-Evolution/aicertify/internal/depresolve"
	"github.com/Principled-Evolution/aicertify/internal/evaldispatch"
	"github.com/Principled-Evolution/aicertify/internal/evalreg"
	"github.com/Principled-Evolution/aicertify/internal/extract"
	"github.com/Principled-Evolution/aicertify/internal/logging"
	"github.com/Principled-Evolution/aicertify/internal/policylib"
	"github.com/Principled-Evolution/aicertify/internal/report"
)

// Options configures one evaluation run.
type Options struct {
	// Mode is the execution mode passed to the decision engine driver.
	Mode decision.Mode
	// Config is the caller's evaluator configuration, merged over
	// policy-declared parameter defaults.
	Config map[string]any
	// Workers bounds concurrent decision-engine invocations. Zero
	// defaults to runtime.NumCPU().
	Workers int
}

// Orchestrator holds the process-wide dependencies an evaluation run
// needs: an opened policy library, the evaluator registry, and a
// decision engine driver.
type Orchestrator struct {
	Library  *policylib.Library
	Registry *evalreg.Registry
	Driver   *decision.Driver
}

// New builds an orchestrator over an already-open library and driver,
// defaulting to the process-wide evaluator registry singleton.
func New(lib *policylib.Library, driver *decision.Driver) *Orchestrator {
	return &Orchestrator{Library: lib, Registry: evalreg.Default(), Driver: driver}
}

// PolicyDecision pairs one policy's raw decision document with its
// extracted result.
type PolicyDecision struct {
	PolicyName string
	Raw        map[string]any
	Result     report.PolicyResult
}

// EvaluationResult is the combined output of one orchestrator run.
type EvaluationResult struct {
	PolicyResults []report.PolicyResult
	RawDecisions  []PolicyDecision
	Metrics       map[string]any
	OverallPass   bool
}

// EvaluateByFolder resolves folderSelector via the library's loose
// folder lookup and evaluates the contract against the resulting
// policy set.
func (o *Orchestrator) EvaluateByFolder(ctx context.Context, contract *report.Contract, folderSelector string, opts Options) (*EvaluationResult, error) {
	policies := o.Library.GetPoliciesByFolder(folderSelector)
	if len(policies) == 0 {
		logging.For("orchestrator").Warn("no policies found for folder selector, treating as compliant", "folder", folderSelector)
		return &EvaluationResult{OverallPass: true}, nil
	}
	return o.evaluate(ctx, contract, policies, opts)
}

// EvaluateByCategory resolves category via the library's loose
// category/subcategory lookup and evaluates the contract against the
// resulting policy set.
func (o *Orchestrator) EvaluateByCategory(ctx context.Context, contract *report.Contract, category string, opts Options) (*EvaluationResult, error) {
	policies := o.Library.GetPoliciesByCategory(category)
	if len(policies) == 0 {
		logging.For("orchestrator").Warn("no policies found for category selector, treating as compliant", "category", category)
		return &EvaluationResult{OverallPass: true}, nil
	}
	return o.evaluate(ctx, contract, policies, opts)
}

func (o *Orchestrator) evaluate(ctx context.Context, contract *report.Contract, policies []*policylib.Policy, opts Options) (*EvaluationResult, error) {
	log := logging.For("orchestrator")

	// Step 2: union of required metrics and merged default parameters.
	requiredMetrics := policylib.RequiredMetrics(policies)
	params := policylib.RequiredParams(policies)
	for k, v := range opts.Config {
		params[k] = v
	}

	// Step 3: evaluator constructors covering those metrics.
	ctors := o.Registry.DiscoverForMetrics(requiredMetrics)
	evaluators := make([]evaldispatch.RunnableEvaluator, 0, len(ctors))
	for _, ctor := range ctors {
		ev := ctor()
		runnable, ok := ev.(evaldispatch.RunnableEvaluator)
		if !ok {
			log.Warn("registered evaluator does not implement Evaluate", "evaluator", ev.Name())
			continue
		}
		evaluators = append(evaluators, runnable)
	}

	// Step 4: dispatch evaluators, collect the metric document.
	inputDoc := contract.AsInputDocument()
	outcomes := evaldispatch.Run(ctx, evaluators, inputDoc, params)
	metricDoc := make(map[string]any)
	evaluatorsOK := true
	for _, o := range outcomes {
		if o.Err != nil {
			log.Error("evaluator failed", "evaluator", o.EvaluatorName, "error", o.Err)
			evaluatorsOK = false
			continue
		}
		for k, v := range o.Metrics {
			metricDoc[k] = v
		}
	}

	// Step 5: build the engine input document.
	engineInput := map[string]any{
		"contract":      inputDoc,
		"evaluation":    metricDoc,
		"params":        params,
		"documentation": documentationStub(contract),
	}

	// Step 6: per-policy dependency closure, query, engine call.
	decisions, err := o.runDecisionEngine(ctx, policies, engineInput, opts)
	if err != nil {
		return nil, err
	}

	// Step 7: extract PolicyResult records, combine overall result.
	overall := evaluatorsOK
	policyResults := make([]report.PolicyResult, 0, len(decisions))
	for _, d := range decisions {
		if !d.Result.Result {
			overall = false
		}
		policyResults = append(policyResults, d.Result)
	}

	return &EvaluationResult{
		PolicyResults: policyResults,
		RawDecisions:  decisions,
		Metrics:       metricDoc,
		OverallPass:   overall,
	}, nil
}

func documentationStub(contract *report.Contract) map[string]any {
	if contract.FinalOutput != "" {
		return map[string]any{"summary": contract.FinalOutput}
	}
	return map[string]any{"summary": "no documentation provided"}
}

// runDecisionEngine evaluates every policy file's compliance_report
// query concurrently, bounded by opts.Workers (default NumCPU),
// preserving the library's enumeration order in the returned slice.
func (o *Orchestrator) runDecisionEngine(ctx context.Context, policies []*policylib.Policy, input map[string]any, opts Options) ([]PolicyDecision, error) {
	log := logging.For("orchestrator")

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	mode := opts.Mode
	if mode == "" {
		mode = decision.ModeProduction
	}

	results := make([]PolicyDecision, len(policies))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	wg.Add(len(policies))

	for i, p := range policies {
		i, p := i, p
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			closure := depresolve.Closure(o.Library, []*policylib.Policy{p})
			files := make([]string, 0, len(closure))
			for _, dep := range closure {
				files = append(files, dep.Path)
			}
			query := depresolve.Query(o.Library, p)

			res, err := o.Driver.Evaluate(ctx, query, files, input, mode, "")
			if err != nil {
				log.Error("decision engine call failed", "policy", p.PackageName, "error", err)
				results[i] = PolicyDecision{
					PolicyName: p.PackageName,
					Raw:        map[string]any{"error": err.Error()},
					Result:     report.PolicyResult{Name: p.PackageName, Result: false, Details: map[string]any{"error": err.Error()}},
				}
				return
			}
			if res.Err != "" {
				results[i] = PolicyDecision{
					PolicyName: p.PackageName,
					Raw:        map[string]any{"error": res.Err, "stderr": res.Stderr, "command": res.Command},
					Result:     report.PolicyResult{Name: p.PackageName, Result: false, Details: map[string]any{"error": res.Err}},
				}
				return
			}

			name := p.PackageName
			if name == "" {
				name = p.Path
			}

			var policyResult report.PolicyResult
			switch {
			case !extract.Validate(res.Decision):
				policyResult = report.PolicyResult{Name: name, Result: false, Details: map[string]any{"error": "invalid decision document shape"}}
			default:
				// Each call is already scoped to one policy file, so the
				// decision document holds exactly one policy's report
				// under whatever key the Rego author gave it — pull it
				// out directly instead of guessing that key from the
				// package name.
				all := extract.AllPolicyResults(res.Decision)
				if len(all) > 0 {
					policyResult = all[0]
				} else {
					policyResult = report.PolicyResult{Name: name, Result: false, Details: map[string]any{"error": "no compliance report found in decision document"}}
				}
			}

			results[i] = PolicyDecision{PolicyName: name, Raw: res.Decision, Result: policyResult}
		}()
	}

	wg.Wait()
	return results, nil
}
