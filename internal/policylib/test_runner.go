package policylib

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/tester"
	"github.com/open-policy-agent/opa/v1/topdown"
)

// TestResult is the outcome of one Rego test (a rule named test_* inside
// a *_test.rego file already indexed by the library).
type TestResult struct {
	Name     string
	Package  string
	Passed   bool
	Failed   bool
	Skipped  bool
	Error    string
	Duration time.Duration
	Output   []string
}

// TestSummary aggregates the TestResults from one RunTests call.
type TestSummary struct {
	Passed   int
	Failed   int
	Skipped  int
	Errored  int
	Total    int
	Duration time.Duration
	Results  []*TestResult
}

// AllPassed reports whether every test passed without error.
func (s *TestSummary) AllPassed() bool {
	return s.Failed == 0 && s.Errored == 0
}

// HasTests reports whether the library indexed any *_test.rego file.
func (l *Library) HasTests() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.allPolicies {
		if p.IsTest() {
			return true
		}
	}
	return false
}

// RunTests compiles the given policies (a *_test.rego file is compiled
// only when it is itself in the list) and runs the test_* rules found
// among them, or compiles and tests the whole library when policies is
// empty. It exercises the
// library's own in-memory Content rather than re-reading the
// filesystem, since Open/OpenFs already parsed and loaded everything.
func (l *Library) RunTests(ctx context.Context, policies []*Policy) (*TestSummary, error) {
	start := time.Now()

	if len(policies) == 0 {
		policies = l.AllPolicies()
	}

	modules := make(map[string]*ast.Module, len(policies))
	for _, p := range policies {
		module, err := ast.ParseModule(p.Path, p.Content)
		if err != nil {
			return nil, fmt.Errorf("policylib: parse %s: %w", p.Path, err)
		}
		modules[p.Path] = module
	}

	if len(modules) == 0 {
		return &TestSummary{Duration: time.Since(start), Results: []*TestResult{}}, nil
	}

	compiler := ast.NewCompiler()
	compiler.Compile(modules)
	if compiler.Failed() {
		var msgs []string
		for _, e := range compiler.Errors {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("policylib: compile policies: %s", strings.Join(msgs, "; "))
	}

	runner := tester.NewRunner().
		SetCompiler(compiler).
		SetModules(modules).
		EnableTracing(true).
		SetTimeout(30 * time.Second)

	ch, err := runner.RunTests(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("policylib: run tests: %w", err)
	}

	var results []*TestResult
	for tr := range ch {
		result := &TestResult{Name: tr.Name, Package: tr.Package, Duration: tr.Duration}
		switch {
		case tr.Skip:
			result.Skipped = true
		case tr.Error != nil:
			result.Error = tr.Error.Error()
		case tr.Fail:
			result.Failed = true
		default:
			result.Passed = true
		}
		for _, evt := range tr.Trace {
			if evt.Op == topdown.NoteOp && evt.Message != "" {
				result.Output = append(result.Output, evt.Message)
			}
		}
		results = append(results, result)
	}

	summary := &TestSummary{Duration: time.Since(start), Results: results}
	for _, r := range results {
		summary.Total++
		switch {
		case r.Passed:
			summary.Passed++
		case r.Failed:
			summary.Failed++
		case r.Skipped:
			summary.Skipped++
		case r.Error != "":
			summary.Errored++
		}
	}

	return summary, nil
}
