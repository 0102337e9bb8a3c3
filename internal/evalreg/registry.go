// Package evalreg holds the process-wide registry mapping metric
// identifiers to the evaluator constructors that can produce them.
//
// Grounded on original_source/aicertify/evaluators/evaluator_registry.py
// (EvaluatorRegistry/register_evaluator/discover_evaluators), translated
// from Python's threading.RLock + lazy __new__ singleton into a Go
// sync.RWMutex-guarded value behind sync.Once, per spec §9 "thread-safe
// singletons ... a lazily-initialized process-wide value guarded by a
// one-shot initializer primitive."
package evalreg

import (
	"strings"
	"sync"

	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// Constructor builds a fresh Evaluator instance. Registered by identity
// only — the registry never holds evaluator instances, only
// constructors (spec §3 "Ownership").
type Constructor func() Evaluator

// Evaluator is the capability set every evaluator implementation
// satisfies (spec §9: "evaluator ≡ {supportedMetrics()->set<string>,
// evaluateAsync(contract, config)->metricDoc}").
type Evaluator interface {
	Name() string
	SupportedMetrics() []string
}

// Registry is the mapping from metric identifier to the set of
// evaluator constructors that can produce it, plus the inverse set.
type Registry struct {
	mu         sync.RWMutex
	byMetric   map[string]map[string]Constructor // metric -> evaluatorName -> ctor
	evaluators map[string]Constructor             // evaluatorName -> ctor
}

var (
	once     sync.Once
	instance *Registry
)

// Default returns the process-wide registry instance.
func Default() *Registry {
	once.Do(func() {
		instance = &Registry{
			byMetric:   make(map[string]map[string]Constructor),
			evaluators: make(map[string]Constructor),
		}
	})
	return instance
}

// Register is idempotent on (constructor, metric) pairs, identified by
// the evaluator's declared Name().
func (r *Registry) Register(ctor Constructor, metrics []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := ctor()
	name := ev.Name()
	r.evaluators[name] = ctor

	for _, m := range metrics {
		if r.byMetric[m] == nil {
			r.byMetric[m] = make(map[string]Constructor)
		}
		r.byMetric[m][name] = ctor
	}
}

// IsRegistered reports whether an evaluator with this name has already
// been registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.evaluators[name]
	return ok
}

// DiscoverForMetrics returns the set of evaluator constructors whose
// supported-metric sets intersect the requested metrics. When multiple
// evaluators declare the same metric, all are returned. An exact-match
// miss falls back to a case-insensitive comparison.
func (r *Registry) DiscoverForMetrics(metrics []string) []Constructor {
	log := logging.For("evalreg")
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]Constructor)
	for _, m := range metrics {
		byName, ok := r.byMetric[m]
		if !ok {
			byName = r.caseInsensitiveLookup(m)
		}
		if len(byName) == 0 {
			log.Warn("no evaluator registered for metric", "metric", m)
			continue
		}
		for name, ctor := range byName {
			seen[name] = ctor
		}
	}

	out := make([]Constructor, 0, len(seen))
	for _, ctor := range seen {
		out = append(out, ctor)
	}
	return out
}

func (r *Registry) caseInsensitiveLookup(metric string) map[string]Constructor {
	lower := strings.ToLower(metric)
	for m, byName := range r.byMetric {
		if strings.ToLower(m) == lower {
			return byName
		}
	}
	return nil
}

// AllMetrics returns every registered metric identifier.
func (r *Registry) AllMetrics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byMetric))
	for m := range r.byMetric {
		out = append(out, m)
	}
	return out
}

// AllEvaluators returns every registered evaluator name.
func (r *Registry) AllEvaluators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		out = append(out, name)
	}
	return out
}

// Clear removes all registrations. Test-only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMetric = make(map[string]map[string]Constructor)
	r.evaluators = make(map[string]Constructor)
}
