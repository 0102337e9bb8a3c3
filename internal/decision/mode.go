package decision

// Mode selects how much diagnostic output the engine driver requests
// from the decision engine, grounded on opa_core/evaluator.py's
// ExecutionMode literal ("production" | "development" | "debug").
type Mode string

const (
	// ModeProduction requests JSON output, --fail on undefined/empty
	// results, and optimization when an entrypoint is supplied.
	ModeProduction Mode = "production"
	// ModeDevelopment requests pretty output with failure explanations
	// and coverage.
	ModeDevelopment Mode = "development"
	// ModeDebug requests full explanations, coverage, metrics, and
	// instrumentation.
	ModeDebug Mode = "debug"
)
