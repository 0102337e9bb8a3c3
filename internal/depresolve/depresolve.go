// Package depresolve computes the transitive closure of policy files
// that must be supplied together to the decision engine so that
// cross-file `import data.<pkg>` references resolve, and builds the
// decision query for a given policy file.
//
// Grounded on policy_loader.py's resolve_policy_dependencies,
// _find_policy_dependencies, and build_query_for_policy.
package depresolve

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Principled-Evolution/aicertify/internal/logging"
	"github.com/Principled-Evolution/aicertify/internal/policylib"
)

var (
	importRe      = regexp.MustCompile(`import\s+data\.([a-zA-Z0-9_.]+)(?:\s+as\s+([a-zA-Z0-9_]+))?`)
	commonV1ImportRe = regexp.MustCompile(`import\s+data\.common\.([a-zA-Z0-9_.]+)\.v(\d+)(?:\s+as\s+([a-zA-Z0-9_]+))?`)
)

// Closure computes the set of policy files (including the starting
// set) that must be supplied together to the decision engine.
func Closure(lib *policylib.Library, start []*policylib.Policy) []*policylib.Policy {
	log := logging.For("depresolve")

	seen := make(map[string]*policylib.Policy, len(start))
	for _, p := range start {
		seen[p.Path] = p
	}

	queue := append([]*policylib.Policy(nil), start...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, dep := range findDependencies(lib, p, log) {
			if _, ok := seen[dep.Path]; !ok {
				seen[dep.Path] = dep
				queue = append(queue, dep)
			}
		}
	}

	out := make([]*policylib.Policy, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out
}

func findDependencies(lib *policylib.Library, p *policylib.Policy, log logging.Logger) []*policylib.Policy {
	var deps []*policylib.Policy

	for _, m := range importRe.FindAllStringSubmatch(p.Content, -1) {
		pkg := m[1]
		if dep, ok := lib.PackageLookup(pkg); ok {
			deps = append(deps, dep)
			continue
		}
		log.Warn("could not resolve import", "package", pkg, "from", p.Path)
		if strings.Contains(pkg, "common.") {
			if dep, ok := commonFallback(lib, lastSegment(pkg)); ok {
				deps = append(deps, dep)
			}
		}
	}

	for _, m := range commonV1ImportRe.FindAllStringSubmatch(p.Content, -1) {
		module := m[1]
		if dep, ok := commonFallback(lib, module); ok {
			deps = append(deps, dep)
		} else {
			log.Warn("could not find common module fallback", "module", module, "from", p.Path)
		}
	}

	return deps
}

func lastSegment(dotted string) string {
	parts := strings.Split(dotted, ".")
	return parts[len(parts)-1]
}

// commonFallback locates the conventional global/v<N>/common/<name>.rego
// file for a common-module import that the package index could not
// resolve directly.
func commonFallback(lib *policylib.Library, module string) (*policylib.Policy, bool) {
	for _, p := range lib.AllPolicies() {
		if p.Category != "global" || p.Subcategory != "" {
			continue
		}
		if filepath.Base(p.Path) == module+policylib.Extension && strings.Contains(filepath.ToSlash(p.Path), "/common/") {
			return p, true
		}
	}
	return nil, false
}

// Query derives the decision query for a policy: data.<package>.compliance_report,
// falling back to a path-derived query when the package is empty.
func Query(lib *policylib.Library, p *policylib.Policy) string {
	if p.PackageName != "" {
		return "data." + p.PackageName + ".compliance_report"
	}

	rel, err := filepath.Rel(lib.Root(), p.Path)
	if err != nil {
		return "data.compliance_report"
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	out := parts[:0]
	skippedVersion := false
	for _, part := range parts {
		if !skippedVersion && versionLike(part) {
			skippedVersion = true
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return "data.compliance_report"
	}
	out[len(out)-1] = strings.TrimSuffix(out[len(out)-1], policylib.Extension)
	return "data." + strings.Join(out, ".") + ".compliance_report"
}

func versionLike(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
