// Package policymeta extracts declared metrics and parameter defaults
// from a policy file's structured header comments.
//
// Grammar (grounded on the original Python rego_parser.parse_rego_file_metadata):
//
//	# RequiredMetrics:
//	# - fairness.counterfactual_score
//	# - toxicity.score
//	#
//	# RequiredParams:
//	# - max_toxicity (default 0.2)
//	# - strict_mode (default true)
package policymeta

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// Metadata holds the metrics and parameters declared by one policy file.
type Metadata struct {
	RequiredMetrics []string
	RequiredParams  map[string]any
	PackageName     string
	FilePath        string
}

var (
	packageRe = regexp.MustCompile(`(?m)^\s*package\s+([A-Za-z0-9_.]+)`)

	// Matches the RequiredMetrics: header and every contiguous "- <id>"
	// comment line that follows it.
	metricsSectionRe = regexp.MustCompile(`(?m)^\s*#\s*RequiredMetrics:\s*\n((?:\s*#\s*-\s*[^\n]+\n?)+)`)
	// The trailing (?:#.*)? swallows an optional "# comment" suffix
	// (spec §4.B "optional trailing comment"), matching the original
	// rego_parser.py behavior.
	metricLineRe = regexp.MustCompile(`(?m)^\s*#\s*-\s*(.+?)\s*(?:#.*)?$`)

	paramsSectionRe = regexp.MustCompile(`(?m)^\s*#\s*RequiredParams:\s*\n((?:\s*#\s*-\s*[^\n]+\n?)+)`)
	paramLineRe     = regexp.MustCompile(`(?m)^\s*#\s*-\s*([^\s(]+)(?:\s*\(default\s*([^)]+)\))?\s*(?:#.*)?$`)
)

// PolicyUnreadable is returned when the source cannot be read at all.
type PolicyUnreadable struct {
	Path string
	Err  error
}

func (e *PolicyUnreadable) Error() string {
	return fmt.Sprintf("policy %s is unreadable: %v", e.Path, e.Err)
}

func (e *PolicyUnreadable) Unwrap() error { return e.Err }

// Parse reads the full content of r (already opened by the caller) and
// extracts its metadata. Read errors propagate as *PolicyUnreadable;
// everything else (missing sections, malformed lines) degrades to a
// logged warning and an empty/partial result, per spec §4.B.
func Parse(path string, r io.Reader) (*Metadata, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &PolicyUnreadable{Path: path, Err: err}
	}
	return ParseContent(path, string(raw)), nil
}

// ParseContent extracts metadata from an already-read source string.
func ParseContent(path, content string) *Metadata {
	log := logging.For("policymeta")

	pkg := ""
	if m := packageRe.FindStringSubmatch(content); m != nil {
		pkg = m[1]
	} else {
		log.Warn("no package declaration found", "path", path)
	}

	metrics := parseMetrics(path, content, log)
	params := parseParams(path, content, log)

	return &Metadata{
		RequiredMetrics: metrics,
		RequiredParams:  params,
		PackageName:     pkg,
		FilePath:        path,
	}
}

func parseMetrics(path, content string, log logging.Logger) []string {
	section := metricsSectionRe.FindStringSubmatch(content)
	if section == nil {
		return nil
	}
	var metrics []string
	for _, line := range strings.Split(section[1], "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := metricLineRe.FindStringSubmatch(line)
		if m == nil {
			log.Warn("skipping malformed required-metric line", "path", path, "line", strings.TrimSpace(line))
			continue
		}
		id := strings.TrimSpace(m[1])
		if id == "" {
			continue
		}
		metrics = append(metrics, id)
	}
	return metrics
}

func parseParams(path, content string, log logging.Logger) map[string]any {
	params := map[string]any{}
	section := paramsSectionRe.FindStringSubmatch(content)
	if section == nil {
		return params
	}
	for _, line := range strings.Split(section[1], "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := paramLineRe.FindStringSubmatch(line)
		if m == nil {
			log.Warn("skipping malformed required-param line", "path", path, "line", strings.TrimSpace(line))
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		params[name] = convertDefault(strings.TrimSpace(m[2]))
	}
	return params
}

// convertDefault applies the literal-conversion precedence documented by
// the original parser: bool -> int -> float -> quoted string -> raw string.
func convertDefault(raw string) any {
	if raw == "" {
		return nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

// MergeMetrics returns the union of required metrics across a set of
// per-file metadata, de-duplicated but order-preserving (first
// occurrence wins for position, matching the spec's stability
// requirement for folder-level aggregation).
func MergeMetrics(all []*Metadata) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range all {
		if m == nil {
			continue
		}
		for _, metric := range m.RequiredMetrics {
			if _, ok := seen[metric]; ok {
				continue
			}
			seen[metric] = struct{}{}
			out = append(out, metric)
		}
	}
	return out
}

// MergeParams merges parameter maps across files with first-occurrence
// precedence: once a parameter name has a default from an earlier file,
// later files cannot override it. This matches spec §4.B's "merged
// parameter mapping with first-occurrence precedence (stable across
// re-evaluations)".
func MergeParams(all []*Metadata) map[string]any {
	merged := make(map[string]any)
	for _, m := range all {
		if m == nil {
			continue
		}
		for name, value := range m.RequiredParams {
			if _, exists := merged[name]; exists {
				continue
			}
			merged[name] = value
		}
	}
	return merged
}
