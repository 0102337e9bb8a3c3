// Package extract turns a raw decision-engine result document into the
// structured report.PolicyResult values the rest of the system
// consumes.
//
// Grounded on original_source/aicertify/opa_core/flexible_extractor.py
// (FlexibleExtractor.extract_policy_results/extract_policy_data/
// extract_all_policy_results) and extraction.py's validate_opa_results
// seven-step schema pre-pass. The "flat shape" fallback (§9 open
// question) additionally accepts a value document with no v-prefixed
// key, treating it as the sole implicit version, and logs a divergence
// warning rather than rejecting it.
package extract

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Principled-Evolution/aicertify/internal/logging"
	"github.com/Principled-Evolution/aicertify/internal/report"
)

const flatShapeKey = "__flat__"

// Validate checks that a decision document has the expected
// {result: [{expressions: [{value: {v1: {...}}}]}]} shape, mirroring
// validate_opa_results. A value document with no version key is
// accepted as the legacy flat shape rather than rejected.
func Validate(decision map[string]any) bool {
	log := logging.For("extract")

	if decision == nil {
		log.Warn("invalid decision: nil")
		return false
	}
	resultList, ok := decision["result"].([]any)
	if !ok || len(resultList) == 0 {
		log.Warn("invalid decision: missing or empty result list")
		return false
	}
	firstResult, ok := resultList[0].(map[string]any)
	if !ok {
		log.Warn("invalid decision: first result is not an object")
		return false
	}
	expressions, ok := firstResult["expressions"].([]any)
	if !ok || len(expressions) == 0 {
		log.Warn("invalid decision: missing or empty expressions")
		return false
	}
	firstExpr, ok := expressions[0].(map[string]any)
	if !ok {
		log.Warn("invalid decision: first expression is not an object")
		return false
	}
	value, ok := firstExpr["value"].(map[string]any)
	if !ok {
		log.Warn("invalid decision: value is not an object")
		return false
	}
	if len(versionKeys(value)) == 0 {
		log.Warn("decision value has no version keys, treating as flat shape")
	}
	return true
}

func versionKeys(value map[string]any) []string {
	var keys []string
	for k := range value {
		if strings.HasPrefix(k, "v") {
			keys = append(keys, k)
		}
	}
	return keys
}

// value navigates a decision document down to its `value` object,
// returning nil if the shape is invalid.
func value(decision map[string]any) map[string]any {
	resultList, ok := decision["result"].([]any)
	if !ok || len(resultList) == 0 {
		return nil
	}
	firstResult, ok := resultList[0].(map[string]any)
	if !ok {
		return nil
	}
	expressions, ok := firstResult["expressions"].([]any)
	if !ok || len(expressions) == 0 {
		return nil
	}
	firstExpr, ok := expressions[0].(map[string]any)
	if !ok {
		return nil
	}
	v, _ := firstExpr["value"].(map[string]any)
	return v
}

// orderedVersions returns the decision's version keys with "v1" first
// when present, mirroring extract_policy_data's prioritization. When no
// version key exists, the flat shape is represented by a single
// synthetic key so callers can iterate uniformly.
func orderedVersions(v map[string]any) (map[string]map[string]any, []string) {
	versions := make(map[string]map[string]any)
	keys := versionKeys(v)
	if len(keys) == 0 {
		if flat, ok := asStringMap(v); ok {
			versions[flatShapeKey] = flat
			return versions, []string{flatShapeKey}
		}
		return versions, nil
	}

	ordered := make([]string, 0, len(keys))
	if contains(keys, "v1") {
		ordered = append(ordered, "v1")
	}
	for _, k := range keys {
		if k != "v1" {
			ordered = append(ordered, k)
		}
	}
	for _, k := range keys {
		if m, ok := asStringMap(v[k]); ok {
			versions[k] = m
		}
	}
	return versions, ordered
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func asStringMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

var titleCaser = cases.Title(language.English)

// normalizedName mirrors policy_name.replace("_"," ").title().
func normalizedName(policyName string) string {
	return titleCaser.String(strings.ReplaceAll(policyName, "_", " "))
}

// PolicyData locates the raw policy data for policyName inside a
// decision document, trying the exact name first, then the
// title-cased/space-separated normalized name, across version keys
// (v1 first), mirroring extract_policy_data.
func PolicyData(decision map[string]any, policyName string) (map[string]any, bool) {
	v := value(decision)
	if v == nil {
		return nil, false
	}
	versions, order := orderedVersions(v)
	normalized := normalizedName(policyName)

	for _, key := range order {
		versionData := versions[key]
		if data, ok := asStringMap(versionData[policyName]); ok {
			return data, true
		}
		if data, ok := asStringMap(versionData[normalized]); ok {
			return data, true
		}
	}
	return nil, false
}

// PolicyResult extracts one report.PolicyResult for policyName from a
// decision document, mirroring extract_policy_results.
func PolicyResult(decision map[string]any, policyName string) report.PolicyResult {
	log := logging.For("extract")

	result := report.PolicyResult{
		Name:   policyName,
		Result: false,
		Details: map[string]any{
			"error": "No compliance report available for " + policyName,
		},
	}

	data, ok := PolicyData(decision, policyName)
	if !ok {
		log.Debug("no compliance report found", "policy", policyName)
		result.Details = map[string]any{"error": "No compliance report found for policy " + policyName}
		return result
	}

	complianceReport, ok := asStringMap(data["compliance_report"])
	if !ok {
		log.Warn("compliance report missing or malformed", "policy", policyName)
		result.Details = map[string]any{"error": "Invalid compliance report format"}
		return result
	}

	compliant, _ := complianceReport["compliant"].(bool)
	result.Result = compliant

	details := make(map[string]any)
	for k, v := range complianceReport {
		if k == "compliant" || k == "reason" || k == "recommendations" {
			continue
		}
		details[k] = v
	}
	if len(details) == 0 {
		details["info"] = "No detailed information available in the compliance report"
	}
	result.Details = details
	result.Metrics = data

	if recs, ok := complianceReport["recommendations"].([]any); ok {
		strs := make([]string, 0, len(recs))
		for _, r := range recs {
			if s, ok := r.(string); ok {
				strs = append(strs, s)
			}
		}
		if len(strs) > 0 {
			result.Details["recommendations"] = strs
		}
	}

	return result
}

// AllPolicyResults extracts a report.PolicyResult for every policy
// named anywhere across all version keys of a decision document,
// deduplicated by policy name, mirroring extract_all_policy_results.
func AllPolicyResults(decision map[string]any) []report.PolicyResult {
	log := logging.For("extract")

	v := value(decision)
	if v == nil {
		log.Warn("no valid decision value found")
		return nil
	}
	versions, order := orderedVersions(v)

	seen := make(map[string]bool)
	var results []report.PolicyResult
	for _, key := range order {
		for policyName := range versions[key] {
			if seen[policyName] {
				continue
			}
			seen[policyName] = true
			results = append(results, PolicyResult(decision, policyName))
		}
	}
	log.Info("extracted policy results", "count", len(results))
	return results
}
