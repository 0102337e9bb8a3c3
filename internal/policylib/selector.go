package policylib

import (
	"strings"

	"github.com/Principled-Evolution/aicertify/internal/logging"
)

// euAIActSynonyms are alternate spellings that should resolve to the
// international/eu_ai_act bucket, grounded on policy_loader.py's
// special-cased synonym list.
var euAIActSynonyms = map[string]bool{
	"eu_ai_act": true,
	"eu-ai-act": true,
	"euaiact":   true,
}

// GetPoliciesByCategory is a loose lookup accepting a bare category, a
// "category/subcategory" fragment (with either path separator), a
// well-known synonym, or a standalone category/subcategory name. It
// returns an empty slice (never an error) on a total miss, logging the
// known buckets for diagnosis.
func (l *Library) GetPoliciesByCategory(selector string) []*Policy {
	log := logging.For("policylib")
	normalized := strings.ToLower(strings.ReplaceAll(selector, "\\", "/"))

	if strings.Contains(normalized, "/") {
		parts := strings.SplitN(normalized, "/", 2)
		if parts[0] == "compliance" && len(parts) > 1 {
			normalized = parts[1]
			parts = strings.SplitN(normalized, "/", 2)
		}
		if len(parts) >= 2 {
			if policies, err := l.GetPolicies(parts[0], parts[1], ""); err == nil {
				log.Info("resolved selector via direct category/subcategory path", "selector", selector)
				return policies
			}
		}
	}

	// Standalone category: union across all its subcategories.
	for _, pair := range l.ListCategories() {
		if pair[0] == normalized {
			var all []*Policy
			for _, p2 := range l.ListCategories() {
				if p2[0] != normalized {
					continue
				}
				if policies, err := l.GetPolicies(p2[0], p2[1], ""); err == nil {
					all = append(all, policies...)
				}
			}
			if len(all) > 0 {
				log.Info("resolved selector via standalone category match", "selector", selector)
				return all
			}
		}
	}

	// Standalone subcategory match.
	for _, pair := range l.ListCategories() {
		if pair[1] != "" && pair[1] == normalized {
			if policies, err := l.GetPolicies(pair[0], pair[1], ""); err == nil {
				log.Info("resolved selector via standalone subcategory match", "selector", selector)
				return policies
			}
		}
	}

	if euAIActSynonyms[normalized] {
		if policies, err := l.GetPolicies("international", "eu_ai_act", ""); err == nil {
			log.Info("resolved selector via eu_ai_act synonym", "selector", selector)
			return policies
		}
	}

	var known []string
	for _, pair := range l.ListCategories() {
		if pair[1] != "" {
			known = append(known, pair[0]+"/"+pair[1])
		} else {
			known = append(known, pair[0])
		}
	}
	log.Error("no policies found for selector", "selector", selector, "known_buckets", known)

	if strings.Contains(normalized, "global") {
		if policies, err := l.GetPolicies("global", "", ""); err == nil {
			log.Info("resolved selector via global fallback", "selector", selector)
			return policies
		}
	}

	return nil
}
