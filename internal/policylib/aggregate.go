package policylib

import "github.com/Principled-Evolution/aicertify/internal/policymeta"

// RequiredMetrics returns the union of required metrics across the
// given policies, grounded on get_required_metrics_for_folder.
func RequiredMetrics(policies []*Policy) []string {
	all := make([]*policymeta.Metadata, 0, len(policies))
	for _, p := range policies {
		if p.Metadata != nil {
			all = append(all, p.Metadata)
		}
	}
	return policymeta.MergeMetrics(all)
}

// RequiredParams returns the merged parameter defaults across the given
// policies, first-occurrence-wins, grounded on
// get_required_params_for_folder.
func RequiredParams(policies []*Policy) map[string]any {
	all := make([]*policymeta.Metadata, 0, len(policies))
	for _, p := range policies {
		if p.Metadata != nil {
			all = append(all, p.Metadata)
		}
	}
	return policymeta.MergeParams(all)
}
