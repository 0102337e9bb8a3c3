package depresolve

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Principled-Evolution/aicertify/internal/policylib"
)

func TestClosure_ResolvesCommonImport(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/global/v1/common/fairness.rego", []byte("package global.v1.common.fairness\n\ndefault ok := true\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/lib/international/eu_ai_act/v1/transparency/transparency.rego", []byte(`package international.eu_ai_act.v1.transparency

import data.common.fairness.v1 as fairness

compliance_report := {}
`), 0o644))

	lib, err := policylib.OpenFs(fs, "/lib")
	require.NoError(t, err)

	start, err := lib.GetPolicies("international", "eu_ai_act", "v1")
	require.NoError(t, err)
	require.Len(t, start, 1)

	closure := Closure(lib, start)
	require.Len(t, closure, 2)

	var sawCommon bool
	for _, p := range closure {
		if p.PackageName == "global.v1.common.fairness" {
			sawCommon = true
		}
	}
	assert.True(t, sawCommon)
}

func TestQuery_DerivesFromPackage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/global/v1/common/x.rego", []byte("package global.v1.common.x\n\ncompliance_report := {}\n"), 0o644))
	lib, err := policylib.OpenFs(fs, "/lib")
	require.NoError(t, err)

	p, ok := lib.PackageLookup("global.v1.common.x")
	require.True(t, ok)
	assert.Equal(t, "data.global.v1.common.x.compliance_report", Query(lib, p))
}
