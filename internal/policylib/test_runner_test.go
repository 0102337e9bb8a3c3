package policylib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTests_PassesOnFixtureLibrary(t *testing.T) {
	fs := newFixture(t)
	lib, err := OpenFs(fs, "/lib")
	require.NoError(t, err)

	assert.True(t, lib.HasTests())

	summary, err := lib.RunTests(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.True(t, summary.AllPassed())
}

func TestRunTests_NoTestsReturnsEmptySummary(t *testing.T) {
	fs := newFixture(t)
	lib, err := OpenFs(fs, "/lib")
	require.NoError(t, err)

	v2, err := lib.GetPolicies("international", "eu_ai_act", "v2")
	require.NoError(t, err)

	summary, err := lib.RunTests(context.Background(), v2)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.True(t, summary.AllPassed())
}

func TestHasTests_FalseWithoutTestFiles(t *testing.T) {
	fs := newFixture(t)
	lib, err := OpenFs(fs, "/lib")
	require.NoError(t, err)

	v2, err := lib.GetPolicies("international", "eu_ai_act", "v2")
	require.NoError(t, err)
	for _, p := range v2 {
		assert.False(t, p.IsTest())
	}
}
