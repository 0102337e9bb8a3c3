package policylib

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReload_PicksUpNewPolicy(t *testing.T) {
	fs := newFixture(t)
	lib, err := OpenFs(fs, "/lib")
	require.NoError(t, err)

	before := len(lib.AllPolicies())

	writeFile(t, fs, "/lib/operational/v1/monitoring/drift.rego", "package operational.v1.monitoring.drift\n\ncompliance_report := {}\n")

	require.NoError(t, lib.Reload())
	after := lib.AllPolicies()
	assert.Equal(t, before+1, len(after))

	_, ok := lib.PackageLookup("operational.v1.monitoring.drift")
	assert.True(t, ok)
}

func TestReload_RejectsEmptyResultKeepsPreviousIndex(t *testing.T) {
	fs := newFixture(t)
	lib, err := OpenFs(fs, "/lib")
	require.NoError(t, err)

	before := lib.AllPolicies()
	require.NotEmpty(t, before)

	empty := afero.NewMemMapFs()
	require.NoError(t, empty.MkdirAll(lib.root, 0o755))
	lib.fs = empty

	err = lib.Reload()
	assert.ErrorIs(t, err, ErrLibraryMalformed)
	assert.Equal(t, before, lib.AllPolicies())
}
