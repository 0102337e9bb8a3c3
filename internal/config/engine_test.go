package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig_AppliesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()

	require.NoError(t, InitConfig())

	assert.Equal(t, "./policies", GlobalEngineConfig.Library.Root)
	assert.Equal(t, "production", GlobalEngineConfig.Engine.Mode)
	assert.Equal(t, DefaultProvider, GlobalEngineConfig.LLM.Provider)
}

func TestInitConfig_EnvOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()

	t.Setenv("AICERTIFY_ENGINE_MODE", "debug")
	require.NoError(t, InitConfig())

	assert.Equal(t, "debug", GlobalEngineConfig.Engine.Mode)
}

func TestInitConfig_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	viper.Reset()

	content := "library:\n  root: /opt/policies\nengine:\n  workers: 4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".aicertify.yaml"), []byte(content), 0o644))

	require.NoError(t, InitConfig())
	assert.Equal(t, "/opt/policies", GlobalEngineConfig.Library.Root)
	assert.Equal(t, 4, GlobalEngineConfig.Engine.Workers)
}
