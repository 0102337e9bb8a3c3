package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Principled-Evolution/aicertify/internal/config"
	"github.com/Principled-Evolution/aicertify/internal/decision"
	"github.com/Principled-Evolution/aicertify/internal/evalreg"
	"github.com/Principled-Evolution/aicertify/internal/evaluators"
	"github.com/Principled-Evolution/aicertify/internal/llm"
	"github.com/Principled-Evolution/aicertify/internal/logging"
	"github.com/Principled-Evolution/aicertify/internal/orchestrator"
	"github.com/Principled-Evolution/aicertify/internal/policylib"
)

// library and orch are populated by initEngine and used by the
// subcommands (evaluate, test, audit).
var (
	library *policylib.Library
	orch    *orchestrator.Orchestrator
)

// initEngine is rootCmd's PersistentPreRunE: it loads configuration,
// opens the policy library, registers the built-in evaluators, and
// wires up a decision engine driver (embedded OPA binary, or a remote
// server when engine.serverURL is configured).
func initEngine(cmd *cobra.Command, args []string) error {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if err := config.InitConfig(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if libRoot, _ := cmd.Flags().GetString("library"); libRoot != "" {
		config.GlobalEngineConfig.Library.Root = libRoot
	}
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		config.GlobalEngineConfig.Engine.Mode = mode
	}

	lib, err := policylib.Open(config.GlobalEngineConfig.Library.Root)
	if err != nil {
		return fmt.Errorf("open policy library: %w", err)
	}
	library = lib

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		go func() {
			err := library.Watch(cmd.Context(), func(err error) {
				if err == nil {
					logging.For("cli").Info("policy library reloaded")
				}
			})
			if err != nil {
				logging.For("cli").Warn("policy library watch stopped", "error", err)
			}
		}()
	}

	registry := evalreg.Default()
	evaluators.RegisterBuiltins(registry, llm.Config{
		Provider: config.GlobalEngineConfig.LLM.Provider,
		Model:    config.GlobalEngineConfig.LLM.Model,
	})

	driver, err := buildDriver()
	if err != nil {
		return fmt.Errorf("build decision engine driver: %w", err)
	}
	if driver.UseServer {
		for _, p := range library.AllPolicies() {
			name := strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
			if err := driver.UploadPolicy(cmd.Context(), name, p.Content); err != nil {
				logging.For("cli").Warn("policy upload failed", "policy", p.Path, "error", err)
			}
		}
	}

	orch = orchestrator.New(library, driver)
	orch.Registry = registry

	logging.For("cli").Info("engine initialized",
		"library_root", config.GlobalEngineConfig.Library.Root,
		"mode", config.GlobalEngineConfig.Engine.Mode)
	return nil
}

func buildDriver() (*decision.Driver, error) {
	eng := config.GlobalEngineConfig.Engine
	if eng.ServerURL != "" {
		return decision.NewServerDriver(eng.ServerURL), nil
	}
	driver, err := decision.NewEmbeddedDriver()
	if err != nil {
		return nil, err
	}
	if eng.OpaPath != "" {
		driver.BinaryPath = eng.OpaPath
	}
	driver.Debug = eng.Mode == string(decision.ModeDebug)
	return driver, nil
}

func engineMode() decision.Mode {
	switch config.GlobalEngineConfig.Engine.Mode {
	case string(decision.ModeDevelopment):
		return decision.ModeDevelopment
	case string(decision.ModeDebug):
		return decision.ModeDebug
	default:
		return decision.ModeProduction
	}
}
