package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version is set via ldflags at build time:
// -ldflags "-X main.version=1.0.0"
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "aicertify",
	Short: "aicertify - AI compliance evaluation engine",
	Long: `aicertify evaluates AI system contracts (model info, interaction
transcripts, application context) against a versioned policy library using
an embedded or remote OPA decision engine, backed by LLM-judge and
embedding-similarity evaluators for the policies' required metrics.`,
	PersistentPreRunE: initEngine,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().String("config", "", "path to .aicertify.yaml config file")
	rootCmd.PersistentFlags().String("library", "", "policy library root (overrides library.root)")
	rootCmd.PersistentFlags().String("mode", "", "decision engine execution mode: production, development, debug")
	rootCmd.PersistentFlags().Bool("watch", false, "reload the policy library automatically when files under it change")
}

// Execute adds all child commands to the root command and runs it.
// Called once from main().
func Execute() {
	rootCmd.SuggestionsMinimumDistance = 2

	if err := rootCmd.Execute(); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "unknown command") {
			fmt.Fprintln(os.Stderr, "Hint: run `aicertify --help` to list available commands.")
		}
		os.Exit(1)
	}
}

func main() {
	Execute()
}
