package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the policy library's embedded Rego tests",
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	if !library.HasTests() {
		fmt.Println("no *_test.rego files found in the policy library")
		return nil
	}

	summary, err := library.RunTests(cmd.Context(), nil)
	if err != nil {
		return fmt.Errorf("run policy tests: %w", err)
	}

	for _, r := range summary.Results {
		status := "PASS"
		switch {
		case r.Failed:
			status = "FAIL"
		case r.Error != "":
			status = "ERROR"
		case r.Skipped:
			status = "SKIP"
		}
		fmt.Printf("[%s] %s.%s (%s)\n", status, r.Package, r.Name, r.Duration)
		if r.Error != "" {
			fmt.Printf("      %s\n", r.Error)
		}
	}
	fmt.Printf("\n%d tests, %d passed, %d failed, %d errored, %d skipped\n",
		summary.Total, summary.Passed, summary.Failed, summary.Errored, summary.Skipped)

	if !summary.AllPassed() {
		os.Exit(1)
	}
	return nil
}
