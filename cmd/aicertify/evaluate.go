package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Principled-Evolution/aicertify/internal/audit"
	"github.com/Principled-Evolution/aicertify/internal/config"
	"github.com/Principled-Evolution/aicertify/internal/orchestrator"
	"github.com/Principled-Evolution/aicertify/internal/report"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <contract.json>",
	Short: "Evaluate a contract against a policy folder or category",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("folder", "", "policy folder selector: a directory path joined onto the library root, e.g. policies/global/v1 with the default root")
	evaluateCmd.Flags().String("category", "", "policy category selector, e.g. international/eu_ai_act")
	evaluateCmd.Flags().Bool("json", false, "print the full evaluation result as JSON")
	evaluateCmd.Flags().Bool("fail-on-violation", true, "exit non-zero when the overall result is non-compliant")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	category, _ := cmd.Flags().GetString("category")
	if folder == "" && category == "" {
		return fmt.Errorf("one of --folder or --category is required")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read contract: %w", err)
	}
	var contract report.Contract
	if err := json.Unmarshal(raw, &contract); err != nil {
		return fmt.Errorf("parse contract: %w", err)
	}
	if err := contract.Validate(); err != nil {
		return fmt.Errorf("invalid contract: %w", err)
	}

	opts := orchestrator.Options{Mode: engineMode(), Workers: config.GlobalEngineConfig.Engine.Workers}

	var result *orchestrator.EvaluationResult
	if folder != "" {
		result, err = orch.EvaluateByFolder(cmd.Context(), &contract, folder, opts)
	} else {
		result, err = orch.EvaluateByCategory(cmd.Context(), &contract, category, opts)
	}
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	if dbPath := configuredAuditDBPath(); dbPath != "" {
		if err := recordAudit(dbPath, contract.ContractID.String(), contract.ApplicationName, result.PolicyResults, result.Metrics); err != nil {
			logEngineWarning("record audit trail", err)
		}
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printEvaluationSummary(result)
	}

	failOnViolation, _ := cmd.Flags().GetBool("fail-on-violation")
	if failOnViolation && !result.OverallPass {
		os.Exit(2)
	}
	return nil
}

func printEvaluationSummary(result *orchestrator.EvaluationResult) {
	status := "PASS"
	if !result.OverallPass {
		status = "FAIL"
	}
	fmt.Printf("Overall: %s\n\n", status)
	for _, pr := range result.PolicyResults {
		mark := "pass"
		if !pr.Result {
			mark = "fail"
		}
		fmt.Printf("  [%s] %s\n", mark, pr.Name)
		if reason, ok := pr.Details["reason"].(string); ok && reason != "" {
			fmt.Printf("        %s\n", reason)
		}
	}
}

func recordAudit(dbPath, contractID, appName string, results []report.PolicyResult, metrics map[string]any) error {
	db, err := openAuditDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	store := audit.NewStore(db)
	if err := store.RecordResults(contractID, appName, results); err != nil {
		return err
	}
	for metricName, usage := range llmUsageFrom(metrics) {
		if err := store.RecordLLMUsage(contractID, metricName, usage); err != nil {
			return err
		}
	}
	return nil
}

// llmUsageFrom extracts every "_llm_usage" sub-map an LLM-judge
// evaluator attached to its metric document, keyed by metric name.
func llmUsageFrom(metrics map[string]any) map[string]audit.LLMUsage {
	out := make(map[string]audit.LLMUsage)
	for metricName, raw := range metrics {
		doc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		usageDoc, ok := doc["_llm_usage"].(map[string]any)
		if !ok {
			continue
		}
		model, _ := usageDoc["model"].(string)
		cost, _ := usageDoc["cost_usd"].(float64)
		out[metricName] = audit.LLMUsage{
			Model:        model,
			InputTokens:  intFromAny(usageDoc["input_tokens"]),
			OutputTokens: intFromAny(usageDoc["output_tokens"]),
			CostUSD:      cost,
		}
	}
	return out
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
