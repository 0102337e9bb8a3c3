package main

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/spf13/cobra"

	"github.com/Principled-Evolution/aicertify/internal/audit"
	"github.com/Principled-Evolution/aicertify/internal/config"
	"github.com/Principled-Evolution/aicertify/internal/logging"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the recorded policy evaluation audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit entries",
	RunE:  runAuditList,
}

func init() {
	auditListCmd.Flags().String("app", "", "filter by application name")
	auditListCmd.Flags().Int("limit", 50, "maximum entries to return")
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	dbPath := configuredAuditDBPath()
	db, err := openAuditDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	appName, _ := cmd.Flags().GetString("app")
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := audit.NewStore(db).ListRecent(audit.ListOptions{ApplicationName: appName, Limit: limit})
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func configuredAuditDBPath() string {
	return config.GlobalEngineConfig.Audit.DBPath
}

func openAuditDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db %s: %w", path, err)
	}
	if _, err := db.Exec(audit.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return db, nil
}

func logEngineWarning(action string, err error) {
	logging.For("cli").Warn(action+" failed", "error", err)
}
