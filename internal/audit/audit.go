// Package audit persists an optional trail of PolicyResult records to
// SQLite for compliance recordkeeping. This is a write-through log of
// what the orchestrator decided, never consulted to short-circuit a
// future evaluation — the orchestrator recomputes every run (spec
// §4.H "the orchestrator keeps no persistent cache").
//
// Grounded on internal/policy/audit.go's AuditStore (SaveDecision,
// ListDecisions, CountViolations, PruneOldDecisions), adapted from
// task/session-scoped policy decisions to contract/application-scoped
// PolicyResult records.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Principled-Evolution/aicertify/internal/report"
)

// Entry is one audited policy evaluation outcome.
type Entry struct {
	ID              int64
	EntryID         string
	ContractID      string
	ApplicationName string
	PolicyName      string
	Result          bool
	Details         map[string]any
	EvaluatedAt     time.Time
}

// LLMUsage is one LLM-judge evaluator call's token/cost accounting, as
// attached by evaluators.LLMJudgeEvaluator under a metric's "_llm_usage" key.
type LLMUsage struct {
	ID           int64
	ContractID   string
	MetricName   string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	RecordedAt   time.Time
}

// Store persists Entries to a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open SQLite connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the DDL the caller should execute once against a fresh
// database before using Store.
const Schema = `
CREATE TABLE IF NOT EXISTS policy_audit_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entry_id TEXT NOT NULL UNIQUE,
	contract_id TEXT NOT NULL,
	application_name TEXT NOT NULL,
	policy_name TEXT NOT NULL,
	result INTEGER NOT NULL,
	details_json TEXT,
	evaluated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policy_audit_contract ON policy_audit_entries (contract_id);
CREATE INDEX IF NOT EXISTS idx_policy_audit_evaluated_at ON policy_audit_entries (evaluated_at);
CREATE TABLE IF NOT EXISTS llm_usage_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	contract_id TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_usage_contract ON llm_usage_entries (contract_id);
`

// RecordResult persists one policy result from an evaluation run.
func (s *Store) RecordResult(contractID, applicationName string, result report.PolicyResult) error {
	detailsJSON := "{}"
	if result.Details != nil {
		b, err := json.Marshal(result.Details)
		if err == nil {
			detailsJSON = string(b)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO policy_audit_entries (entry_id, contract_id, application_name, policy_name, result, details_json, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		contractID,
		applicationName,
		result.Name,
		boolToInt(result.Result),
		detailsJSON,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecordResults persists every policy result from one evaluation run.
func (s *Store) RecordResults(contractID, applicationName string, results []report.PolicyResult) error {
	for _, r := range results {
		if err := s.RecordResult(contractID, applicationName, r); err != nil {
			return err
		}
	}
	return nil
}

// RecordLLMUsage persists one LLM-judge evaluator call's token/cost
// accounting, extracted from a metric document's "_llm_usage" sub-map.
func (s *Store) RecordLLMUsage(contractID, metricName string, usage LLMUsage) error {
	_, err := s.db.Exec(
		`INSERT INTO llm_usage_entries (contract_id, metric_name, model, input_tokens, output_tokens, cost_usd, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contractID,
		metricName,
		usage.Model,
		usage.InputTokens,
		usage.OutputTokens,
		usage.CostUSD,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert llm usage entry: %w", err)
	}
	return nil
}

// TotalCostForContract sums the recorded LLM cost across every judge
// call made while evaluating one contract.
func (s *Store) TotalCostForContract(contractID string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(cost_usd) FROM llm_usage_entries WHERE contract_id = ?`,
		contractID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum llm usage cost: %w", err)
	}
	return total.Float64, nil
}

// ListOptions filters ListRecent queries.
type ListOptions struct {
	ApplicationName string
	Result          *bool
	Since           time.Time
	Limit           int
}

// ListByContract retrieves every audit entry for one contract.
func (s *Store) ListByContract(contractID string) ([]*Entry, error) {
	return s.list("WHERE contract_id = ?", []any{contractID}, 0)
}

// ListRecent retrieves audit entries matching opts, most recent first.
func (s *Store) ListRecent(opts ListOptions) ([]*Entry, error) {
	clause := "WHERE 1=1"
	var args []any

	if opts.ApplicationName != "" {
		clause += " AND application_name = ?"
		args = append(args, opts.ApplicationName)
	}
	if opts.Result != nil {
		clause += " AND result = ?"
		args = append(args, boolToInt(*opts.Result))
	}
	if !opts.Since.IsZero() {
		clause += " AND evaluated_at >= ?"
		args = append(args, opts.Since.Format(time.RFC3339))
	}

	return s.list(clause, args, opts.Limit)
}

func (s *Store) list(whereClause string, args []any, limit int) ([]*Entry, error) {
	query := `SELECT id, entry_id, contract_id, application_name, policy_name, result, details_json, evaluated_at
		FROM policy_audit_entries ` + whereClause + ` ORDER BY evaluated_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountFailures counts failing policy results recorded since a given time.
func (s *Store) CountFailures(since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM policy_audit_entries WHERE result = 0 AND evaluated_at >= ?`,
		since.Format(time.RFC3339),
	).Scan(&count)
	return count, err
}

// Prune removes audit entries older than the given age.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Exec(`DELETE FROM policy_audit_entries WHERE evaluated_at < ?`, cutoff.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return result.RowsAffected()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var e Entry
	var detailsJSON string
	var resultInt int
	var evaluatedAtStr string

	if err := rows.Scan(&e.ID, &e.EntryID, &e.ContractID, &e.ApplicationName, &e.PolicyName, &resultInt, &detailsJSON, &evaluatedAtStr); err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}

	e.Result = resultInt != 0
	if detailsJSON != "" && detailsJSON != "{}" {
		var details map[string]any
		if json.Unmarshal([]byte(detailsJSON), &details) == nil {
			e.Details = details
		}
	}
	e.EvaluatedAt, _ = time.Parse(time.RFC3339, evaluatedAtStr)
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
