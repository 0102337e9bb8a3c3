package audit

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Principled-Evolution/aicertify/internal/report"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordResults_ThenListByContract(t *testing.T) {
	store := NewStore(setupTestDB(t))

	err := store.RecordResults("contract-1", "demo-app", []report.PolicyResult{
		{Name: "fairness", Result: true, Details: map[string]any{"reason": "ok"}},
		{Name: "transparency", Result: false, Details: map[string]any{"reason": "missing model card"}},
	})
	require.NoError(t, err)

	entries, err := store.ListByContract("contract-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "demo-app", entries[0].ApplicationName)
}

func TestListRecent_FiltersByResultAndApp(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.RecordResult("c1", "app-a", report.PolicyResult{Name: "p1", Result: true}))
	require.NoError(t, store.RecordResult("c2", "app-b", report.PolicyResult{Name: "p2", Result: false}))

	failFlag := false
	entries, err := store.ListRecent(ListOptions{Result: &failFlag})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app-b", entries[0].ApplicationName)

	entries, err = store.ListRecent(ListOptions{ApplicationName: "app-a"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Result)
}

func TestCountFailures(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.RecordResult("c1", "app", report.PolicyResult{Name: "p1", Result: false}))
	require.NoError(t, store.RecordResult("c1", "app", report.PolicyResult{Name: "p2", Result: true}))

	count, err := store.CountFailures(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordLLMUsage_ThenTotalCostForContract(t *testing.T) {
	store := NewStore(setupTestDB(t))

	require.NoError(t, store.RecordLLMUsage("contract-1", "fairness.counterfactual_score", LLMUsage{
		Model: "gpt-5-mini", InputTokens: 120, OutputTokens: 40, CostUSD: 0.002,
	}))
	require.NoError(t, store.RecordLLMUsage("contract-1", "toxicity.score", LLMUsage{
		Model: "gpt-5-mini", InputTokens: 80, OutputTokens: 20, CostUSD: 0.0015,
	}))
	require.NoError(t, store.RecordLLMUsage("contract-2", "fairness.counterfactual_score", LLMUsage{
		Model: "gpt-5-mini", InputTokens: 50, OutputTokens: 10, CostUSD: 0.001,
	}))

	total, err := store.TotalCostForContract("contract-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.0035, total, 0.00001)
}

func TestPrune_RemovesOldEntries(t *testing.T) {
	store := NewStore(setupTestDB(t))
	require.NoError(t, store.RecordResult("c1", "app", report.PolicyResult{Name: "p1", Result: true}))

	removed, err := store.Prune(-time.Hour) // cutoff in the future relative to entries just written
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	entries, err := store.ListByContract("c1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
