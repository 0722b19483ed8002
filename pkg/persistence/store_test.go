package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolflow/pkg/tool/metrics"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.BeginRun("run-1", "decay-analysis", 3, started))

	run, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, "decay-analysis", run.Pipeline)
	require.Equal(t, 3, run.Entities)
	require.Nil(t, run.CompletedAt)

	completed := started.Add(2 * time.Second)
	require.NoError(t, store.CompleteRun("run-1", 2, 1, completed))

	run, err = store.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, 2, run.Succeeded)
	require.Equal(t, 1, run.Failed)
	require.NotNil(t, run.CompletedAt)
}

func TestCompleteRunMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.CompleteRun("no-such-run", 0, 0, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestEntityOutcomes(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.BeginRun("run-2", "decay-analysis", 2, now))

	require.NoError(t, store.RecordEntity(EntityOutcome{
		RunID: "run-2", Entity: "pi+", Success: true, CompletedAt: now,
	}))
	require.NoError(t, store.RecordEntity(EntityOutcome{
		RunID: "run-2", Entity: "mu-", Success: false,
		Error: "step validate: transport status 502", CompletedAt: now.Add(time.Second),
	}))

	outcomes, err := store.ListOutcomes("run-2")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	require.Equal(t, "pi+", outcomes[0].Entity)
	require.True(t, outcomes[0].Success)
	require.False(t, outcomes[1].Success)
	require.Contains(t, outcomes[1].Error, "502")
}

func TestRecordEntityUpsert(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, store.BeginRun("run-3", "p", 1, now))

	require.NoError(t, store.RecordEntity(EntityOutcome{
		RunID: "run-3", Entity: "pi+", Success: false, Error: "timeout", CompletedAt: now,
	}))
	require.NoError(t, store.RecordEntity(EntityOutcome{
		RunID: "run-3", Entity: "pi+", Success: true, CompletedAt: now.Add(time.Second),
	}))

	outcomes, err := store.ListOutcomes("run-3")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success)
	require.Empty(t, outcomes[0].Error)
}

func TestToolStats(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.BeginRun("run-4", "p", 1, time.Now()))

	stats := map[string]metrics.Stats{
		"search_particle": {Tool: "search_particle", Calls: 5, Successes: 4, Failures: 1, TotalLatency: 500 * time.Millisecond},
		"compile_tikz":    {Tool: "compile_tikz", Calls: 2, Successes: 2, Rejections: 1},
	}
	require.NoError(t, store.RecordToolStats("run-4", stats))
	// Overwrite with updated totals.
	stats["compile_tikz"] = metrics.Stats{Tool: "compile_tikz", Calls: 3, Successes: 3, Rejections: 1}
	require.NoError(t, store.RecordToolStats("run-4", stats))

	var calls int
	err := store.db.QueryRow(
		"SELECT calls FROM tool_stats WHERE run_id = ? AND tool = ?", "run-4", "compile_tikz",
	).Scan(&calls)
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.BeginRun(id, "p", 1, base.Add(time.Duration(i)*time.Minute)))
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].ID)
	require.Equal(t, "b", runs[1].ID)
}
