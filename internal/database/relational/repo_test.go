package relational

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

func newTestRepo(t *testing.T, agentID string) *Repo {
	t.Helper()
	store, err := OpenInMemory()
	if err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	repo := store.Repo(agentID)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func snapshotAt(at time.Time, pct float64, level engine.Level) engine.Snapshot {
	return engine.Snapshot{
		Timestamp:     at,
		TotalMB:       16384,
		AvailableMB:   16384 * (100 - pct) / 100,
		UsedMB:        16384 * pct / 100,
		PercentUsed:   pct,
		Level:         level,
		GCCounts:      [3]uint64{12, 2, 35},
		LiveObjects:   90210,
		ResidentSetMB: 512,
	}
}

func TestRepo_MigrateIdempotent(t *testing.T) {
	repo := newTestRepo(t, "agent-1")
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestRepo_RecordAndQuerySnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "agent-1")
	other := NewRepo(repo.db, "agent-2")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordSnapshot(ctx, snapshotAt(base, 60, engine.LevelLow)))
	require.NoError(t, repo.RecordSnapshot(ctx, snapshotAt(base.Add(time.Second), 82, engine.LevelHigh)))

	forced := snapshotAt(base.Add(2*time.Second), 91, engine.LevelCritical).WithForcedLevel(engine.LevelEmergency)
	require.NoError(t, repo.RecordSnapshot(ctx, forced))
	require.NoError(t, other.RecordSnapshot(ctx, snapshotAt(base.Add(3*time.Second), 10, engine.LevelLow)))

	got, err := repo.RecentSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, engine.LevelEmergency, got[0].Level)
	assert.True(t, got[0].Synthetic)
	assert.Equal(t, 91.0, got[0].PercentUsed)
	assert.True(t, base.Add(2*time.Second).Equal(got[0].Timestamp))
	assert.Equal(t, [3]uint64{12, 2, 35}, got[0].GCCounts)
	assert.Equal(t, uint64(90210), got[0].LiveObjects)

	assert.Equal(t, engine.LevelHigh, got[1].Level)
	assert.False(t, got[1].Synthetic)

	all, err := repo.RecentSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "other agents' rows are not returned")
}

func TestRepo_RecordAndQueryRecoveries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "agent-1")
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	first := monitor.Session{
		ID:         "0d6f2a8e-first",
		StartedAt:  base,
		Duration:   1500 * time.Microsecond,
		Trigger:    snapshotAt(base, 92, engine.LevelCritical),
		FinalLevel: engine.LevelHigh,
		Improved:   true,
		Results: []engine.Result{
			{Strategy: "collect", Action: "garbage_collection", Duration: time.Millisecond,
				Details: map[string]any{"objects_reclaimed": 120}},
			{Strategy: "reduce_connection_pools", Action: "reduce_connection_pools",
				Details: map[string]any{"pools_reduced": 1},
				Errors:  []string{"replica: trim to 5: closed", "primary: panic: boom"}},
		},
	}
	second := monitor.Session{
		ID:         "7c1b9e44-second",
		StartedAt:  base.Add(time.Minute),
		Trigger:    snapshotAt(base, 40, engine.LevelLow).WithForcedLevel(engine.LevelEmergency),
		FinalLevel: engine.LevelLow,
		Improved:   true,
	}

	require.NoError(t, repo.RecordRecovery(ctx, first))
	require.NoError(t, repo.RecordRecovery(ctx, second))

	got, err := repo.RecentRecoveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "7c1b9e44-second", got[0].SessionID)
	assert.True(t, got[0].Forced)
	assert.Equal(t, engine.LevelEmergency, got[0].TriggerLevel)
	assert.Equal(t, 0, got[0].Results)

	assert.Equal(t, "0d6f2a8e-first", got[1].SessionID)
	assert.False(t, got[1].Forced)
	assert.Equal(t, engine.LevelCritical, got[1].TriggerLevel)
	assert.Equal(t, engine.LevelHigh, got[1].FinalLevel)
	assert.Equal(t, 92.0, got[1].TriggerPercent)
	assert.Equal(t, 1500*time.Microsecond, got[1].Duration)
	assert.Equal(t, 2, got[1].Results)
	assert.Equal(t, 2, got[1].Errors)

	// same session id twice violates the primary key and rolls back
	assert.Error(t, repo.RecordRecovery(ctx, first))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 10},
		{-5, 10},
		{25, 25},
		{5000, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.in))
	}
}
