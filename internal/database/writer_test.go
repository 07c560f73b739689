package database_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memguard/internal/collector"
	"memguard/internal/database"
	"memguard/internal/database/relational"
	"memguard/internal/engine"
	"memguard/internal/monitor"
)

type blockingRecorder struct {
	mu       sync.Mutex
	release  chan struct{}
	entered  chan struct{}
	snaps    []engine.Snapshot
	sessions []string
	fail     bool
}

func (r *blockingRecorder) RecordSnapshot(ctx context.Context, s engine.Snapshot) error {
	if r.release != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *blockingRecorder) RecordRecovery(ctx context.Context, s monitor.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s.ID)
	return nil
}

func (r *blockingRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps), len(r.sessions)
}

func TestNewAsyncRecorder_RequiresDownstream(t *testing.T) {
	_, err := database.NewAsyncRecorder(nil, 0, nil)
	assert.Error(t, err)
}

func TestAsyncRecorder_DeliversInOrder(t *testing.T) {
	next := &blockingRecorder{}
	w, err := database.NewAsyncRecorder(next, 16, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start is rejected")

	for i := 1; i <= 3; i++ {
		require.NoError(t, w.RecordSnapshot(context.Background(), engine.Snapshot{PercentUsed: float64(i)}))
	}
	require.NoError(t, w.RecordRecovery(context.Background(), monitor.Session{ID: "s-1"}))

	assert.Eventually(t, func() bool {
		snaps, sessions := next.counts()
		return snaps == 3 && sessions == 1
	}, time.Second, 5*time.Millisecond)
	w.Stop()

	assert.Equal(t, 1.0, next.snaps[0].PercentUsed)
	assert.Equal(t, 3.0, next.snaps[2].PercentUsed)
	assert.Equal(t, []string{"s-1"}, next.sessions)
}

func TestAsyncRecorder_DoesNotBlockCaller(t *testing.T) {
	next := &blockingRecorder{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	w, err := database.NewAsyncRecorder(next, 2, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	// the loop holds the first event inside the stalled sink
	require.NoError(t, w.RecordSnapshot(context.Background(), engine.Snapshot{}))
	select {
	case <-next.entered:
	case <-time.After(time.Second):
		t.Fatal("writer never reached the sink")
	}

	require.NoError(t, w.RecordSnapshot(context.Background(), engine.Snapshot{}))
	require.NoError(t, w.RecordSnapshot(context.Background(), engine.Snapshot{}))

	err = w.RecordSnapshot(context.Background(), engine.Snapshot{})
	assert.ErrorIs(t, err, database.ErrQueueFull)
	assert.Equal(t, uint64(1), w.Dropped())

	close(next.release)
	w.Stop()
	snaps, _ := next.counts()
	assert.Equal(t, 3, snaps)
}

func TestAsyncRecorder_StopDrainsQueue(t *testing.T) {
	next := &blockingRecorder{fail: true}
	w, err := database.NewAsyncRecorder(next, 8, nil)
	require.NoError(t, err)

	// queued before Start; Stop without Start still flushes
	for i := 0; i < 5; i++ {
		require.NoError(t, w.RecordSnapshot(context.Background(), engine.Snapshot{}))
	}
	w.Stop()

	snaps, _ := next.counts()
	assert.Equal(t, 5, snaps, "failed writes are logged, not retried")
}

func TestAsyncRecorder_PersistsMonitorEventsToDuckDB(t *testing.T) {
	store, err := relational.OpenInMemory()
	if err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	repo := store.Repo("integration")
	require.NoError(t, repo.Migrate(ctx))

	w, err := database.NewAsyncRecorder(repo, 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	provider := staticProvider{percent: 91}
	m, err := monitor.New(provider, monitor.WithRecorder(w))
	require.NoError(t, err)
	m.Register(namedStrategy("collect"))

	snap := m.TakeSnapshot(ctx)
	require.Equal(t, engine.LevelCritical, snap.Level)
	results := m.CheckAndRecover(ctx, snap)
	require.Len(t, results, 1)

	w.Stop()

	stored, err := repo.RecentSnapshots(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 2, "trigger snapshot plus the one after the strategy")

	sessions, err := repo.RecentRecoveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, engine.LevelCritical, sessions[0].TriggerLevel)
	assert.Equal(t, 1, sessions[0].Results)
	assert.False(t, sessions[0].Improved)
}

type staticProvider struct {
	percent float64
}

func (p staticProvider) Sample(ctx context.Context) (collector.Reading, error) {
	const total = 8 << 30
	return collector.Reading{
		TotalBytes:     total,
		UsedBytes:      uint64(total * p.percent / 100),
		AvailableBytes: uint64(total * (100 - p.percent) / 100),
		UsedPercent:    p.percent,
	}, nil
}

type namedStrategy string

func (s namedStrategy) Name() string  { return string(s) }
func (s namedStrategy) Priority() int { return 0 }
func (s namedStrategy) CanApply(ctx context.Context, snap engine.Snapshot) (bool, error) {
	return true, nil
}
func (s namedStrategy) Execute(ctx context.Context, snap engine.Snapshot) (engine.Result, error) {
	return engine.Result{Strategy: string(s), Action: "noop"}, nil
}
