// Package monitor samples memory, keeps a bounded snapshot history and runs
// recovery strategies when pressure rises.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"memguard/internal/collector"
	"memguard/internal/engine"
)

// Monitor owns the strategy list, the snapshot history and the background loop.
type Monitor struct {
	provider            collector.MetricsProvider
	thresholds          engine.Thresholds
	logger              *zap.Logger
	recorder            Recorder
	restorer            Restorer
	restoreOnRelief     bool
	maxSnapshots        int
	minRecoveryInterval time.Duration
	strategyTimeout     time.Duration
	now                 func() time.Time

	mu           sync.Mutex
	strategies   []engine.Strategy
	history      []engine.Snapshot
	recoveries   []engine.Result
	lastRecovery time.Time
	running      bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	// session serializes recovery sessions so strategies never overlap.
	session sync.Mutex
}

// New builds a Monitor around provider. Thresholds are validated here.
func New(provider collector.MetricsProvider, opts ...Option) (*Monitor, error) {
	if provider == nil {
		return nil, errors.New("metrics provider is required")
	}

	m := &Monitor{
		provider:            provider,
		thresholds:          engine.DefaultThresholds(),
		logger:              zap.NewNop(),
		maxSnapshots:        DefaultMaxSnapshots,
		minRecoveryInterval: DefaultMinRecoveryInterval,
		strategyTimeout:     DefaultStrategyTimeout,
		now:                 time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if err := m.thresholds.Validate(); err != nil {
		return nil, err
	}
	if m.maxSnapshots < 2 {
		return nil, fmt.Errorf("max snapshots must be at least 2, got %d", m.maxSnapshots)
	}
	if m.minRecoveryInterval < 0 {
		return nil, fmt.Errorf("min recovery interval must not be negative, got %s", m.minRecoveryInterval)
	}
	if m.strategyTimeout < 0 {
		return nil, fmt.Errorf("strategy timeout must not be negative, got %s", m.strategyTimeout)
	}

	m.logger = m.logger.With(zap.String("module", "memguard"))
	return m, nil
}

// Register adds a strategy and keeps the list ordered by ascending priority.
// Strategies with equal priority keep their registration order.
func (m *Monitor) Register(s engine.Strategy) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.strategies = append(m.strategies, s)
	sort.SliceStable(m.strategies, func(i, j int) bool {
		return m.strategies[i].Priority() < m.strategies[j].Priority()
	})
	m.logger.Debug("registered recovery strategy",
		zap.String("strategy", s.Name()),
		zap.Int("priority", s.Priority()))
}

// Strategies returns a copy of the registered strategies in execution order.
func (m *Monitor) Strategies() []engine.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Strategy, len(m.strategies))
	copy(out, m.strategies)
	return out
}

// Thresholds returns the classification thresholds in use.
func (m *Monitor) Thresholds() engine.Thresholds {
	return m.thresholds
}

// TakeSnapshot samples the provider, classifies the reading and appends the
// result to the history. A failing provider degrades to fallback values.
func (m *Monitor) TakeSnapshot(ctx context.Context) engine.Snapshot {
	reading, err := m.provider.Sample(ctx)
	if err != nil {
		m.logger.Warn("memory sample degraded", zap.Error(err))
		if reading == (collector.Reading{}) {
			reading = collector.FallbackReading()
		}
	}

	snap := engine.NewSnapshot(reading, m.thresholds, m.now())
	m.appendHistory(snap)

	if m.recorder != nil {
		if err := m.recorder.RecordSnapshot(ctx, snap); err != nil {
			m.logger.Warn("failed to record snapshot", zap.Error(err))
		}
	}
	return snap
}

func (m *Monitor) appendHistory(snap engine.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, snap)
	if len(m.history) > m.maxSnapshots {
		keep := m.maxSnapshots / 2
		trimmed := make([]engine.Snapshot, keep)
		copy(trimmed, m.history[len(m.history)-keep:])
		m.history = trimmed
	}
}

// History returns a copy of the stored snapshots, oldest first.
func (m *Monitor) History() []engine.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Snapshot, len(m.history))
	copy(out, m.history)
	return out
}

// Recoveries returns every strategy result produced so far.
func (m *Monitor) Recoveries() []engine.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Result, len(m.recoveries))
	copy(out, m.recoveries)
	return out
}

func (m *Monitor) latest() (engine.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return engine.Snapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// Start launches the monitoring loop. Calling Start on a running monitor is a
// no-op. A non-positive interval falls back to DefaultInterval.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("memory monitoring started", zap.Duration("interval", interval))
	go m.loop(ctx, interval)
}

// Stop cancels the loop and waits for it to exit. A strategy that is already
// executing finishes first. Stop is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("memory monitoring stopped")
}

// IsRunning reports whether the loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one loop iteration. A panic is logged and the loop carries on.
func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("monitoring iteration failed", zap.Any("panic", r))
		}
	}()
	if ctx.Err() != nil {
		return
	}

	snap := m.TakeSnapshot(ctx)
	m.CheckAndRecover(ctx, snap)

	if m.restoreOnRelief && snap.Level == engine.LevelLow {
		if err := m.RestorePools(ctx); err != nil {
			m.logger.Warn("failed to restore connection pools", zap.Error(err))
		}
	}
}

// RestorePools puts reduced connection pools back to their original size.
// It does nothing when no pool is currently reduced.
func (m *Monitor) RestorePools(ctx context.Context) error {
	if m.restorer == nil || !m.restorer.Reduced() {
		return nil
	}
	if err := m.restorer.RestoreOriginalSizes(ctx); err != nil {
		return fmt.Errorf("restore connection pools: %w", err)
	}
	m.logger.Info("connection pools restored")
	return nil
}
