package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"memguard/internal/collector"
	"memguard/internal/engine"
	"memguard/internal/recovery"
)

// ErrDefaultInitialized is returned by InitDefault after the first call.
var ErrDefaultInitialized = errors.New("default monitor already initialized")

// ErrNoDefault is returned by EmergencyRecovery before InitDefault has run.
var ErrNoDefault = errors.New("default monitor not initialized")

// SetupConfig describes a monitor wired with the standard strategies.
type SetupConfig struct {
	// Provider defaults to a SystemCollector for the current process.
	Provider        collector.MetricsProvider
	Caches          []recovery.CacheManager
	Pools           []any
	ReductionFactor float64
	// GCThresholdMB gates the plain collection pass on live heap size; 0 disables.
	GCThresholdMB   uint64
	Interval        time.Duration
	RestoreOnRelief bool
	Logger          *zap.Logger
	Options         []Option
}

// Setup builds a Monitor with Build and starts the loop.
func Setup(ctx context.Context, cfg SetupConfig) (*Monitor, error) {
	m, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	m.Start(ctx, cfg.Interval)
	return m, nil
}

// Build creates a Monitor with recovery.Standard registered, without starting
// the loop.
func Build(cfg SetupConfig) (*Monitor, error) {
	provider := cfg.Provider
	if provider == nil {
		sc, err := collector.NewSystemCollector(collector.DefaultCollectorConfig())
		if err != nil {
			return nil, fmt.Errorf("create system collector: %w", err)
		}
		provider = sc
	}

	opts := append([]Option{WithLogger(cfg.Logger)}, cfg.Options...)
	strategies, reducer, err := recovery.Standard(cfg.Caches, cfg.Pools, cfg.ReductionFactor, cfg.GCThresholdMB, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.RestoreOnRelief {
		opts = append(opts, WithRestoreOnRelief(reducer))
	} else {
		opts = append(opts, withRestorer(reducer))
	}

	m, err := New(provider, opts...)
	if err != nil {
		return nil, err
	}
	for _, s := range strategies {
		m.Register(s)
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMonitor atomic.Pointer[Monitor]
	defaultErr     error
)

// InitDefault sets up the process-wide default monitor. Only the first call
// has any effect; later calls return ErrDefaultInitialized.
func InitDefault(ctx context.Context, cfg SetupConfig) (*Monitor, error) {
	called := false
	defaultOnce.Do(func() {
		called = true
		var m *Monitor
		m, defaultErr = Setup(ctx, cfg)
		if defaultErr == nil {
			defaultMonitor.Store(m)
		}
	})
	if !called {
		return Default(), ErrDefaultInitialized
	}
	return Default(), defaultErr
}

// Default returns the default monitor, or nil before InitDefault.
func Default() *Monitor {
	return defaultMonitor.Load()
}

// EmergencyRecovery runs the forced EMERGENCY session on the default monitor.
func EmergencyRecovery(ctx context.Context) ([]engine.Result, error) {
	m := Default()
	if m == nil {
		return nil, ErrNoDefault
	}
	return m.EmergencyRecover(ctx), nil
}
