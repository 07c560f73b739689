package monitor

import (
	"time"

	"go.uber.org/zap"

	"memguard/internal/engine"
)

const (
	DefaultMaxSnapshots        = 100
	DefaultMinRecoveryInterval = 30 * time.Second
	DefaultStrategyTimeout     = 30 * time.Second
	DefaultInterval            = 30 * time.Second
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithThresholds replaces the default classification thresholds.
func WithThresholds(t engine.Thresholds) Option {
	return func(m *Monitor) {
		m.thresholds = t
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder forwards every snapshot and recovery session to r.
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

// WithMaxSnapshots caps the in-memory history. On overflow the newest n/2
// snapshots are kept.
func WithMaxSnapshots(n int) Option {
	return func(m *Monitor) {
		m.maxSnapshots = n
	}
}

// WithMinRecoveryInterval sets the throttle window between two recovery
// sessions. Zero disables throttling.
func WithMinRecoveryInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.minRecoveryInterval = d
	}
}

// WithStrategyTimeout bounds the context handed to each strategy call.
// Zero disables the timeout.
func WithStrategyTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.strategyTimeout = d
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRestoreOnRelief makes the loop call r.RestoreOriginalSizes once pressure
// is back to LOW after a reduction.
func WithRestoreOnRelief(r Restorer) Option {
	return func(m *Monitor) {
		m.restorer = r
		m.restoreOnRelief = r != nil
	}
}

// withRestorer makes r available to RestorePools without restoring from the loop.
func withRestorer(r Restorer) Option {
	return func(m *Monitor) {
		m.restorer = r
	}
}
