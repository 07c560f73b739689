package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memguard/internal/engine"
)

// CheckAndRecover runs one recovery session for snap. It returns nil when
// pressure is LOW or when the previous session is younger than the throttle
// window. Strategies run in priority order; after each one that succeeds a
// fresh snapshot is taken and the session ends as soon as the level drops
// below the level of snap.
func (m *Monitor) CheckAndRecover(ctx context.Context, snap engine.Snapshot) []engine.Result {
	if snap.Level == engine.LevelLow {
		return nil
	}

	m.session.Lock()
	defer m.session.Unlock()

	started := m.now()
	if m.throttled(started) {
		m.logger.Debug("recovery throttled",
			zap.Stringer("pressure_level", snap.Level),
			zap.Duration("min_interval", m.minRecoveryInterval))
		return nil
	}

	m.logger.Warn("memory pressure detected",
		zap.Stringer("pressure_level", snap.Level),
		zap.Float64("percent_used", snap.PercentUsed),
		zap.Float64("available_mb", snap.AvailableMB),
		zap.Bool("forced", snap.Synthetic))

	session := Session{
		ID:         uuid.NewString(),
		StartedAt:  started,
		Trigger:    snap,
		FinalLevel: snap.Level,
	}

	for _, s := range m.Strategies() {
		if ctx.Err() != nil {
			break
		}
		log := m.logger.With(zap.String("strategy", s.Name()))

		ok, err := safeCall(ctx, m.strategyTimeout, func(ctx context.Context) (bool, error) {
			return s.CanApply(ctx, snap)
		})
		if err != nil {
			log.Warn("strategy applicability check failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		res, err := safeCall(ctx, m.strategyTimeout, func(ctx context.Context) (engine.Result, error) {
			return s.Execute(ctx, snap)
		})
		if err != nil {
			log.Error("recovery strategy failed", zap.Error(err))
			continue
		}
		if res.Strategy == "" {
			res.Strategy = s.Name()
		}
		session.Results = append(session.Results, res)
		log.Info("recovery strategy applied",
			zap.String("action", res.Action),
			zap.Duration("duration", res.Duration),
			zap.Int("errors", len(res.Errors)))

		fresh := m.TakeSnapshot(ctx)
		session.FinalLevel = fresh.Level
		if fresh.Level < snap.Level {
			log.Info("memory pressure eased",
				zap.Stringer("from", snap.Level),
				zap.Stringer("to", fresh.Level))
			break
		}
	}

	session.Improved = session.FinalLevel < snap.Level
	session.Duration = m.now().Sub(started)

	m.mu.Lock()
	m.lastRecovery = m.now()
	m.recoveries = append(m.recoveries, session.Results...)
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordRecovery(ctx, session); err != nil {
			m.logger.Warn("failed to record recovery session",
				zap.String("session", session.ID),
				zap.Error(err))
		}
	}
	return session.Results
}

// EmergencyRecover takes a fresh snapshot, forces it to EMERGENCY and runs a
// recovery session on it. The throttle still applies.
func (m *Monitor) EmergencyRecover(ctx context.Context) []engine.Result {
	snap := m.TakeSnapshot(ctx).WithForcedLevel(engine.LevelEmergency)
	return m.CheckAndRecover(ctx, snap)
}

func (m *Monitor) throttled(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRecovery.IsZero() || m.minRecoveryInterval == 0 {
		return false
	}
	return now.Sub(m.lastRecovery) < m.minRecoveryInterval
}

// safeCall runs fn with an optional timeout and turns a panic into an error.
func safeCall[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (out T, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
