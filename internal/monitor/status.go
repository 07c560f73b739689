package monitor

import (
	"context"
	"time"
)

// Status is the current memory picture reported to operators.
type Status struct {
	PercentUsed   float64 `json:"percent_used"`
	PressureLevel string  `json:"pressure_level"`
	AvailableMB   float64 `json:"available_mb"`
	ProcessRSSMB  float64 `json:"process_rss_mb"`
	LiveObjects   uint64  `json:"live_objects"`
	RecoveryCount int     `json:"recovery_count"`
	LastRecovery  string  `json:"last_recovery,omitempty"`
}

// Status reports the latest snapshot, taking one first if none exists yet.
func (m *Monitor) Status(ctx context.Context) Status {
	snap, ok := m.latest()
	if !ok {
		snap = m.TakeSnapshot(ctx)
	}

	m.mu.Lock()
	count := len(m.recoveries)
	last := m.lastRecovery
	m.mu.Unlock()

	st := Status{
		PercentUsed:   snap.PercentUsed,
		PressureLevel: snap.Level.String(),
		AvailableMB:   snap.AvailableMB,
		ProcessRSSMB:  snap.ResidentSetMB,
		LiveObjects:   snap.LiveObjects,
		RecoveryCount: count,
	}
	if !last.IsZero() {
		st.LastRecovery = last.Format(time.RFC3339)
	}
	return st
}
