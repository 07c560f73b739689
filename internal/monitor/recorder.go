package monitor

import (
	"context"
	"time"

	"memguard/internal/engine"
)

// Recorder receives every snapshot the monitor takes and every recovery
// session it runs. Implementations must not block for long; errors are logged
// and never affect recovery.
type Recorder interface {
	RecordSnapshot(ctx context.Context, snap engine.Snapshot) error
	RecordRecovery(ctx context.Context, session Session) error
}

// Restorer undoes a pool reduction once pressure has eased.
type Restorer interface {
	Reduced() bool
	RestoreOriginalSizes(ctx context.Context) error
}

// Session is one pass through the strategy list.
type Session struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Trigger    engine.Snapshot `json:"trigger"`
	Results    []engine.Result `json:"results"`
	FinalLevel engine.Level    `json:"final_level"`
	Improved   bool            `json:"improved"`
}

// Forced reports whether the session was started by the emergency path.
func (s Session) Forced() bool {
	return s.Trigger.Synthetic
}
