package engine

import (
	"context"
	"time"
)

// Strategy is a pressure relief action the monitor can run.
// Lower Priority values run earlier.
type Strategy interface {
	Name() string
	Priority() int
	CanApply(ctx context.Context, snap Snapshot) (bool, error)
	Execute(ctx context.Context, snap Snapshot) (Result, error)
}

// Result describes one successful strategy execution.
type Result struct {
	Strategy string         `json:"strategy"`
	Action   string         `json:"action"`
	Duration time.Duration  `json:"duration"`
	Details  map[string]any `json:"details,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
}
