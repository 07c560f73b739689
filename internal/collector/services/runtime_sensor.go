package services

import (
	"context"
	"runtime"
	"time"
)

type RuntimeResult struct {
	NumGC       uint32        `json:"num_gc"`
	NumForcedGC uint32        `json:"num_forced_gc"`
	PauseTotal  time.Duration `json:"pause_total"`
	HeapObjects uint64        `json:"heap_objects"`
}

// RuntimeSensor reads the Go runtime's collector counters and live object count.
type RuntimeSensor struct{}

func NewRuntimeSensor() *RuntimeSensor {
	return &RuntimeSensor{}
}

func (s *RuntimeSensor) Name() string {
	return "Runtime"
}

func (s *RuntimeSensor) Collect(ctx context.Context) (any, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeResult{
		NumGC:       m.NumGC,
		NumForcedGC: m.NumForcedGC,
		PauseTotal:  time.Duration(m.PauseTotalNs),
		HeapObjects: m.HeapObjects,
	}, nil
}
