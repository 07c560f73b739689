package services

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

type ProcessResult struct {
	RSS uint64 `json:"rss"`
	VMS uint64 `json:"vms"`
}

// ProcessSensor measures the resident and virtual memory of one process,
// by default the current one.
type ProcessSensor struct {
	pid int32
}

func NewProcessSensor() *ProcessSensor {
	return &ProcessSensor{pid: int32(os.Getpid())}
}

// NewProcessSensorForPID measures another process, e.g. a supervised child.
func NewProcessSensorForPID(pid int32) *ProcessSensor {
	return &ProcessSensor{pid: pid}
}

func (s *ProcessSensor) Name() string {
	return "Process"
}

func (s *ProcessSensor) Collect(ctx context.Context) (any, error) {
	p, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", s.pid, err)
	}

	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info for %d: %w", s.pid, err)
	}

	return ProcessResult{
		RSS: info.RSS,
		VMS: info.VMS,
	}, nil
}
