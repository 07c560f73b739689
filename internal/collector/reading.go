package collector

import (
	"time"

	"github.com/pbnjay/memory"
)

// Reading is the raw output of one metrics sample.
type Reading struct {
	// System memory
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	UsedPercent    float64 // 0-100

	// Process memory
	RSSBytes uint64
	VMSBytes uint64

	// Go runtime collector counters
	GCCycles       uint32
	ForcedGCCycles uint32
	GCPauseTotal   time.Duration
	HeapObjects    uint64
}

// FallbackReading returns the conservative values used when measurement fails.
// Usage is reported as 0% so that missing data never triggers recovery.
func FallbackReading() Reading {
	total := memory.TotalMemory()
	return Reading{
		TotalBytes:     total,
		AvailableBytes: total,
	}
}
