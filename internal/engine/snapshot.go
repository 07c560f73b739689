package engine

import (
	"time"

	"memguard/internal/collector"
)

const bytesPerMB = 1024 * 1024

// Snapshot is a point-in-time memory measurement plus its derived pressure level.
// Snapshots are values: every holder owns its own copy.
type Snapshot struct {
	Timestamp       time.Time `json:"timestamp"`
	TotalMB         float64   `json:"total_mb"`
	AvailableMB     float64   `json:"available_mb"`
	UsedMB          float64   `json:"used_mb"`
	PercentUsed     float64   `json:"percent_used"`
	Level           Level     `json:"pressure_level"`
	GCCounts        [3]uint64 `json:"gc_counts"` // completed cycles, forced cycles, total pause ms
	LiveObjects     uint64    `json:"live_objects"`
	ResidentSetMB   float64   `json:"rss_mb"`
	VirtualMemoryMB float64   `json:"vms_mb"`

	// Synthetic is set on snapshots whose level was forced rather than measured.
	Synthetic bool `json:"synthetic,omitempty"`
}

// NewSnapshot classifies a raw reading and builds the snapshot for it.
func NewSnapshot(r collector.Reading, t Thresholds, at time.Time) Snapshot {
	return Snapshot{
		Timestamp:   at,
		TotalMB:     toMB(r.TotalBytes),
		AvailableMB: toMB(r.AvailableBytes),
		UsedMB:      toMB(r.UsedBytes),
		PercentUsed: r.UsedPercent,
		Level:       Classify(r.UsedPercent, t),
		GCCounts: [3]uint64{
			uint64(r.GCCycles),
			uint64(r.ForcedGCCycles),
			uint64(r.GCPauseTotal.Milliseconds()),
		},
		LiveObjects:     r.HeapObjects,
		ResidentSetMB:   toMB(r.RSSBytes),
		VirtualMemoryMB: toMB(r.VMSBytes),
	}
}

// WithForcedLevel returns a synthetic copy of s whose level is forced to level.
// The receiver is left untouched.
func (s Snapshot) WithForcedLevel(level Level) Snapshot {
	forced := s
	forced.Level = level
	forced.Synthetic = true
	return forced
}

func toMB(b uint64) float64 {
	return float64(b) / bytesPerMB
}
