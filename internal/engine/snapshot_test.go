package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"memguard/internal/collector"
)

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reading := collector.Reading{
		TotalBytes:     16 * 1024 * bytesPerMB,
		AvailableBytes: 2 * 1024 * bytesPerMB,
		UsedBytes:      14 * 1024 * bytesPerMB,
		UsedPercent:    87.5,
		RSSBytes:       512 * bytesPerMB,
		VMSBytes:       2048 * bytesPerMB,
		GCCycles:       42,
		ForcedGCCycles: 3,
		GCPauseTotal:   1500 * time.Millisecond,
		HeapObjects:    123456,
	}

	snap := NewSnapshot(reading, DefaultThresholds(), at)

	assert.Equal(t, at, snap.Timestamp)
	assert.Equal(t, 16384.0, snap.TotalMB)
	assert.Equal(t, 2048.0, snap.AvailableMB)
	assert.Equal(t, 14336.0, snap.UsedMB)
	assert.Equal(t, 87.5, snap.PercentUsed)
	assert.Equal(t, LevelHigh, snap.Level)
	assert.Equal(t, [3]uint64{42, 3, 1500}, snap.GCCounts)
	assert.Equal(t, uint64(123456), snap.LiveObjects)
	assert.Equal(t, 512.0, snap.ResidentSetMB)
	assert.Equal(t, 2048.0, snap.VirtualMemoryMB)
	assert.False(t, snap.Synthetic)
}

func TestSnapshot_WithForcedLevel(t *testing.T) {
	snap := NewSnapshot(collector.Reading{UsedPercent: 10}, DefaultThresholds(), time.Now())
	forced := snap.WithForcedLevel(LevelEmergency)

	assert.Equal(t, LevelEmergency, forced.Level)
	assert.True(t, forced.Synthetic)
	assert.Equal(t, snap.PercentUsed, forced.PercentUsed)

	// The measured snapshot keeps its own level.
	assert.Equal(t, LevelLow, snap.Level)
	assert.False(t, snap.Synthetic)
}
