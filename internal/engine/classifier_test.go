package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		percentUsed float64
		expected    Level
	}{
		{name: "Low", percentUsed: 60, expected: LevelLow},
		{name: "Moderate", percentUsed: 75, expected: LevelModerate},
		{name: "High", percentUsed: 82, expected: LevelHigh},
		{name: "Critical", percentUsed: 91, expected: LevelCritical},
		{name: "Emergency", percentUsed: 96, expected: LevelEmergency},
		{name: "Zero", percentUsed: 0, expected: LevelLow},
		{name: "Full", percentUsed: 100, expected: LevelEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.percentUsed, DefaultThresholds()))
		})
	}
}

func TestClassify_InclusiveBoundaries(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, LevelModerate, Classify(th.ModeratePercent, th))
	assert.Equal(t, LevelHigh, Classify(th.HighPercent, th))
	assert.Equal(t, LevelCritical, Classify(th.CriticalPercent, th))
	assert.Equal(t, LevelEmergency, Classify(th.EmergencyPercent, th))

	assert.Equal(t, LevelModerate, Classify(th.HighPercent-0.001, th))
}

func TestClassify_Monotonic(t *testing.T) {
	thresholds := []Thresholds{
		DefaultThresholds(),
		{ModeratePercent: 10, HighPercent: 20, CriticalPercent: 30, EmergencyPercent: 40},
		{ModeratePercent: 50, HighPercent: 50.5, CriticalPercent: 51, EmergencyPercent: 99.9},
	}

	for _, th := range thresholds {
		prev := LevelLow
		for p := 0.0; p <= 100.0; p += 0.25 {
			got := Classify(p, th)
			if got < prev {
				t.Fatalf("Classify not monotonic for %+v: %.2f%% -> %s after %s", th, p, got, prev)
			}
			prev = got
		}
		assert.Equal(t, LevelEmergency, prev)
	}
}
