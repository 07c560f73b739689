package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()

	assert.Equal(t, 70.0, th.ModeratePercent)
	assert.Equal(t, 80.0, th.HighPercent)
	assert.Equal(t, 90.0, th.CriticalPercent)
	assert.Equal(t, 95.0, th.EmergencyPercent)
	assert.Equal(t, uint64(100), th.GCThresholdMB)
	assert.NoError(t, th.Validate())
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name      string
		th        Thresholds
		wantField string
	}{
		{
			name:      "zero moderate",
			th:        Thresholds{ModeratePercent: 0, HighPercent: 80, CriticalPercent: 90, EmergencyPercent: 95},
			wantField: "ModeratePercent",
		},
		{
			name:      "high not above moderate",
			th:        Thresholds{ModeratePercent: 80, HighPercent: 80, CriticalPercent: 90, EmergencyPercent: 95},
			wantField: "HighPercent",
		},
		{
			name:      "critical below high",
			th:        Thresholds{ModeratePercent: 70, HighPercent: 80, CriticalPercent: 75, EmergencyPercent: 95},
			wantField: "CriticalPercent",
		},
		{
			name:      "emergency below critical",
			th:        Thresholds{ModeratePercent: 70, HighPercent: 80, CriticalPercent: 90, EmergencyPercent: 85},
			wantField: "EmergencyPercent",
		},
		{
			name:      "emergency above 100",
			th:        Thresholds{ModeratePercent: 70, HighPercent: 80, CriticalPercent: 90, EmergencyPercent: 101},
			wantField: "EmergencyPercent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			require.Error(t, err)

			var thErr *ThresholdError
			require.ErrorAs(t, err, &thErr)
			assert.Equal(t, tt.wantField, thErr.Field)
		})
	}
}

func TestThresholdError(t *testing.T) {
	err := &ThresholdError{Field: "HighPercent", Message: "must be greater than ModeratePercent"}
	assert.Equal(t, "threshold error: HighPercent must be greater than ModeratePercent", err.Error())
}

func TestLevel_StringAndParse(t *testing.T) {
	for _, l := range []Level{LevelLow, LevelModerate, LevelHigh, LevelCritical, LevelEmergency} {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}

	parsed, err := ParseLevel(" critical ")
	require.NoError(t, err)
	assert.Equal(t, LevelCritical, parsed)

	_, err = ParseLevel("meltdown")
	assert.Error(t, err)

	assert.Equal(t, "Level(9)", Level(9).String())
}

func TestLevel_Ordering(t *testing.T) {
	assert.True(t, LevelLow < LevelModerate)
	assert.True(t, LevelModerate < LevelHigh)
	assert.True(t, LevelHigh < LevelCritical)
	assert.True(t, LevelCritical < LevelEmergency)
	assert.True(t, LevelCritical.AtLeast(LevelHigh))
	assert.False(t, LevelModerate.AtLeast(LevelHigh))
}

func TestLevel_JSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Level Level `json:"level"`
	}{Level: LevelHigh})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"HIGH"}`, string(payload))

	var decoded struct {
		Level Level `json:"level"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"level":"EMERGENCY"}`), &decoded))
	assert.Equal(t, LevelEmergency, decoded.Level)
}
