package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

func TestExporter_Gauges(t *testing.T) {
	e := NewExporter()
	assert.Equal(t, 0, testutil.CollectAndCount(e, "memguard_memory_percent_used"))

	require.NoError(t, e.RecordSnapshot(context.Background(), engine.Snapshot{
		PercentUsed:   83.5,
		AvailableMB:   2048,
		Level:         engine.LevelHigh,
		ResidentSetMB: 640,
		LiveObjects:   1234,
	}))

	expected := `
# HELP memguard_memory_percent_used System memory in use, in percent
# TYPE memguard_memory_percent_used gauge
memguard_memory_percent_used 83.5
# HELP memguard_pressure_level Pressure level of the latest snapshot (0=LOW .. 4=EMERGENCY)
# TYPE memguard_pressure_level gauge
memguard_pressure_level 2
`
	assert.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected),
		"memguard_memory_percent_used", "memguard_pressure_level"))

	// forced snapshots leave the gauges alone
	require.NoError(t, e.RecordSnapshot(context.Background(),
		engine.Snapshot{PercentUsed: 10}.WithForcedLevel(engine.LevelEmergency)))
	assert.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected),
		"memguard_memory_percent_used", "memguard_pressure_level"))
}

func TestExporter_Counters(t *testing.T) {
	e := NewExporter()
	session := monitor.Session{
		Trigger:  engine.Snapshot{Level: engine.LevelCritical},
		Improved: true,
		Results: []engine.Result{
			{Strategy: "collect"},
			{Strategy: "reduce_connection_pools", Errors: []string{"a: x", "b: y"}},
		},
	}
	require.NoError(t, e.RecordRecovery(context.Background(), session))
	require.NoError(t, e.RecordRecovery(context.Background(), session))

	assert.Equal(t, 2.0, testutil.ToFloat64(e.sessions.WithLabelValues("CRITICAL", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.results.WithLabelValues("collect")))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.strategyErrors.WithLabelValues("reduce_connection_pools")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.strategyErrors.WithLabelValues("collect")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter()
	require.NoError(t, reg.Register(e))
	require.NoError(t, e.RecordSnapshot(context.Background(), engine.Snapshot{PercentUsed: 50}))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "memguard_memory_percent_used 50")
}
