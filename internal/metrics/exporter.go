// Package metrics exposes memguard state to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

const namespace = "memguard"

var _ monitor.Recorder = (*Exporter)(nil)

// Exporter is both a monitor.Recorder and a prometheus.Collector. Gauges
// reflect the latest snapshot it was given; counters accumulate sessions.
type Exporter struct {
	mu     sync.Mutex
	latest engine.Snapshot
	seen   bool

	percentUsed *prometheus.Desc
	availableMB *prometheus.Desc
	level       *prometheus.Desc
	rssMB       *prometheus.Desc
	liveObjects *prometheus.Desc

	sessions       *prometheus.CounterVec
	results        *prometheus.CounterVec
	strategyErrors *prometheus.CounterVec
}

func NewExporter() *Exporter {
	return &Exporter{
		percentUsed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "percent_used"),
			"System memory in use, in percent",
			nil, nil,
		),
		availableMB: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "memory", "available_mb"),
			"System memory available, in MB",
			nil, nil,
		),
		level: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "pressure_level"),
			"Pressure level of the latest snapshot (0=LOW .. 4=EMERGENCY)",
			nil, nil,
		),
		rssMB: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "process", "rss_mb"),
			"Resident set size of the monitored process, in MB",
			nil, nil,
		),
		liveObjects: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "runtime", "live_objects"),
			"Live heap objects reported by the Go runtime",
			nil, nil,
		),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_sessions_total",
			Help:      "Recovery sessions run, by trigger level and outcome",
		}, []string{"trigger_level", "improved"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_results_total",
			Help:      "Strategy executions that produced a result",
		}, []string{"strategy"}),
		strategyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_errors_total",
			Help:      "Per-handle errors reported inside strategy results",
		}, []string{"strategy"}),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.percentUsed
	ch <- e.availableMB
	ch <- e.level
	ch <- e.rssMB
	ch <- e.liveObjects
	e.sessions.Describe(ch)
	e.results.Describe(ch)
	e.strategyErrors.Describe(ch)
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.Lock()
	snap, seen := e.latest, e.seen
	e.mu.Unlock()

	if seen {
		ch <- prometheus.MustNewConstMetric(e.percentUsed, prometheus.GaugeValue, snap.PercentUsed)
		ch <- prometheus.MustNewConstMetric(e.availableMB, prometheus.GaugeValue, snap.AvailableMB)
		ch <- prometheus.MustNewConstMetric(e.level, prometheus.GaugeValue, float64(snap.Level))
		ch <- prometheus.MustNewConstMetric(e.rssMB, prometheus.GaugeValue, snap.ResidentSetMB)
		ch <- prometheus.MustNewConstMetric(e.liveObjects, prometheus.GaugeValue, float64(snap.LiveObjects))
	}
	e.sessions.Collect(ch)
	e.results.Collect(ch)
	e.strategyErrors.Collect(ch)
}

// RecordSnapshot updates the gauges. Synthetic snapshots are ignored so a
// forced EMERGENCY never shows up as measured pressure.
func (e *Exporter) RecordSnapshot(ctx context.Context, snap engine.Snapshot) error {
	if snap.Synthetic {
		return nil
	}
	e.mu.Lock()
	e.latest = snap
	e.seen = true
	e.mu.Unlock()
	return nil
}

func (e *Exporter) RecordRecovery(ctx context.Context, s monitor.Session) error {
	e.sessions.WithLabelValues(s.Trigger.Level.String(), strconv.FormatBool(s.Improved)).Inc()
	for _, res := range s.Results {
		e.results.WithLabelValues(res.Strategy).Inc()
		if n := len(res.Errors); n > 0 {
			e.strategyErrors.WithLabelValues(res.Strategy).Add(float64(n))
		}
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
