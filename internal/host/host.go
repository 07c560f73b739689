// Package host wires a configured monitor together with its sinks.
package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"memguard/internal/collector"
	"memguard/internal/config"
	"memguard/internal/database"
	"memguard/internal/database/graph"
	"memguard/internal/database/relational"
	"memguard/internal/metrics"
	"memguard/internal/monitor"
	"memguard/internal/output"
	"memguard/internal/recovery"
)

const shutdownTimeout = 10 * time.Second

// Resources are the application handles the recovery strategies act on.
type Resources struct {
	Caches []recovery.CacheManager
	Pools  []any
}

// Host owns a monitor and everything that receives its events.
type Host struct {
	Monitor *monitor.Monitor

	cfg     *config.Config
	logger  *zap.Logger
	writer  *database.AsyncRecorder
	server  *http.Server
	addr    string
	closers []func(context.Context) error
}

// New opens the enabled sinks and builds the monitor. The loop is not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, res Resources) (*Host, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Host{cfg: cfg, logger: logger}

	stores := output.NewPipeline()
	if cfg.Storage.Enabled {
		store, err := h.openStorage(ctx)
		if err != nil {
			h.closeAll(ctx)
			return nil, err
		}
		stores.Add("duckdb", store.Repo(cfg.AgentID))
		// the store's own connection pool is trimmed under pressure too
		res.Pools = append(res.Pools, store.DB())
	}
	if cfg.Graph.Enabled {
		client, err := graph.NewNeo4jClient(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database, cfg.AgentID)
		if err != nil {
			h.closeAll(ctx)
			return nil, fmt.Errorf("connect neo4j: %w", err)
		}
		h.closers = append(h.closers, client.Close)
		stores.Add("neo4j", client)
	}

	sinks := output.NewPipeline()
	if stores.Len() > 0 {
		w, err := database.NewAsyncRecorder(stores, 0, logger)
		if err != nil {
			h.closeAll(ctx)
			return nil, err
		}
		h.writer = w
		sinks.Add("store", w)
	}
	if cfg.Metrics.Enabled {
		exporter := metrics.NewExporter()
		reg := prometheus.NewRegistry()
		reg.MustRegister(exporter, collectors.NewGoCollector())
		sinks.Add("prometheus", exporter)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		h.server = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	provider, err := collector.NewSystemCollector(cfg.Collector)
	if err != nil {
		h.closeAll(ctx)
		return nil, fmt.Errorf("create collector: %w", err)
	}

	opts := cfg.MonitorOptions()
	if sinks.Len() > 0 {
		opts = append(opts, monitor.WithRecorder(sinks))
	}
	m, err := monitor.Build(monitor.SetupConfig{
		Provider:        provider,
		Caches:          res.Caches,
		Pools:           res.Pools,
		ReductionFactor: cfg.Recovery.ReductionFactor,
		GCThresholdMB:   cfg.Thresholds.GCThresholdMB,
		RestoreOnRelief: cfg.Monitor.RestoreOnRelief,
		Logger:          logger,
		Options:         opts,
	})
	if err != nil {
		h.closeAll(ctx)
		return nil, err
	}
	h.Monitor = m

	t := m.Thresholds()
	logger.Info("monitor configured",
		zap.Float64("moderate_percent", t.ModeratePercent),
		zap.Float64("high_percent", t.HighPercent),
		zap.Float64("critical_percent", t.CriticalPercent),
		zap.Float64("emergency_percent", t.EmergencyPercent),
		zap.Uint64("gc_threshold_mb", t.GCThresholdMB),
		zap.Int("strategies", len(m.Strategies())))
	return h, nil
}

func (h *Host) openStorage(ctx context.Context) (*relational.Store, error) {
	store, err := relational.Open(h.cfg.Storage.Path,
		relational.WithThreads(h.cfg.Storage.Threads),
		relational.WithMemoryLimit(h.cfg.Storage.MemoryLimitGB),
		relational.WithMaxConns(h.cfg.Storage.MaxConns),
	)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	h.closers = append(h.closers, func(context.Context) error { return store.Close() })

	if err := store.Repo(h.cfg.AgentID).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate duckdb: %w", err)
	}
	h.logger.Info("snapshot store ready",
		zap.String("path", store.Path()),
		zap.Bool("in_memory", store.InMemory()))
	return store, nil
}

// Start launches the writer, the metrics endpoint and the monitoring loop.
func (h *Host) Start(ctx context.Context) error {
	if h.writer != nil {
		if err := h.writer.Start(ctx); err != nil {
			return err
		}
	}
	if h.server != nil {
		ln, err := net.Listen("tcp", h.server.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
		}
		h.addr = ln.Addr().String()
		h.logger.Info("serving metrics", zap.String("addr", h.addr))
		go func() {
			if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				h.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}
	h.Monitor.Start(ctx, h.cfg.Monitor.Interval)
	return nil
}

// MetricsAddr is the address the metrics endpoint listens on once started.
func (h *Host) MetricsAddr() string {
	return h.addr
}

// StartWriter starts only the event writer, for one-shot commands.
func (h *Host) StartWriter(ctx context.Context) error {
	if h.writer == nil {
		return nil
	}
	return h.writer.Start(ctx)
}

// Drill runs one forced EMERGENCY session and reports what it did.
func (h *Host) Drill(ctx context.Context) output.Report {
	results := h.Monitor.EmergencyRecover(ctx)
	if len(results) == 0 {
		h.logger.Warn("drill ran no strategies")
	}
	return output.BuildReport(h.Monitor.Status(ctx), results)
}

// Shutdown stops the loop, puts reduced pools back, flushes queued events and
// closes the sinks.
func (h *Host) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if h.Monitor != nil {
		h.Monitor.Stop()
		if err := h.Monitor.RestorePools(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if h.server != nil {
		if err := h.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if h.writer != nil {
		h.writer.Stop()
		if n := h.writer.Dropped(); n > 0 {
			h.logger.Warn("monitor events dropped", zap.Uint64("count", n))
		}
	}
	errs = append(errs, h.closeAll(ctx)...)
	return errors.Join(errs...)
}

func (h *Host) closeAll(ctx context.Context) []error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errs
}
