package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"memguard/internal/collector/services"
)

// ============================================================================
// INTERFACE DEFINITION
// ============================================================================

// MetricsProvider defines the contract for any memory metrics source.
// Sample must always return a usable Reading: when part of the measurement
// fails, the affected fields hold FallbackReading values and the error
// describes what degraded.
type MetricsProvider interface {
	Sample(ctx context.Context) (Reading, error)
}

// ============================================================================
// CONCRETE IMPLEMENTATION
// ============================================================================

type SystemCollector struct {
	config        CollectorConfig
	memSensor     services.Sensor
	processSensor services.Sensor
	runtimeSensor services.Sensor
}

// NewSystemCollector builds a collector from cfg. A zero-value config is
// replaced by DefaultCollectorConfig().
func NewSystemCollector(cfg CollectorConfig) (*SystemCollector, error) {
	if cfg == (CollectorConfig{}) {
		cfg = DefaultCollectorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	processSensor := services.NewProcessSensor()
	if cfg.PID > 0 {
		processSensor = services.NewProcessSensorForPID(cfg.PID)
	}

	return &SystemCollector{
		config:        cfg,
		memSensor:     services.NewMemSensor(),
		processSensor: processSensor,
		runtimeSensor: services.NewRuntimeSensor(),
	}, nil
}

// Internal result types for concurrency
type memResult struct {
	stats services.MemResult
	err   error
}

type processResult struct {
	stats services.ProcessResult
	err   error
}

type runtimeResult struct {
	stats services.RuntimeResult
	err   error
}

// Sample collects system, process and runtime memory concurrently.
func (s *SystemCollector) Sample(ctx context.Context) (Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SampleTimeout)
	defer cancel()

	memCh := make(chan memResult, 1)
	processCh := make(chan processResult, 1)
	runtimeCh := make(chan runtimeResult, 1)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		res, err := s.memSensor.Collect(ctx)
		if err != nil {
			memCh <- memResult{err: err}
			return
		}
		memCh <- memResult{stats: res.(services.MemResult)}
	}()

	go func() {
		defer wg.Done()
		if !s.config.EnableProcessMetrics {
			processCh <- processResult{}
			return
		}
		res, err := s.processSensor.Collect(ctx)
		if err != nil {
			processCh <- processResult{err: err}
			return
		}
		processCh <- processResult{stats: res.(services.ProcessResult)}
	}()

	go func() {
		defer wg.Done()
		if !s.config.EnableRuntimeMetrics {
			runtimeCh <- runtimeResult{}
			return
		}
		res, err := s.runtimeSensor.Collect(ctx)
		if err != nil {
			runtimeCh <- runtimeResult{err: err}
			return
		}
		runtimeCh <- runtimeResult{stats: res.(services.RuntimeResult)}
	}()

	wg.Wait()

	memRes := <-memCh
	processRes := <-processCh
	runtimeRes := <-runtimeCh

	reading := FallbackReading()
	var errs []error

	if memRes.err != nil {
		errs = append(errs, fmt.Errorf("failed to get memory metrics: %w", memRes.err))
	} else {
		reading.TotalBytes = memRes.stats.Total
		reading.AvailableBytes = memRes.stats.Available
		reading.UsedBytes = memRes.stats.Used
		reading.UsedPercent = memRes.stats.UsedPercent
	}

	if processRes.err != nil {
		errs = append(errs, fmt.Errorf("failed to get process metrics: %w", processRes.err))
	} else {
		reading.RSSBytes = processRes.stats.RSS
		reading.VMSBytes = processRes.stats.VMS
	}

	if runtimeRes.err != nil {
		errs = append(errs, fmt.Errorf("failed to get runtime metrics: %w", runtimeRes.err))
	} else {
		reading.GCCycles = runtimeRes.stats.NumGC
		reading.ForcedGCCycles = runtimeRes.stats.NumForcedGC
		reading.GCPauseTotal = runtimeRes.stats.PauseTotal
		reading.HeapObjects = runtimeRes.stats.HeapObjects
	}

	return reading, errors.Join(errs...)
}
