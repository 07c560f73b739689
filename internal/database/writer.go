// Package database holds the persistence sinks and the writer that feeds them
// off the monitoring path.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 30 * time.Second
)

// ErrQueueFull is returned when an event is dropped because the writer is behind.
var ErrQueueFull = errors.New("async recorder queue full")

var _ monitor.Recorder = (*AsyncRecorder)(nil)

type event struct {
	snap    *engine.Snapshot
	session *monitor.Session
}

// AsyncRecorder queues monitor events and hands them to a downstream recorder
// from its own goroutine, so DuckDB or Neo4j latency never stalls a recovery
// session.
type AsyncRecorder struct {
	next         monitor.Recorder
	logger       *zap.Logger
	queue        chan event
	writeTimeout time.Duration
	dropped      atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewAsyncRecorder creates a writer in front of next. A non-positive
// queueSize uses the default.
func NewAsyncRecorder(next monitor.Recorder, queueSize int, logger *zap.Logger) (*AsyncRecorder, error) {
	if next == nil {
		return nil, errors.New("downstream recorder is required")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncRecorder{
		next:         next,
		logger:       logger.With(zap.String("module", "storage")),
		queue:        make(chan event, queueSize),
		writeTimeout: defaultWriteTimeout,
	}, nil
}

// Start begins draining the queue.
func (w *AsyncRecorder) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("recorder already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// Stop ends the loop and writes whatever is still queued.
func (w *AsyncRecorder) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.drain()
}

// Dropped returns how many events were discarded because the queue was full.
func (w *AsyncRecorder) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *AsyncRecorder) RecordSnapshot(ctx context.Context, snap engine.Snapshot) error {
	return w.enqueue(event{snap: &snap})
}

func (w *AsyncRecorder) RecordRecovery(ctx context.Context, s monitor.Session) error {
	return w.enqueue(event{session: &s})
}

func (w *AsyncRecorder) enqueue(ev event) error {
	select {
	case w.queue <- ev:
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

func (w *AsyncRecorder) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.queue:
			w.deliver(ev)
		}
	}
}

func (w *AsyncRecorder) drain() {
	for {
		select {
		case ev := <-w.queue:
			w.deliver(ev)
		default:
			return
		}
	}
}

// deliver writes one event with its own timeout; the loop context may already
// be cancelled while the queue drains.
func (w *AsyncRecorder) deliver(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	var err error
	switch {
	case ev.snap != nil:
		err = w.next.RecordSnapshot(ctx, *ev.snap)
	case ev.session != nil:
		err = w.next.RecordRecovery(ctx, *ev.session)
		if err != nil {
			err = fmt.Errorf("session %s: %w", ev.session.ID, err)
		}
	}
	if err != nil {
		w.logger.Warn("failed to persist monitor event", zap.Error(err))
	}
}
