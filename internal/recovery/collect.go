// Package recovery contains the standard memory pressure relief strategies.
package recovery

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"memguard/internal/engine"
)

const (
	PriorityCollect = 1
	PriorityCaches  = 2
	PriorityPools   = 3
)

const bytesPerMB = 1 << 20

// Collect forces a garbage collection pass. The aggressive variant runs two
// passes and then returns freed pages to the OS.
type Collect struct {
	aggressive bool
	// minHeap skips the plain pass while the live heap is smaller; 0 disables.
	minHeap uint64

	gc           func()
	freeOSMemory func()
	readStats    func(*runtime.MemStats)
}

func NewCollect() *Collect {
	return &Collect{
		gc:           runtime.GC,
		freeOSMemory: debug.FreeOSMemory,
		readStats:    runtime.ReadMemStats,
	}
}

func NewAggressiveCollect() *Collect {
	c := NewCollect()
	c.aggressive = true
	return c
}

// WithHeapThreshold makes the plain pass apply only once the live heap reaches
// mb megabytes. The aggressive variant ignores it.
func (c *Collect) WithHeapThreshold(mb uint64) *Collect {
	c.minHeap = mb * bytesPerMB
	return c
}

func (c *Collect) Name() string {
	if c.aggressive {
		return "aggressive_collect"
	}
	return "collect"
}

func (c *Collect) Priority() int {
	return PriorityCollect
}

func (c *Collect) CanApply(ctx context.Context, snap engine.Snapshot) (bool, error) {
	if snap.Level == engine.LevelLow {
		return false, nil
	}
	if c.aggressive || c.minHeap == 0 {
		return true, nil
	}
	var ms runtime.MemStats
	c.readStats(&ms)
	return ms.HeapAlloc >= c.minHeap, nil
}

func (c *Collect) Execute(ctx context.Context, snap engine.Snapshot) (engine.Result, error) {
	if err := ctx.Err(); err != nil {
		return engine.Result{}, err
	}

	var before, after runtime.MemStats
	c.readStats(&before)
	start := time.Now()

	c.gc()
	if c.aggressive {
		c.gc()
		c.freeOSMemory()
	}

	duration := time.Since(start)
	c.readStats(&after)

	action := "garbage_collection"
	if c.aggressive {
		action = "aggressive_garbage_collection"
	}

	return engine.Result{
		Strategy: c.Name(),
		Action:   action,
		Duration: duration,
		Details: map[string]any{
			"objects_before":    before.HeapObjects,
			"objects_after":     after.HeapObjects,
			"objects_reclaimed": saturatingSub(before.HeapObjects, after.HeapObjects),
			"heap_freed_bytes":  saturatingSub(before.HeapAlloc, after.HeapAlloc),
			"released_bytes":    saturatingSub(after.HeapReleased, before.HeapReleased),
			"aggressive":        c.aggressive,
		},
	}, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
