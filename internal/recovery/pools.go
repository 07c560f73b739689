package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"memguard/internal/engine"
)

const DefaultReductionFactor = 0.5

// SizedPool is a connection pool whose maximum size can be read and changed.
type SizedPool interface {
	MaxSize() int
	SetMaxSize(n int)
}

// Trimmer is implemented by pools that can close connections above their
// current maximum on demand.
type Trimmer interface {
	Trim(ctx context.Context) error
}

// sizeAccessor is the resolved view of a pool handle.
type sizeAccessor struct {
	get  func() int
	set  func(int)
	trim func(ctx context.Context, size int) error
}

// resolvePool accepts either a SizedPool or a *sql.DB.
func resolvePool(pool any) (sizeAccessor, bool) {
	switch h := pool.(type) {
	case SizedPool:
		acc := sizeAccessor{get: h.MaxSize, set: h.SetMaxSize}
		if t, ok := pool.(Trimmer); ok {
			acc.trim = func(ctx context.Context, _ int) error { return t.Trim(ctx) }
		}
		return acc, true
	case *sql.DB:
		if h == nil {
			return sizeAccessor{}, false
		}
		return sizeAccessor{
			get: func() int { return h.Stats().MaxOpenConnections },
			set: h.SetMaxOpenConns,
			// Lowering the idle limit makes database/sql close the surplus idle connections.
			trim: func(_ context.Context, size int) error {
				h.SetMaxIdleConns(size)
				return nil
			},
		}, true
	default:
		return sizeAccessor{}, false
	}
}

// ReduceConnectionPools shrinks caller-owned connection pools to a fraction of
// their original size. The original size of each pool is remembered the first
// time it is reduced, so repeated reductions never compound. Originals are
// keyed by the pool's position, so handles need not be comparable.
type ReduceConnectionPools struct {
	pools  []any
	factor float64
	logger *zap.Logger

	mu        sync.Mutex
	originals map[int]int
	order     []int
	reduced   bool
}

func NewReduceConnectionPools(pools []any, factor float64, logger *zap.Logger) (*ReduceConnectionPools, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("reduction factor must be in (0, 1], got %v", factor)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReduceConnectionPools{
		pools:     append([]any(nil), pools...),
		factor:    factor,
		logger:    logger,
		originals: make(map[int]int),
	}, nil
}

func (r *ReduceConnectionPools) Name() string {
	return "reduce_connection_pools"
}

// Priority is the lowest of the standard strategies: shrinking pools degrades service.
func (r *ReduceConnectionPools) Priority() int {
	return PriorityPools
}

func (r *ReduceConnectionPools) CanApply(ctx context.Context, snap engine.Snapshot) (bool, error) {
	return snap.Level == engine.LevelCritical || snap.Level == engine.LevelEmergency, nil
}

func (r *ReduceConnectionPools) Execute(ctx context.Context, snap engine.Snapshot) (engine.Result, error) {
	start := time.Now()
	reduced := 0
	var errs []string

	for i, pool := range r.pools {
		name := handleName(pool, i)
		ok, err := r.reducePool(ctx, i, pool)
		if ok {
			reduced++
		}
		if err != nil {
			r.logger.Warn("failed to reduce connection pool",
				zap.String("pool", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if reduced > 0 {
		r.mu.Lock()
		r.reduced = true
		r.mu.Unlock()
	}

	return engine.Result{
		Strategy: r.Name(),
		Action:   "reduce_connection_pools",
		Duration: time.Since(start),
		Details: map[string]any{
			"pools_reduced":    reduced,
			"reduction_factor": r.factor,
		},
		Errors: errs,
	}, nil
}

// reducePool reports whether the pool was resized. Pools without a size
// accessor, or with an unbounded (<= 0) size, are skipped.
func (r *ReduceConnectionPools) reducePool(ctx context.Context, index int, pool any) (resized bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	acc, ok := resolvePool(pool)
	if !ok {
		return false, nil
	}

	original, err := r.originalSize(index, acc)
	if err != nil || original <= 0 {
		return false, err
	}

	newSize := int(math.Floor(float64(original) * r.factor))
	if newSize < 1 {
		newSize = 1
	}
	acc.set(newSize)

	if acc.trim != nil {
		if err := acc.trim(ctx, newSize); err != nil {
			return true, fmt.Errorf("trim to %d: %w", newSize, err)
		}
	}
	return true, nil
}

func (r *ReduceConnectionPools) originalSize(index int, acc sizeAccessor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if original, seen := r.originals[index]; seen {
		return original, nil
	}

	current := acc.get()
	if current <= 0 {
		return 0, nil
	}
	r.originals[index] = current
	r.order = append(r.order, index)
	return current, nil
}

// RestoreOriginalSizes writes every remembered original size back. Pools that
// were never reduced are left untouched. For a *sql.DB only the open
// connection limit is restored; the idle limit regrows with demand.
func (r *ReduceConnectionPools) RestoreOriginalSizes(ctx context.Context) error {
	r.mu.Lock()
	order := make([]int, len(r.order))
	copy(order, r.order)
	originals := make(map[int]int, len(r.originals))
	for k, v := range r.originals {
		originals[k] = v
	}
	r.reduced = false
	r.mu.Unlock()

	var errs []error
	for _, i := range order {
		pool := r.pools[i]
		if err := restorePool(pool, originals[i]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", handleName(pool, i), err))
			continue
		}
		r.logger.Debug("restored connection pool size",
			zap.String("pool", handleName(pool, i)),
			zap.Int("size", originals[i]))
	}
	return errors.Join(errs...)
}

func restorePool(pool any, size int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	acc, ok := resolvePool(pool)
	if !ok {
		return errors.New("pool no longer exposes a size")
	}
	acc.set(size)
	return nil
}

// Reduced reports whether pools are currently shrunk, i.e. a reduction ran
// since the last restore.
func (r *ReduceConnectionPools) Reduced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reduced
}

// OriginalSize returns the remembered size of the pool at index, if any.
func (r *ReduceConnectionPools) OriginalSize(index int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	size, ok := r.originals[index]
	return size, ok
}
