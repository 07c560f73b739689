package recovery

import (
	"go.uber.org/zap"

	"memguard/internal/engine"
)

// Standard builds the four stock strategies: collect, aggressive collect,
// cache clearing and pool reduction. The pool strategy is also returned on its
// own so callers can restore the pools later. gcThresholdMB gates the plain
// collection pass (0 always applies).
func Standard(caches []CacheManager, pools []any, factor float64, gcThresholdMB uint64, logger *zap.Logger) ([]engine.Strategy, *ReduceConnectionPools, error) {
	if factor == 0 {
		factor = DefaultReductionFactor
	}
	reducer, err := NewReduceConnectionPools(pools, factor, logger)
	if err != nil {
		return nil, nil, err
	}

	return []engine.Strategy{
		NewCollect().WithHeapThreshold(gcThresholdMB),
		NewAggressiveCollect(),
		NewClearCaches(caches, logger),
		reducer,
	}, reducer, nil
}
