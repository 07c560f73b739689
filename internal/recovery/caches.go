package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"

	"memguard/internal/engine"
)

// CacheManager is a cache handle owned by the caller that can be emptied.
type CacheManager interface {
	Clear(ctx context.Context) error
}

// CacheFunc adapts a plain function to CacheManager.
type CacheFunc func(ctx context.Context) error

func (f CacheFunc) Clear(ctx context.Context) error {
	return f(ctx)
}

// BigCache adapts a *bigcache.BigCache to CacheManager.
type BigCache struct {
	Label string
	Cache *bigcache.BigCache
}

func (b BigCache) Name() string {
	if b.Label != "" {
		return b.Label
	}
	return "bigcache"
}

func (b BigCache) Clear(ctx context.Context) error {
	if b.Cache == nil {
		return fmt.Errorf("bigcache %s: nil cache", b.Name())
	}
	return b.Cache.Reset()
}

// ClearCaches empties every registered cache. A failing cache is recorded
// and the rest of the batch still runs.
type ClearCaches struct {
	caches []CacheManager
	logger *zap.Logger
}

func NewClearCaches(caches []CacheManager, logger *zap.Logger) *ClearCaches {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClearCaches{
		caches: caches,
		logger: logger,
	}
}

func (c *ClearCaches) Name() string {
	return "clear_caches"
}

func (c *ClearCaches) Priority() int {
	return PriorityCaches
}

func (c *ClearCaches) CanApply(ctx context.Context, snap engine.Snapshot) (bool, error) {
	return snap.Level.AtLeast(engine.LevelModerate), nil
}

func (c *ClearCaches) Execute(ctx context.Context, snap engine.Snapshot) (engine.Result, error) {
	start := time.Now()
	cleared := 0
	var errs []string

	for i, cache := range c.caches {
		name := handleName(cache, i)
		if err := clearOne(ctx, cache); err != nil {
			c.logger.Warn("failed to clear cache",
				zap.String("cache", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		cleared++
	}

	return engine.Result{
		Strategy: c.Name(),
		Action:   "clear_caches",
		Duration: time.Since(start),
		Details: map[string]any{
			"caches_cleared": cleared,
			"caches_failed":  len(errs),
		},
		Errors: errs,
	}, nil
}

func clearOne(ctx context.Context, cache CacheManager) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cache.Clear(ctx)
}

// handleName labels a cache or pool handle for logs and result errors.
func handleName(h any, index int) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T#%d", h, index)
}
