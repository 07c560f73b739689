// Command pressure-drill inflates the process with cache ballast and then runs
// a forced emergency recovery against it, so operators can watch the
// strategies reclaim real memory.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memguard/internal/config"
	"memguard/internal/host"
	"memguard/internal/logging"
	"memguard/internal/output"
	"memguard/internal/recovery"
	"memguard/ui/console"
)

const chunkSize = 64 << 10

var (
	configPath string
	ballastMB  int
	holdFor    time.Duration
	text       bool
)

var rootCmd = &cobra.Command{
	Use:           "pressure-drill",
	Short:         "Allocate cache ballast, then run an emergency recovery",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ballastMB <= 0 {
			return fmt.Errorf("--ballast-mb must be positive, got %d", ballastMB)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		// the drill must never be swallowed by the throttle
		cfg.Monitor.MinRecoveryInterval = 0

		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		cache, err := fillBallast(ctx, ballastMB)
		if err != nil {
			return err
		}
		defer cache.Close()
		logger.Info("ballast allocated",
			zap.Int("ballast_mb", ballastMB),
			zap.Int("entries", cache.Len()),
			zap.Int("capacity_bytes", cache.Capacity()))

		if holdFor > 0 {
			time.Sleep(holdFor)
		}

		h, err := host.New(ctx, cfg, logger, host.Resources{
			Caches: []recovery.CacheManager{recovery.BigCache{Label: "ballast", Cache: cache}},
		})
		if err != nil {
			return err
		}
		if err := h.StartWriter(ctx); err != nil {
			return err
		}

		before := h.Monitor.Status(ctx)
		report := h.Drill(ctx)
		logger.Info("drill complete",
			zap.Float64("rss_mb_before", before.ProcessRSSMB),
			zap.Float64("rss_mb_after", rssAfter(report)),
			zap.Int("entries_left", cache.Len()),
			zap.Any("report", report))
		if text {
			console.Print(cmd.OutOrStdout(), report)
		}

		return h.Shutdown(context.Background())
	},
}

func fillBallast(ctx context.Context, mb int) (*bigcache.BigCache, error) {
	bc := bigcache.DefaultConfig(time.Hour)
	bc.Shards = 64
	bc.MaxEntrySize = chunkSize
	bc.Verbose = false
	cache, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("create ballast cache: %w", err)
	}

	chunk := make([]byte, chunkSize)
	if _, err := rand.Read(chunk); err != nil {
		return nil, err
	}
	for i := 0; i < mb*(1<<20)/chunkSize; i++ {
		if err := cache.Set("ballast-"+strconv.Itoa(i), chunk); err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("fill ballast: %w", err)
		}
	}
	return cache, nil
}

func rssAfter(r output.Report) float64 {
	if s := r.SectionByID(output.SectionMemory); s != nil {
		if it := s.ItemByKey("process_rss_mb"); it != nil {
			return it.Value
		}
	}
	return 0
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().IntVar(&ballastMB, "ballast-mb", 256, "MB of cache ballast to allocate")
	rootCmd.Flags().BoolVar(&text, "text", false, "also print the report to stdout")
	rootCmd.Flags().DurationVar(&holdFor, "hold", 0, "wait this long after allocating before the drill")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
