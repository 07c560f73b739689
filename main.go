package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memguard/internal/config"
	"memguard/internal/host"
	"memguard/internal/logging"
	"memguard/ui/console"
)

var (
	configPath string
	drillText  bool
)

var rootCmd = &cobra.Command{
	Use:           "memguard",
	Short:         "Memory pressure monitoring and recovery",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor memory pressure until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		h, err := host.New(ctx, cfg, logger, host.Resources{})
		if err != nil {
			return err
		}
		if err := h.Start(ctx); err != nil {
			_ = h.Shutdown(context.Background())
			return err
		}
		logger.Info("memguard running", zap.String("agent_id", cfg.AgentID))

		<-ctx.Done()
		logger.Info("shutting down")
		return h.Shutdown(context.Background())
	},
}

var drillCmd = &cobra.Command{
	Use:   "drill",
	Short: "Run one forced EMERGENCY recovery session and report the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		h, err := host.New(cmd.Context(), cfg, logger, host.Resources{})
		if err != nil {
			return err
		}
		if err := h.StartWriter(cmd.Context()); err != nil {
			return err
		}
		report := h.Drill(cmd.Context())
		logger.Info("drill complete", zap.Any("report", report))
		if drillText {
			console.Print(cmd.OutOrStdout(), report)
		}
		return h.Shutdown(context.Background())
	},
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	drillCmd.Flags().BoolVar(&drillText, "text", false, "also print the report to stdout")
	rootCmd.AddCommand(runCmd, drillCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
