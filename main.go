package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/wasil/courierbridge/internal/scheduler"
	"github.com/wasil/courierbridge/internal/server"
	"github.com/wasil/courierbridge/internal/service"
	"github.com/wasil/courierbridge/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	// Missing .env is fine; the environment itself takes precedence.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "courierbridge",
	Short:   "Courier Bridge - Multi-provider courier integration service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the courier records",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(ctx)
	}

	st, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := initCourierRegistry(cfg, logger)
	metrics := telemetry.NewMetrics()
	shipments := service.New(st, registry, logger, metrics)

	logger.Info("Starting Courier Bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("couriers", registry.Codes()),
	)

	if cfg.RefreshEnabled {
		refresher := scheduler.New(st, shipments, logger, metrics, scheduler.Config{
			Interval:  cfg.RefreshInterval,
			Staleness: cfg.RefreshStaleness,
		})
		go refresher.Run(ctx)
	}

	srv := server.New(server.Config{Port: cfg.Port}, shipments, logger, metrics)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, closeStore, err := initStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return seedCouriers(ctx, st, logger)
}
