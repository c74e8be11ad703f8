package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/config"
	"github.com/Elias8833/webmonetization/internal/embed"
	"github.com/Elias8833/webmonetization/internal/exclusive"
	"github.com/Elias8833/webmonetization/internal/handlers"
	"github.com/Elias8833/webmonetization/internal/metrics"
	"github.com/Elias8833/webmonetization/internal/server"
	"github.com/Elias8833/webmonetization/internal/service"
	"github.com/Elias8833/webmonetization/internal/storage"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the exclusive content API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		// The config file can turn on debug logging even without --verbose.
		if cfg.Server.Verbose && !verbose {
			verbose = true
			if logger, err = newLogger(true); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

func serve(ctx context.Context, cfg *config.ParsedConfig) error {
	logger.Debug("configuration loaded",
		zap.String("path", configPath),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Duration("max_content_age", cfg.MaxContentAge),
		zap.String("script_src", cfg.Embed.ScriptSrc))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := storage.NewMemoryStorage(cfg.MaxContentAge, logger.Named("store"))
	store.StartCleanupRoutine(ctx, cfg.CleanupInterval)

	svc := service.NewService(
		exclusive.NewGenerator(exclusive.WithLogger(logger.Named("crypto"))),
		embed.NewRenderer(cfg.Embed.ScriptSrc),
		store,
		metrics.New(reg, func() float64 { return float64(store.Live()) }),
		logger,
	)

	srv := server.NewServer(handlers.NewHandler(svc, logger), reg, logger, cfg.Server.Verbose)

	logger.Info("exclusive content service ready", zap.Int("port", cfg.Server.Port))
	return srv.Start(ctx, cfg.Server.Port)
}
