package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gpucoordd/internal/config"
	"gpucoordd/internal/coordinator"
	"gpucoordd/internal/httpapi"
	"gpucoordd/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath  string
		logLevel string
		opsAddr  string
	)
	root := &cobra.Command{
		Use:   "gpucoordd",
		Short: "Suspend and resume the GPU inference service around exclusive batch jobs",
		Long: `gpucoordd watches the process table for exclusive-access GPU workloads
(embedding, indexing, training) and stops the managed inference service
while one is running, restarting it once the workload finishes.

Configuration is compiled in; pass --config to override individual fields
from a yaml, json, or toml file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath, logLevel, opsAddr)
		},
	}
	root.Flags().StringVar(&cfgPath, "config", "", "Optional config file (.yaml/.json/.toml) overriding built-in defaults")
	root.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (default from config)")
	root.Flags().StringVar(&opsAddr, "ops-addr", "", "Enable the ops HTTP listener (/healthz, /status, /metrics) on this address")
	return root
}

func run(cfgPath, logLevel, opsAddr string) error {
	cfg := config.Default()
	if cfgPath != "" {
		file, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = cfg.Overlay(file)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if opsAddr != "" {
		cfg.OpsAddr = opsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := service.NewSystemd(cfg.ServiceName)
	coord := coordinator.New(cfg, coordinator.Options{
		Service:   svc,
		Publisher: coordinator.NewZerologPublisher(logger),
	})

	if cfg.OpsAddr != "" {
		srv := &http.Server{Addr: cfg.OpsAddr, Handler: httpapi.NewMux(coord, logger)}
		go func() {
			logger.Info().Str("addr", cfg.OpsAddr).Msg("ops server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("ops server error")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	return coord.Run(ctx)
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger(), nil
}
