package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/healthwatch/config"
	"github.com/angeloszaimis/healthwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/healthwatch/internal/dispatch"
	"github.com/angeloszaimis/healthwatch/internal/healthcheck"
	"github.com/angeloszaimis/healthwatch/internal/httpserver"
	"github.com/angeloszaimis/healthwatch/internal/metrics"
	"github.com/angeloszaimis/healthwatch/internal/watch"
	"github.com/angeloszaimis/healthwatch/pkg/logger"
)

const metricsBufferSize = 1024

// ErrEndpointsDown is returned by a one-shot run that saw at least one Down
// endpoint.
var ErrEndpointsDown = errors.New("one or more endpoints are down")

func runCheck(cmd *cobra.Command, _ []string) error {
	configPath := resolveConfigPath(cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, false, cfg.JSONLogging)
	log.Info("loaded configuration",
		slog.String("config_path", configPath),
		slog.Int("endpoints", len(cfg.Endpoints())),
		slog.Int("concurrency", cfg.Concurrency))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(metricsBufferSize, log)
	collector.Start(ctx)

	dispatcher, err := dispatch.NewFromConfig(cfg, log, collector)
	if err != nil {
		return err
	}

	if cfg.WatchInterval() > 0 {
		return runWatch(ctx, cmd.OutOrStdout(), cfg, log, dispatcher, collector)
	}

	report := dispatcher.Run(ctx, cfg)
	if cfg.SummaryJSON {
		if err := writeSummary(cmd.OutOrStdout(), report.Summary); err != nil {
			return err
		}
	}

	if report.Summary.Down > 0 {
		return ErrEndpointsDown
	}
	return nil
}

func runWatch(ctx context.Context, out io.Writer, cfg *config.Config, log *slog.Logger, dispatcher *dispatch.Dispatcher, collector *metrics.Collector) error {
	policy, err := circuitbreaker.PolicyFor(cfg.CBPolicy)
	if err != nil {
		return err
	}

	registry := circuitbreaker.NewRegistry(cfg.CBFailuresThreshold, cfg.CBCooldown())
	loop := watch.New(cfg, dispatcher, registry, policy, log,
		watch.WithOutput(out),
		watch.WithSkipRecorder(collector))

	if cfg.MetricsAddr == "" {
		return loop.Run(ctx)
	}

	srv, err := httpserver.New(cfg.MetricsAddr, setupRouter(collector, registry))
	if err != nil {
		return fmt.Errorf("failed to create metrics server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down metrics server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return loop.Run(gctx)
	})

	return g.Wait()
}

func writeSummary(w io.Writer, summary healthcheck.Summary) error {
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
