package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowpulse/internal/config"
	"flowpulse/internal/dashboard"
	"flowpulse/internal/logger"
	"flowpulse/internal/metrics"
	"flowpulse/internal/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metrics sampler and dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(false)
	},
}

// pipeline bundles the wired components so serve and demo share setup.
type pipeline struct {
	store   *trace.Store
	actions *metrics.ActionRecorder
	events  *metrics.EventRecorder
	sampler *metrics.Sampler
	server  *dashboard.Server
	log     *slog.Logger
}

func buildPipeline(cfg config.Config) *pipeline {
	log := logger.New("flowpulse", logger.ParseLevel(cfg.LogLevel))

	store := trace.NewStore(log, trace.Options{
		Capacity:                      cfg.TraceStoreCapacity,
		AutoCreateOnUnknownCheckpoint: cfg.TraceAutoCreate,
	})
	actions := metrics.NewActionRecorder(cfg.MetricsWindowSize)
	events := metrics.NewEventRecorder(cfg.MetricsWindowSize)
	sampler := metrics.NewSampler(metrics.NewSystemProbe(log), actions, events, log, metrics.SamplerOptions{
		Interval:      cfg.MetricsSampleEvery,
		QueueCapacity: cfg.MetricsQueueCapacity,
	})
	server := dashboard.New(sampler, store, log, dashboard.Options{
		Addr:              cfg.Addr,
		BroadcastInterval: cfg.DashboardBroadcastEvery,
		WriteTimeout:      cfg.DashboardWriteTimeout,
	})
	return &pipeline{store: store, actions: actions, events: events, sampler: sampler, server: server, log: log}
}

func runServe(demo bool) error {
	cfg := config.Load()
	p := buildPipeline(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.server.Start(ctx); err != nil {
		p.log.Error("failed to start dashboard server", "error", err)
		return err
	}
	p.log.Info("pipeline running", "addr", p.server.Addr())

	if demo {
		go generateTraffic(ctx, p)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.server.Stop(shutdownCtx); err != nil {
		p.log.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
