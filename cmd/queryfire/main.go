package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/queryfire/queryfire/internal/config"
	"github.com/queryfire/queryfire/internal/counters"
	"github.com/queryfire/queryfire/internal/httpclient"
	"github.com/queryfire/queryfire/internal/metrics"
	"github.com/queryfire/queryfire/internal/output"
	"github.com/queryfire/queryfire/internal/publisher"
	"github.com/queryfire/queryfire/internal/queryclient"
	"github.com/queryfire/queryfire/internal/runner"
	"github.com/queryfire/queryfire/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	sugar := log.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	client, err := queryclient.New(queryclient.Options{
		Endpoint:   cfg.TargetURL,
		HTTPClient: httpclient.NewClient(cfg.Timeout),
		Tracer:     tracer.Tracer(),
	})
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	startedAt := time.Now().UTC()
	reg := counters.NewRegistry(cfg.Concurrency)
	lat := metrics.NewLatencyTracker()

	info := metrics.RunInfo{
		RunID:       runID,
		StartedAt:   startedAt,
		Total:       int64(cfg.TotalRequests()),
		Concurrency: cfg.Concurrency,
		Iterations:  cfg.Iterations(),
		LoadScale:   cfg.LoadScale,
		EventLimit:  cfg.EventLimit,
	}
	pub := publisher.New(cfg.MetricsURL, httpclient.NewClient(cfg.Timeout), reg, info, sugar)

	sugar.Infow("starting load run",
		"run_id", runID,
		"target", cfg.TargetURL,
		"concurrency", cfg.Concurrency,
		"iterations", cfg.Iterations(),
		"total", cfg.TotalRequests(),
		"load_scale", cfg.LoadScale,
		"event_limit", cfg.EventLimit,
		"metrics_url", cfg.MetricsURL,
	)

	// Zeroed baseline so subscribers see the run exists before traffic.
	pub.Report()

	r := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		Iterations:    cfg.Iterations(),
		EventLimit:    cfg.EventLimit,
		SeedBase:      cfg.SeedBase,
		SeedWindow:    cfg.SeedWindow,
		RatePerSecond: cfg.Rate,
		Client:        client,
		Registry:      reg,
		Reporter:      pub,
		Latency:       lat,
		Log:           sugar,
	})
	result := r.Run(ctx)

	// Final snapshot so the collector sees the end state even when the run
	// was cancelled short of its milestones.
	pub.Report()

	sugar.Infow("run finished",
		"elapsed_ms", result.Duration.Milliseconds(),
		"completed", result.Completed,
		"errors", result.Errors,
		"cancelled", result.Cancelled,
	)

	summary := output.BuildSummary(runID, result.Duration, info.Total, reg, lat)
	output.PrintSummary(os.Stdout, summary)

	if cfg.ResultFile != "" {
		if err := output.WriteResultFile(cfg.ResultFile, summary); err != nil {
			sugar.Warnw("writing result file failed", "path", cfg.ResultFile, "error", err)
		}
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zcfg.Build()
}
