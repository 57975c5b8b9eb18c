// Package main implements the run-once CLI tool for executing a single
// alert evaluation run locally, bypassing the AWS Lambda shim.
//
// This tool is intended for local development and operational debugging.
// It builds the same pipeline the Lambda entrypoint builds and executes
// one RunOnce pass against the configured database and providers.
//
// Usage:
//
//	go run ./cmd/tools/run-once
//	go run ./cmd/tools/run-once --dry-run
//	go run ./cmd/tools/run-once --dry-run --timeout=2m
//
// Configuration is read from environment variables (or a .env file via
// godotenv). In --dry-run mode, triggers are evaluated and messages are
// rendered, but nothing is dispatched and no state is written.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"swellwatch/internal/config"
	"swellwatch/internal/db"
	"swellwatch/internal/dispatch"
	"swellwatch/internal/external"
	"swellwatch/internal/message"
	"swellwatch/internal/run"
	"swellwatch/internal/suppress"
	"swellwatch/internal/types"
)

type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

func main() {
	dryRun := flag.Bool("dry-run", false, "evaluate and render without dispatching or writing state")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run deadline")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Load .env if present; silence is fine when it isn't.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	orchestrator, err := buildOrchestrator(ctx, cfg, pool, logger, *timeout)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	summary, err := orchestrator.RunOnce(ctx, run.Options{DryRun: *dryRun || cfg.Runner.DryRun})
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		logger.Error("failed to marshal summary", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger, runDeadline time.Duration) (*run.Orchestrator, error) {
	appLogger := &slogAdapter{logger: logger}

	conditions := external.NewConditionsClient(external.ConditionsClientConfig{
		BaseURL:   strings.TrimSuffix(cfg.Conditions.BaseURL, "/"),
		APIKey:    cfg.Conditions.APIKey,
		Timeout:   cfg.Conditions.Timeout,
		UserAgent: "SwellWatch/1.0",
	})

	var buoys types.BuoyObserver
	if cfg.Buoy.Enabled {
		buoys = external.NewNDBCClient(cfg.Buoy.BaseURL, types.RealClock{})
	}

	var textGen types.TextGenerator
	if cfg.Generation.Enabled && cfg.Generation.OpenAIAPIKey.Unmask() != "" {
		textGen = external.NewOpenAIGenerator(external.OpenAIGeneratorConfig{
			APIKey: cfg.Generation.OpenAIAPIKey,
			Model:  cfg.Generation.Model,
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}

	emailProvider := external.NewSESClient(awsCfg, external.SESClientConfig{
		ConfigSetName: cfg.Email.ConfigSetName,
		Logger:        logger,
	})
	pushProvider := external.NewPushClient(
		&http.Client{Timeout: 15 * time.Second},
		external.PushClientConfig{
			BaseURL: cfg.Push.BaseURL,
			APIKey:  cfg.Push.APIKey,
			Logger:  logger,
		},
	)

	var metrics run.RunMetrics = run.NopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = run.NewCloudWatchRunMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			appLogger,
		)
	}

	return run.New(run.Config{
		Store:    db.NewTriggerRepository(pool),
		Ledger:   db.NewAlertRepository(pool),
		Provider: conditions,
		Buoys:    buoys,
		Guard:    suppress.NewGuard(cfg.Runner.Cooldown, types.RealClock{}),
		Generator: message.New(message.Config{
			TextGen: textGen,
			Timeout: cfg.Generation.Timeout,
			Logger:  appLogger,
		}),
		Dispatcher: dispatch.NewDispatcher(
			[]types.NotificationChannel{
				dispatch.NewEmailChannel(emailProvider, cfg.Email.FromName, cfg.Email.FromAddress),
				dispatch.NewPushChannel(pushProvider),
			},
			types.RealClock{},
			appLogger,
		),
		Metrics:            metrics,
		Logger:             appLogger,
		FetchConcurrency:   cfg.Runner.FetchConcurrency,
		ProcessConcurrency: cfg.Runner.ProcessConcurrency,
		RunDeadline:        runDeadline,
	}), nil
}
