// Package main is the entrypoint for the Alert Runner Lambda function.
//
// The Alert Runner fires on a fixed EventBridge schedule. Each invocation
// performs one full evaluation pass: load enabled triggers, fetch one
// conditions snapshot per spot, evaluate, suppress repeats, render, and
// dispatch email/push alerts, appending every send to the alert ledger.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Resolve SSM secrets and load validated configuration.
//  3. Load AWS SDK configuration.
//  4. Initialize database pool, repositories, external clients, channels.
//  5. Assemble the run orchestrator and register the Lambda handler.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"swellwatch/internal/config"
	"swellwatch/internal/db"
	"swellwatch/internal/dispatch"
	"swellwatch/internal/external"
	"swellwatch/internal/message"
	"swellwatch/internal/run"
	"swellwatch/internal/suppress"
	"swellwatch/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info/Error/Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// RunInput is the EventBridge invocation payload. All fields optional.
type RunInput struct {
	// DryRun evaluates and renders without dispatching or writing state.
	DryRun bool `json:"dry_run"`
	// Verbose includes the full run summary JSON in the logs.
	Verbose bool `json:"verbose"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("alert runner initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if lvl := parseLogLevel(cfg.LogLevel); lvl != slog.LevelInfo {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	orchestrator := buildOrchestrator(cfg, awsCfg, pool, logger)

	logger.Info("alert runner initialized",
		"environment", cfg.Environment,
		"cooldown", cfg.Runner.Cooldown.String(),
		"fetch_concurrency", cfg.Runner.FetchConcurrency,
		"version", cfg.Build.Version,
	)

	lambda.Start(newHandler(orchestrator, cfg, logger))
}

// buildOrchestrator wires the full pipeline from configuration.
func buildOrchestrator(cfg *config.Config, awsCfg aws.Config, pool *pgxpool.Pool, logger *slog.Logger) *run.Orchestrator {
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
		RunDeadline:        cfg.Runner.RunDeadline,
	})
}

// newHandler wraps the orchestrator in the Lambda handler signature.
func newHandler(o *run.Orchestrator, cfg *config.Config, logger *slog.Logger) func(ctx context.Context, input RunInput) (string, error) {
	return func(ctx context.Context, input RunInput) (string, error) {
		dryRun := input.DryRun || cfg.Runner.DryRun

		summary, err := o.RunOnce(ctx, run.Options{DryRun: dryRun})
		if err != nil {
			logger.ErrorContext(ctx, "evaluation run failed", "error", err)
			return "", fmt.Errorf("alert run failed: %w", err)
		}

		result := fmt.Sprintf("run %s complete: %d evaluated, %d matched, %d sent, %d suppressed, %d failed",
			summary.RunID, summary.Evaluated, summary.Matched, summary.Sent, summary.Suppressed, summary.Failed)
		logger.InfoContext(ctx, result)
		if input.Verbose {
			if raw, err := json.Marshal(summary); err == nil {
				logger.InfoContext(ctx, "run summary", "summary", string(raw))
			}
		}
		return result, nil
	}
}

// parseLogLevel maps the LOG_LEVEL config value onto slog levels, defaulting
// to info for unrecognized values.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
