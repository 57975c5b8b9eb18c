// Package config defines the global configuration structure for the surf
// alert runner. Configuration is loaded once at process initialization
// (Lambda cold start) and is immutable thereafter. It follows 12-Factor App
// principles by strictly separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup.
package config

import (
	"time"

	"swellwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the surf alert runner.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"swellwatch-runner"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	Push          PushConfig
	Conditions    ConditionsConfig
	Buoy          BuoyConfig
	Generation    GenerationConfig
	Runner        RunnerConfig
	Observability ObservabilityConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack support (empty in prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig holds the SES sender identity.
type EmailConfig struct {
	FromAddress   string `envconfig:"EMAIL_FROM_ADDRESS" default:"alerts@swellwatch.io"`
	FromName      string `envconfig:"EMAIL_FROM_NAME" default:"SwellWatch Alerts"`
	ConfigSetName string `envconfig:"SES_CONFIG_SET"`
}

// PushConfig holds push gateway connection settings.
type PushConfig struct {
	BaseURL string       `envconfig:"PUSH_GATEWAY_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"PUSH_GATEWAY_API_KEY" validate:"required"`
}

// ConditionsConfig holds the marine conditions service connection settings.
type ConditionsConfig struct {
	BaseURL string        `envconfig:"CONDITIONS_API_URL" validate:"required,url"`
	APIKey  SecretString  `envconfig:"CONDITIONS_API_KEY" validate:"required"`
	Timeout time.Duration `envconfig:"CONDITIONS_TIMEOUT" default:"15s"`
}

// BuoyConfig holds NDBC live buoy feed settings. Buoy data only decorates
// alert messages, so the whole feature can be switched off.
type BuoyConfig struct {
	Enabled bool `envconfig:"BUOY_ENABLED" default:"true"`
	// BaseURL override for testing; empty means the NOAA production feed.
	BaseURL string `envconfig:"BUOY_BASE_URL"`
}

// GenerationConfig holds text generation settings for voiced alert styles.
type GenerationConfig struct {
	OpenAIAPIKey SecretString  `envconfig:"OPENAI_API_KEY"`
	Model        string        `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`
	Timeout      time.Duration `envconfig:"GENERATION_TIMEOUT" default:"10s"`
	// Enabled switches voiced generation off entirely; every voiced trigger
	// then falls back to deterministic copy.
	Enabled bool `envconfig:"GENERATION_ENABLED" default:"true"`
}

// RunnerConfig holds orchestrator tuning parameters.
type RunnerConfig struct {
	// Cooldown is the minimum gap between repeat alerts for one trigger
	// while conditions hold.
	Cooldown time.Duration `envconfig:"ALERT_COOLDOWN" default:"6h"`
	// FetchConcurrency bounds parallel conditions fetches across spots.
	FetchConcurrency int `envconfig:"FETCH_CONCURRENCY" default:"8"`
	// ProcessConcurrency bounds parallel trigger processing (generation and
	// dispatch) across independent triggers.
	ProcessConcurrency int `envconfig:"PROCESS_CONCURRENCY" default:"4"`
	// RunDeadline bounds one full run; triggers not reached count as failed
	// and are retried on the next scheduled run.
	RunDeadline time.Duration `envconfig:"RUN_DEADLINE" default:"10m"`
	// DryRun evaluates and renders but never dispatches or writes state.
	DryRun bool `envconfig:"DRY_RUN" default:"false"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"SwellWatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Injected at compile time, for example:
//
//	go build -ldflags "-X swellwatch/internal/config.version=1.2.3 \
//	    -X swellwatch/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X swellwatch/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Local builds keep the defaults.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo snapshots the linker-injected variables into a BuildInfo.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
