// Package config defines the global configuration structure for the
// vitalbrief engine. Configuration is loaded once at process initialization
// and is immutable thereafter, following 12-Factor principles: code and
// configuration are strictly separated, and any missing required value or
// invalid format aborts startup (fail fast).
package config

import (
	"time"

	"vitalbrief/internal/types"
)

// SecretString aliases the redacted secret type so config consumers do not
// import types for this alone.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"vitalbrief"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Auth     AuthConfig
	Summary  SummaryConfig
	Batch    BatchConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL             SecretString  `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// AWSConfig holds queue and metrics settings. BriefingQueueURL may be empty
// in deployments where the notification dispatcher polls the database
// directly; the queue trigger is then disabled.
type AWSConfig struct {
	Region           string `envconfig:"AWS_REGION" default:"us-east-1"`
	BriefingQueueURL string `envconfig:"BRIEFING_QUEUE_URL"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"VitalBrief"`
}

// AuthConfig holds the service token the upstream identity gateway presents
// on every request. Identity and role resolution themselves live outside
// this engine.
type AuthConfig struct {
	ServiceToken SecretString `envconfig:"SERVICE_TOKEN" validate:"required"`
}

// SummaryConfig holds the calculation tunables: daily goals and the trend
// contract parameters.
type SummaryConfig struct {
	StepsGoal          int     `envconfig:"STEPS_DAILY_GOAL" default:"10000" validate:"gt=0"`
	SleepGoalHours     float64 `envconfig:"SLEEP_GOAL_HOURS" default:"8.0" validate:"gt=0"`
	TrendWindowDays    int     `envconfig:"TREND_WINDOW_DAYS" default:"7" validate:"gt=0"`
	StabilityTolerance float64 `envconfig:"TREND_STABILITY_PCT" default:"10" validate:"gt=0,lte=100"`
}

// BatchConfig holds the batch pass tunables.
type BatchConfig struct {
	Workers            int `envconfig:"BATCH_WORKERS" default:"8" validate:"gt=0"`
	DispatchBatchLimit int `envconfig:"DISPATCH_BATCH_LIMIT" default:"100" validate:"gt=0"`
}
