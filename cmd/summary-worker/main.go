// Package main is the entrypoint for the summary worker Lambda.
//
// The worker is triggered on a schedule with a SummaryTaskPayload event and
// multiplexes to one of three tasks: the morning briefing pass, the evening
// summary pass, or the briefing dispatch scan. Dependency wiring happens once
// during cold start; the handler itself delegates to internal/batch.
//
// With APP_ENV=local the worker reads one JSON event from stdin instead of
// starting the Lambda runtime, so passes can be run from a shell:
//
//	echo '{"task":"morning_briefing"}' | go run ./cmd/summary-worker
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitalbrief/internal/batch"
	"vitalbrief/internal/config"
	"vitalbrief/internal/db"
	"vitalbrief/internal/queue"
	"vitalbrief/internal/summary"
	"vitalbrief/internal/types"
)

// --- Metric publisher implementation ---

// cloudwatchAPI is the subset of the CloudWatch SDK client the worker uses.
type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// liveMetricPublisher publishes pass metrics to CloudWatch under the
// configured namespace, dimensioned by summary type.
type liveMetricPublisher struct {
	client    cloudwatchAPI
	namespace string
}

// PublishPassHeartbeat emits "SummaryPassCompleted=1". It fires on every
// completed pass including zero-user runs, so an alarm on metric absence
// detects a dead scheduler rather than a quiet day.
func (p *liveMetricPublisher) PublishPassHeartbeat(ctx context.Context, kind types.SummaryKind) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("SummaryPassCompleted"),
				Value:      aws.Float64(1),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: kindDimensions(kind),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish pass heartbeat: %w", err)
	}
	return nil
}

// PublishPassStats emits per-pass volume metrics.
func (p *liveMetricPublisher) PublishPassStats(ctx context.Context, kind types.SummaryKind, processed, created, withAlerts int) error {
	dims := kindDimensions(kind)

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("UsersProcessed"),
				Value:      aws.Float64(float64(processed)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String("SummariesCreated"),
				Value:      aws.Float64(float64(created)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String("UsersWithAlerts"),
				Value:      aws.Float64(float64(withAlerts)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish pass stats: %w", err)
	}
	return nil
}

func kindDimensions(kind types.SummaryKind) []cwTypes.Dimension {
	return []cwTypes.Dimension{
		{
			Name:  aws.String("SummaryType"),
			Value: aws.String(string(kind)),
		},
	}
}

// --- Worker ---

// worker holds the wired task implementations for the multiplexer.
type worker struct {
	orchestrator *batch.Orchestrator
	dispatcher   *batch.Dispatcher
	logger       *slog.Logger
}

// Handler is the Lambda entrypoint. It decodes the task payload and routes
// it to the appropriate pass.
func (w *worker) Handler(ctx context.Context, raw json.RawMessage) error {
	var payload batch.SummaryTaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decoding task payload: %w", err)
	}

	w.logger.InfoContext(ctx, "summary task received", "task", string(payload.Task))

	switch payload.Task {
	case batch.TaskMorningBriefing, batch.TaskEveningSummary:
		target, err := payload.ResolveTarget(time.Now().UTC())
		if err != nil {
			return err
		}
		kind, _ := payload.Task.Kind()

		report, err := w.orchestrator.RunPassFor(ctx, target, kind)
		if err != nil {
			return fmt.Errorf("running %s pass: %w", payload.Task, err)
		}
		w.logger.InfoContext(ctx, "pass report",
			"summary_type", string(report.Kind),
			"target_date", report.TargetDate,
			"total_users_processed", report.TotalUsersProcessed,
			"summaries_created", report.SummariesCreated,
			"users_with_alerts", report.UsersWithAlerts,
			"failure_count", len(report.Failures),
		)
		return nil

	case batch.TaskDispatchBriefings:
		report, err := w.dispatcher.Run(ctx)
		if err != nil {
			return fmt.Errorf("running briefing dispatch: %w", err)
		}
		w.logger.InfoContext(ctx, "dispatch report",
			"scanned", report.Scanned,
			"queued", report.Queued,
			"failure_count", len(report.Failures),
		)
		return nil

	default:
		return fmt.Errorf("unknown task %q", payload.Task)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("summary worker initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	readings := db.NewReadingRepository(pool)
	ranges := db.NewRangeRepository(pool)
	summaries := db.NewSummaryRepository(pool)

	goals := summary.Goals{Steps: cfg.Summary.StepsGoal, SleepHours: cfg.Summary.SleepGoalHours}
	analyzer := summary.Analyzer{
		WindowDays:   cfg.Summary.TrendWindowDays,
		TolerancePct: cfg.Summary.StabilityTolerance,
	}
	calc := summary.NewCalculator(readings, ranges, goals, analyzer, logger)

	metrics := &liveMetricPublisher{
		client:    cloudwatch.NewFromConfig(awsCfg),
		namespace: cfg.AWS.MetricsNamespace,
	}
	orchestrator := batch.NewOrchestrator(readings, calc, summaries, metrics, cfg.Batch.Workers, logger)

	var publisher batch.BriefingPublisher = noopPublisher{logger: logger}
	if cfg.AWS.BriefingQueueURL != "" {
		publisher = queue.NewBriefingTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS.BriefingQueueURL, logger)
	}
	dispatcher := batch.NewDispatcher(summaries, publisher, cfg.Batch.DispatchBatchLimit, logger)

	w := &worker{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		logger:       logger,
	}

	logger.Info("summary worker initialized",
		"metrics_namespace", cfg.AWS.MetricsNamespace,
		"briefing_queue_configured", cfg.AWS.BriefingQueueURL != "",
		"workers", cfg.Batch.Workers,
	)

	// Local mode: read one JSON event from stdin instead of starting the
	// Lambda runtime.
	if cfg.Environment == "local" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("no input received on stdin")
			os.Exit(1)
		}
		if err := w.Handler(ctx, json.RawMessage(payload)); err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("handler execution completed")
		return
	}

	lambda.Start(w.Handler)
}

// noopPublisher satisfies batch.BriefingPublisher for queue-less deployments.
type noopPublisher struct {
	logger *slog.Logger
}

func (p noopPublisher) Publish(ctx context.Context, msg batch.BriefingMessage) error {
	p.logger.DebugContext(ctx, "briefing publish skipped, no queue configured",
		"summary_id", msg.SummaryID,
	)
	return nil
}
