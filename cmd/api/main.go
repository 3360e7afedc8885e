// Package main is the entry point for the summary API server.
//
// It loads configuration, opens the pgx connection pool, wires the summary
// service and batch components onto the core chassis, and serves HTTP with
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vitalbrief/internal/api/handlers"
	"vitalbrief/internal/batch"
	"vitalbrief/internal/config"
	"vitalbrief/internal/core"
	"vitalbrief/internal/db"
	"vitalbrief/internal/queue"
	"vitalbrief/internal/summary"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("summary API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	// Repositories.
	readings := db.NewReadingRepository(pool)
	ranges := db.NewRangeRepository(pool)
	summaries := db.NewSummaryRepository(pool)
	connections := db.NewConnectionRepository(pool)

	// Domain services.
	goals := summary.Goals{Steps: cfg.Summary.StepsGoal, SleepHours: cfg.Summary.SleepGoalHours}
	analyzer := summary.Analyzer{
		WindowDays:   cfg.Summary.TrendWindowDays,
		TolerancePct: cfg.Summary.StabilityTolerance,
	}
	calc := summary.NewCalculator(readings, ranges, goals, analyzer, logger)
	svc := summary.NewService(calc, summaries, connections, logger)

	orchestrator := batch.NewOrchestrator(readings, calc, summaries, nil, cfg.Batch.Workers, logger)

	publisher, err := newBriefingPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing briefing publisher: %w", err)
	}
	dispatcher := batch.NewDispatcher(summaries, publisher, cfg.Batch.DispatchBatchLimit, logger)

	// HTTP chassis and routes.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	summaryHandler := handlers.NewSummaryHandler(svc, srv.Validator, logger)
	adminHandler := handlers.NewAdminHandler(orchestrator, dispatcher, svc, srv.Validator, logger)

	srv.Router().Route("/v1", func(r chi.Router) {
		r.Use(srv.ServiceAuth)
		summaryHandler.RegisterRoutes(r)
		adminHandler.RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newPool opens the pgx connection pool with the configured tuning.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newBriefingPublisher builds the SQS-backed briefing trigger, or a no-op
// publisher when no queue is configured (deployments where the email worker
// polls the database directly).
func newBriefingPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (batch.BriefingPublisher, error) {
	if cfg.AWS.BriefingQueueURL == "" {
		logger.Info("no briefing queue configured, dispatch publishes are no-ops")
		return noopPublisher{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return queue.NewBriefingTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS.BriefingQueueURL, logger), nil
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

// newLogger creates a structured JSON logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
