package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/areadera/internal/audit"
	"github.com/yourusername/areadera/internal/events"
	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/pdf"
	"github.com/yourusername/areadera/internal/storage"
	"github.com/yourusername/areadera/internal/tasks"
	"github.com/yourusername/areadera/internal/telemetry"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the task worker",
	RunE:  runWorker,
}

func runWorker(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg, "areadera-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, "areadera-worker", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	rdb, err := newRedisClient(cfg.ResultBackendURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := jobs.NewStore(rdb, cfg.ResultTTL)

	uploads, err := storage.NewLocal(cfg.UploadDir, cfg.MaxFileSize)
	if err != nil {
		return err
	}
	janitor, err := storage.NewJanitor(uploads, cfg.CleanupSchedule, cfg.UploadRetention, logger)
	if err != nil {
		return err
	}

	workerID := newWorkerID()
	opts := []jobs.ExecutorOption{
		jobs.WithWorkerID(workerID),
		jobs.WithExecutorLogger(logger),
	}

	// 監査ログは補助機能のため、データベースに接続できなくてもワーカーは起動する
	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := audit.NewPool(initCtx, cfg.DatabaseURL)
	initCancel()
	if err != nil {
		logger.Warn("execution audit disabled", slog.String("error", err.Error()))
	} else {
		defer pool.Close()
		opts = append(opts, jobs.WithExecutionRecorder(audit.NewRepository(pool)))
	}

	if len(cfg.KafkaBrokers) > 0 {
		notifier := events.NewFailureNotifier(cfg.KafkaBrokers, cfg.FailureTopic)
		defer func() { _ = notifier.Close() }()
		opts = append(opts, jobs.WithFailureNotifier(notifier))
	}

	registry := tasks.NewRegistry(tasks.Dependencies{
		Analyzer:     pdf.NewAnalyzer(uploads),
		PhaseTimeout: cfg.PhaseTimeout,
		Logger:       logger,
	})
	executor := jobs.NewExecutor(store, registry, opts...)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		BrokerURL:   cfg.BrokerURL,
		Queue:       cfg.TaskQueue,
		Concurrency: cfg.WorkerConcurrency,
	}, executor, logger)
	if err != nil {
		return err
	}

	telemetry.StartMetricsServer(ctx, cfg.MetricsAddr, logger)
	janitor.Start()
	defer janitor.Stop()

	logger.Info("worker starting",
		slog.String("worker_id", workerID),
		slog.String("queue", cfg.TaskQueue),
		slog.Int("concurrency", cfg.WorkerConcurrency),
		slog.Any("tasks", registry.Names()),
	)
	// asynq が SIGINT/SIGTERM を受けて実行中のタスクを待ってから戻る
	return worker.Run()
}

func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
