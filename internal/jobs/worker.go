// Package jobs は非同期タスクの投入・実行・状態管理を提供します。
//
// ゲートウェイ（Gateway）はタスクを asynq に投入して状態ストアを読み取り、
// ワーカー（Executor）はタスクを実行して進捗と終端状態を状態ストアへ書き込みます。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// WorkerConfig は asynq サーバーの設定です。
type WorkerConfig struct {
	BrokerURL   string
	Queue       string
	Concurrency int
}

// Worker は asynq サーバーと Executor をまとめたものです。
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	executor *Executor
	logger   *slog.Logger
}

// NewWorker は登録済みのすべてのタスク名を Executor にルーティングするワーカーを作成します。
func NewWorker(cfg WorkerConfig, executor *Executor, logger *slog.Logger) (*Worker, error) {
	if executor == nil {
		return nil, errors.New("executor is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse broker url: %w", err)
	}

	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		Logger: NewAsynqLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			id, _ := asynq.GetTaskID(ctx)
			logger.Error("task reported to broker as failed",
				slog.String("task_id", id),
				slog.String("task", task.Type()),
				slog.String("error", err.Error()),
			)
		}),
	})

	mux := asynq.NewServeMux()
	for _, name := range executor.registry.Names() {
		mux.Handle(name, executor)
	}

	return &Worker{
		server:   server,
		mux:      mux,
		executor: executor,
		logger:   logger,
	}, nil
}

// Run はサーバーを起動し、シグナルを受けるまでブロックします。
func (w *Worker) Run() error {
	if err := w.server.Run(w.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		return err
	}
	return nil
}

// Start はサーバーをバックグラウンドで起動します。
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown は実行中のタスクを待ってからサーバーを停止します。
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// asynqLogger は slog.Logger を asynq.Logger に適合させます。
type asynqLogger struct {
	l *slog.Logger
}

// NewAsynqLogger は asynq 用のロガーを作成します。
func NewAsynqLogger(l *slog.Logger) asynq.Logger {
	return &asynqLogger{l: l.With(slog.String("component", "asynq"))}
}

func (a *asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a *asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a *asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a *asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

func (a *asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
