package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourusername/areadera/internal/telemetry"
)

// finalizeTimeout は終端状態の書き込みと通知にかける上限時間です。
const finalizeTimeout = 10 * time.Second

// StateWriter はワーカーが使う状態ストアの操作です。
type StateWriter interface {
	Get(ctx context.Context, handle string) (*Record, error)
	MarkStarted(ctx context.Context, handle, task string) error
	UpdateProgress(ctx context.Context, handle string, progress int, step string) error
	MarkSucceeded(ctx context.Context, handle string, result json.RawMessage) error
	MarkFailed(ctx context.Context, handle, message string, meta map[string]any) error
}

// FailureNotice は運用側へ通知するタスク失敗イベントです。
type FailureNotice struct {
	Handle   string         `json:"task_id"`
	Task     string         `json:"task"`
	Error    string         `json:"error"`
	Detail   map[string]any `json:"detail,omitempty"`
	WorkerID string         `json:"worker_id"`
	FailedAt time.Time      `json:"failed_at"`
}

// FailureNotifier はタスク失敗を外部へ通知します。
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}

// Execution は1回の実行結果の監査記録です。
type Execution struct {
	Handle     string
	Task       string
	WorkerID   string
	State      State
	DurationMs int64
	Error      string
	ExecutedAt time.Time
}

// ExecutionRecorder は実行結果を監査用に保存します。
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, exec *Execution) error
}

// Executor はキューから受け取ったタスクを実行し、進捗と終端状態を状態ストアへ書き込みます。
// asynq.Handler を実装します。
type Executor struct {
	store    StateWriter
	registry *Registry
	notifier FailureNotifier
	recorder ExecutionRecorder
	workerID string
	logger   *slog.Logger
}

// ExecutorOption は Executor の設定を変更します。
type ExecutorOption func(*Executor)

func WithFailureNotifier(n FailureNotifier) ExecutorOption     { return func(e *Executor) { e.notifier = n } }
func WithExecutionRecorder(r ExecutionRecorder) ExecutorOption { return func(e *Executor) { e.recorder = r } }
func WithWorkerID(id string) ExecutorOption                    { return func(e *Executor) { e.workerID = id } }
func WithExecutorLogger(l *slog.Logger) ExecutorOption         { return func(e *Executor) { e.logger = l } }

// NewExecutor は Executor を作成します。
func NewExecutor(store StateWriter, registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		registry: registry,
		workerID: "worker",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTask は1件のタスクを実行します。
// 失敗時は FAILURE を記録した後に *ExecutionError を返し、ブローカーの障害経路に載せます。
func (e *Executor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	name := t.Type()

	var env envelope
	decodeErr := json.Unmarshal(t.Payload(), &env)
	handle := env.Handle
	if id, ok := asynq.GetTaskID(ctx); ok && handle == "" {
		handle = id
	}
	if handle == "" {
		e.logger.Error("task without handle, discarding", slog.String("task", name))
		return fmt.Errorf("task %s has no handle: %w", name, asynq.SkipRetry)
	}

	ctx, span := otel.Tracer("executor").Start(ctx, "executor.process_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", handle),
		attribute.String("task.name", name),
		attribute.String("worker.id", e.workerID),
	)

	log := e.logger.With(
		slog.String("task_id", handle),
		slog.String("task", name),
		slog.String("worker_id", e.workerID),
	)

	// 終端状態のレコードは書き換えない（再配信時は何もしない）
	if record, err := e.store.Get(ctx, handle); err == nil && record != nil && record.State.IsTerminal() {
		log.Info("task already terminal, skipping", slog.String("state", string(record.State)))
		return nil
	}

	if err := e.store.MarkStarted(ctx, handle, name); err != nil {
		if errors.Is(err, ErrTerminalRecord) {
			log.Info("task became terminal before start, skipping")
			return nil
		}
		log.Error("failed to mark task started", slog.String("error", err.Error()))
		span.RecordError(err)
		return unavailable("mark task started", err)
	}

	telemetry.WorkerTasksInFlight.WithLabelValues(name).Inc()
	defer telemetry.WorkerTasksInFlight.WithLabelValues(name).Dec()

	start := time.Now()
	var outcome Outcome
	switch task, ok := e.registry.Get(name); {
	case decodeErr != nil:
		outcome = Failed(&ArgumentError{Index: -1, Reason: "malformed payload: " + decodeErr.Error()}, nil)
	case !ok:
		outcome = Failed(fmt.Errorf("no task registered for %q", name), nil)
	default:
		outcome = e.run(ctx, task, env.Args, e.reporter(handle, log))
	}
	duration := time.Since(start)
	telemetry.WorkerTaskDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())

	// タスクの期限切れやキャンセル後も終端状態は書き込む
	fctx, cancel := finalizeContext(ctx)
	defer cancel()

	if outcome.OK() {
		result, err := json.Marshal(outcome.Result)
		if err != nil {
			outcome = Failed(fmt.Errorf("encode result: %w", err), nil)
		} else {
			return e.finishSuccess(fctx, t, handle, name, result, duration, log)
		}
	}

	span.RecordError(outcome.Err)
	span.SetStatus(codes.Error, "task failed")
	return e.finishFailure(fctx, handle, name, outcome, duration, log)
}

// finalizeContext は ctx の値を引き継ぎ、キャンセルだけを切り離したコンテキストを返します。
func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

func (e *Executor) run(ctx context.Context, task Task, args Args, report ProgressReporter) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			outcome = Failed(fmt.Errorf("task panicked: %v", r), nil)
		}
	}()
	return task.Execute(ctx, args, report)
}

func (e *Executor) reporter(handle string, log *slog.Logger) ProgressReporter {
	return func(ctx context.Context, progress int, step string) error {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		if err := e.store.UpdateProgress(ctx, handle, progress, step); err != nil {
			return fmt.Errorf("write checkpoint %d (%s): %w", progress, step, err)
		}
		log.Debug("checkpoint", slog.Int("progress", progress), slog.String("step", step))
		return nil
	}
}

func (e *Executor) finishSuccess(ctx context.Context, t *asynq.Task, handle, name string, result json.RawMessage, duration time.Duration, log *slog.Logger) error {
	if err := e.store.MarkSucceeded(ctx, handle, result); err != nil {
		log.Error("failed to record success", slog.String("error", err.Error()))
		return unavailable("record task success", err)
	}
	if w := t.ResultWriter(); w != nil {
		if _, err := w.Write(result); err != nil {
			log.Warn("failed to write result to broker", slog.String("error", err.Error()))
		}
	}

	log.Info("task completed", slog.Int64("duration_ms", duration.Milliseconds()))
	telemetry.WorkerTasksProcessed.WithLabelValues(name, string(StateSuccess)).Inc()
	e.audit(ctx, &Execution{
		Handle:     handle,
		Task:       name,
		WorkerID:   e.workerID,
		State:      StateSuccess,
		DurationMs: duration.Milliseconds(),
	}, log)
	return nil
}

func (e *Executor) finishFailure(ctx context.Context, handle, name string, outcome Outcome, duration time.Duration, log *slog.Logger) error {
	message := outcome.Err.Error()
	log.Error("task failed",
		slog.String("error", message),
		slog.Int64("duration_ms", duration.Milliseconds()),
	)

	execErr := &ExecutionError{Task: name, Handle: handle, Err: outcome.Err}
	if err := e.store.MarkFailed(ctx, handle, message, outcome.Detail); err != nil {
		log.Error("failed to record failure", slog.String("error", err.Error()))
		return errors.Join(execErr, unavailable("record task failure", err))
	}

	telemetry.WorkerTasksProcessed.WithLabelValues(name, string(StateFailure)).Inc()
	now := time.Now().UTC()
	if e.notifier != nil {
		if err := e.notifier.NotifyFailure(ctx, FailureNotice{
			Handle:   handle,
			Task:     name,
			Error:    message,
			Detail:   outcome.Detail,
			WorkerID: e.workerID,
			FailedAt: now,
		}); err != nil {
			log.Error("failed to publish failure notice", slog.String("error", err.Error()))
		}
	}
	e.audit(ctx, &Execution{
		Handle:     handle,
		Task:       name,
		WorkerID:   e.workerID,
		State:      StateFailure,
		DurationMs: duration.Milliseconds(),
		Error:      message,
		ExecutedAt: now,
	}, log)
	return execErr
}

func (e *Executor) audit(ctx context.Context, exec *Execution, log *slog.Logger) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordExecution(ctx, exec); err != nil {
		log.Error("failed to record execution", slog.String("error", err.Error()))
	}
}
