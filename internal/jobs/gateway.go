package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yourusername/areadera/internal/telemetry"
)

// Enqueuer はタスクをブローカーへ投入します。*asynq.Client が実装します。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RecordStore はゲートウェイが使う状態ストアの操作です。
type RecordStore interface {
	Get(ctx context.Context, handle string) (*Record, error)
	CreatePending(ctx context.Context, handle, task string) error
	Delete(ctx context.Context, handle string) error
}

// Gateway はリクエストをタスク投入に変換し、状態レコードをクライアント向けのステータスに変換します。
type Gateway struct {
	client        Enqueuer
	store         RecordStore
	queue         string
	retention     time.Duration
	taskTimeout   time.Duration
	strictUnknown bool
	logger        *slog.Logger
	newHandle     func() string
}

// GatewayOption は Gateway の設定を変更します。
type GatewayOption func(*Gateway)

func WithQueue(name string) GatewayOption           { return func(g *Gateway) { g.queue = name } }
func WithRetention(d time.Duration) GatewayOption   { return func(g *Gateway) { g.retention = d } }
func WithTaskTimeout(d time.Duration) GatewayOption { return func(g *Gateway) { g.taskTimeout = d } }
func WithStrictUnknown(strict bool) GatewayOption   { return func(g *Gateway) { g.strictUnknown = strict } }
func WithGatewayLogger(l *slog.Logger) GatewayOption { return func(g *Gateway) { g.logger = l } }

// NewGateway は Gateway を作成します。
func NewGateway(client Enqueuer, store RecordStore, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		client:    client,
		store:     store,
		queue:     "default",
		logger:    slog.Default(),
		newHandle: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit はタスクをキューへ投入し、ハンドルを即座に返します。完了は待ちません。
// 引数の個数や型は検証せず、不一致はワーカー側の失敗として記録されます。
func (g *Gateway) Submit(ctx context.Context, taskName string, args ...any) (string, error) {
	ctx, span := otel.Tracer("gateway").Start(ctx, "gateway.submit")
	defer span.End()

	encoded, err := EncodeArgs(args...)
	if err != nil {
		return "", err
	}

	handle := g.newHandle()
	span.SetAttributes(
		attribute.String("task.id", handle),
		attribute.String("task.name", taskName),
	)

	body, err := json.Marshal(envelope{Handle: handle, Args: encoded})
	if err != nil {
		return "", fmt.Errorf("encode task payload: %w", err)
	}

	if err := g.store.CreatePending(ctx, handle, taskName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state store unavailable")
		return "", unavailable("record pending state", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(handle),
		asynq.Queue(g.queue),
		asynq.MaxRetry(0),
	}
	if g.retention > 0 {
		opts = append(opts, asynq.Retention(g.retention))
	}
	if g.taskTimeout > 0 {
		opts = append(opts, asynq.Timeout(g.taskTimeout))
	}

	if _, err := g.client.EnqueueContext(ctx, asynq.NewTask(taskName, body), opts...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		if delErr := g.store.Delete(ctx, handle); delErr != nil {
			g.logger.Warn("failed to remove pending record",
				slog.String("task_id", handle),
				slog.String("error", delErr.Error()),
			)
		}
		return "", unavailable("enqueue task", err)
	}

	telemetry.TasksSubmitted.WithLabelValues(taskName).Inc()
	g.logger.Info("task submitted",
		slog.String("task_id", handle),
		slog.String("task", taskName),
	)
	return handle, nil
}

// QueryStatus は現在の状態レコードを読み取り、StatusView に変換します。副作用はありません。
func (g *Gateway) QueryStatus(ctx context.Context, handle string) (StatusView, error) {
	if handle == "" {
		return BuildStatusView(handle, nil, g.strictUnknown), nil
	}
	record, err := g.store.Get(ctx, handle)
	if err != nil {
		return StatusView{}, unavailable("read task state", err)
	}
	view := BuildStatusView(handle, record, g.strictUnknown)
	telemetry.StatusQueries.WithLabelValues(string(view.State)).Inc()
	return view, nil
}
