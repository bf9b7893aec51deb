// Package events はタスク失敗通知を Kafka に発行します。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/yourusername/areadera/internal/jobs"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// FailureNotifier は jobs.FailureNotice を JSON にしてトピックへ書き込みます。
// メッセージキーはハンドルなので、同じタスクの通知は同じパーティションに入ります。
type FailureNotifier struct {
	writer messageWriter
	topic  string
}

// NewFailureNotifier は brokers へ接続する FailureNotifier を作成します。
func NewFailureNotifier(brokers []string, topic string) *FailureNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &FailureNotifier{writer: w, topic: topic}
}

// NotifyFailure は失敗通知を1件発行します。
func (n *FailureNotifier) NotifyFailure(ctx context.Context, notice jobs.FailureNotice) error {
	msg, err := n.message(ctx, notice)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", n.topic, err)
	}
	return nil
}

func (n *FailureNotifier) message(ctx context.Context, notice jobs.FailureNotice) (kafka.Message, error) {
	value, err := json.Marshal(notice)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode failure notice: %w", err)
	}
	headers := make(HeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return kafka.Message{
		Topic:   n.topic,
		Key:     []byte(notice.Handle),
		Value:   value,
		Headers: []kafka.Header(headers),
		Time:    notice.FailedAt,
	}, nil
}

// Close はライターを閉じ、未送信のメッセージを書き出します。
func (n *FailureNotifier) Close() error {
	return n.writer.Close()
}
