package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourusername/areadera/internal/jobs"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestNotifyFailurePublishesNotice(t *testing.T) {
	w := &fakeWriter{}
	n := &FailureNotifier{writer: w, topic: "areadera.tasks.failed"}
	failedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := n.NotifyFailure(context.Background(), jobs.FailureNotice{
		Handle:   "h1",
		Task:     "tasks.process_book_task",
		Error:    "OCR service unavailable",
		Detail:   map[string]any{"book_id": 7},
		WorkerID: "worker-1",
		FailedAt: failedAt,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "areadera.tasks.failed", msg.Topic)
	assert.Equal(t, "h1", string(msg.Key))
	assert.Equal(t, failedAt, msg.Time)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "h1", decoded["task_id"])
	assert.Equal(t, "OCR service unavailable", decoded["error"])
	assert.EqualValues(t, 7, decoded["detail"].(map[string]any)["book_id"])
}

func TestNotifyFailurePropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	n := &FailureNotifier{writer: w, topic: "t"}
	require.NoError(t, n.NotifyFailure(ctx, jobs.FailureNotice{Handle: "h1"}))

	carrier := HeaderCarrier(w.msgs[0].Headers)
	assert.Contains(t, carrier.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestNotifyFailureWrapsWriterError(t *testing.T) {
	n := &FailureNotifier{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "t"}
	err := n.NotifyFailure(context.Background(), jobs.FailureNotice{Handle: "h1"})
	assert.ErrorContains(t, err, "kafka publish to t")
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	var c HeaderCarrier
	c.Set("k", "1")
	c.Set("k", "2")
	c.Set("other", "x")
	assert.Equal(t, "2", c.Get("k"))
	assert.Equal(t, []string{"k", "other"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}
