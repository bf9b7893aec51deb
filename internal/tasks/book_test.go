package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/pdf"
)

type checkpointRecorder struct {
	checkpoints []jobs.Checkpoint
	err         error
}

func (r *checkpointRecorder) report(_ context.Context, progress int, step string) error {
	if r.err != nil {
		return r.err
	}
	r.checkpoints = append(r.checkpoints, jobs.Checkpoint{Progress: progress, Step: step})
	return nil
}

type failingChunker struct{ err error }

func (f failingChunker) Chunk(context.Context, string, int) ([]Chunk, error) { return nil, f.err }

type countingVectors struct{ calls int }

func (c *countingVectors) Store(_ context.Context, _ int, chunks []Chunk) (int, error) {
	c.calls++
	return len(chunks), nil
}

type stuckExtractor struct{ release chan struct{} }

func (s stuckExtractor) Extract(context.Context, *pdf.Analysis) (string, error) {
	<-s.release
	return "", nil
}

func mustArgs(t *testing.T, values ...any) jobs.Args {
	t.Helper()
	args, err := jobs.EncodeArgs(values...)
	require.NoError(t, err)
	return args
}

func TestProcessBookTaskEmitsCheckpointsInOrder(t *testing.T) {
	rec := &checkpointRecorder{}
	task := NewProcessBookTask(Dependencies{})

	outcome := task.Execute(context.Background(), mustArgs(t, 123), rec.report)
	require.True(t, outcome.OK(), "unexpected failure: %v", outcome.Err)

	assert.Equal(t, BookCheckpoints, rec.checkpoints)
	assert.Equal(t, BookResult{
		Status:  "SUCCESS",
		BookID:  123,
		Message: "Book 123 processed successfully",
	}, outcome.Result)
}

func TestProcessBookTaskAbortsOnPhaseFailure(t *testing.T) {
	rec := &checkpointRecorder{}
	vectors := &countingVectors{}
	task := NewProcessBookTask(Dependencies{
		Chunker: failingChunker{err: errors.New("chunker crashed")},
		Vectors: vectors,
	})

	outcome := task.Execute(context.Background(), mustArgs(t, 7), rec.report)
	require.False(t, outcome.OK())

	assert.EqualError(t, outcome.Err, "chunker crashed")
	assert.Equal(t, map[string]any{"book_id": 7}, outcome.Detail)
	assert.Equal(t, BookCheckpoints[:2], rec.checkpoints)
	assert.Zero(t, vectors.calls)
}

func TestProcessBookTaskPhaseTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	rec := &checkpointRecorder{}
	task := NewProcessBookTask(Dependencies{
		Extractor:    stuckExtractor{release: release},
		PhaseTimeout: 20 * time.Millisecond,
	})

	outcome := task.Execute(context.Background(), mustArgs(t, 1), rec.report)
	require.False(t, outcome.OK())

	var timeoutErr *PhaseTimeoutError
	require.ErrorAs(t, outcome.Err, &timeoutErr)
	assert.Equal(t, "Text Extraction", timeoutErr.Phase)
	assert.Equal(t, BookCheckpoints[:1], rec.checkpoints)
}

func TestProcessBookTaskStopsWhenCheckpointCannotBeWritten(t *testing.T) {
	rec := &checkpointRecorder{err: errors.New("redis down")}
	vectors := &countingVectors{}
	task := NewProcessBookTask(Dependencies{Vectors: vectors})

	outcome := task.Execute(context.Background(), mustArgs(t, 1), rec.report)
	require.False(t, outcome.OK())
	assert.Zero(t, vectors.calls)
}

func TestProcessBookTaskRejectsBadArguments(t *testing.T) {
	task := NewProcessBookTask(Dependencies{})
	rec := &checkpointRecorder{}

	var argErr *jobs.ArgumentError
	outcome := task.Execute(context.Background(), mustArgs(t, "not-a-number"), rec.report)
	require.ErrorAs(t, outcome.Err, &argErr)

	outcome = task.Execute(context.Background(), mustArgs(t), rec.report)
	require.ErrorAs(t, outcome.Err, &argErr)
	assert.Empty(t, rec.checkpoints)
}

func TestRunPhaseReturnsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runPhase(ctx, time.Second, "PDF Analysis", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRegistryRegistersAllTasks(t *testing.T) {
	reg := NewRegistry(Dependencies{})
	assert.Equal(t, []string{
		GenerateQATaskName,
		GenerateSectionReportTaskName,
		ProcessBookTaskName,
	}, reg.Names())
}
