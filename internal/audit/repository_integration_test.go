//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/yourusername/areadera/internal/jobs"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("areadera"),
		tcPostgres.WithUsername("areadera"),
		tcPostgres.WithPassword("areadera"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := Migrate(ctx, pool)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	return NewRepository(pool)
}

func TestRepositoryRecordsExecutions(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.RecordExecution(ctx, &jobs.Execution{
		Handle:     "h1",
		Task:       "tasks.process_book_task",
		WorkerID:   "worker-1",
		State:      jobs.StateFailure,
		DurationMs: 42,
		Error:      "OCR service unavailable",
	}))

	execs, err := repo.listByHandle(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, jobs.StateFailure, execs[0].State)
	assert.Equal(t, "OCR service unavailable", execs[0].Error)
	assert.Equal(t, int64(42), execs[0].DurationMs)
	assert.False(t, execs[0].ExecutedAt.IsZero())
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	_, err := Migrate(context.Background(), repo.pool)
	require.NoError(t, err)
}
