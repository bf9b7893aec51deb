// Package audit はタスク実行結果を PostgreSQL に記録します。
package audit

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/areadera/internal/jobs"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository は task_executions テーブルへの読み書きを行います。
// jobs.ExecutionRecorder を実装します。
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository は Repository を作成します。
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewPool は pgxpool を作成し、疎通を確認します。
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// Migrate は埋め込みのマイグレーションをファイル名順に適用し、適用したファイル名を返します。
func Migrate(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	applied := make([]string, 0, len(files))
	for _, f := range files {
		sql, err := migrations.ReadFile(f)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return applied, fmt.Errorf("execute migration %s: %w", f, err)
		}
		applied = append(applied, f)
	}
	return applied, nil
}

// Ping はデータベースへの疎通を確認します。
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RecordExecution は1回分の実行結果を追記します。
func (r *Repository) RecordExecution(ctx context.Context, exec *jobs.Execution) error {
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_executions
			(id, task_id, task_name, worker_id, status, duration_ms, error, executed_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.New().String(), exec.Handle, exec.Task, exec.WorkerID,
		string(exec.State), exec.DurationMs, exec.Error, exec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("record execution for task %s: %w", exec.Handle, err)
	}
	return nil
}

// listByHandle はハンドルの実行履歴を新しい順に返します。
func (r *Repository) listByHandle(ctx context.Context, handle string) ([]*jobs.Execution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task_id, task_name, worker_id, status, duration_ms, error, executed_at
		FROM task_executions
		WHERE task_id = $1
		ORDER BY executed_at DESC
	`, handle)
	if err != nil {
		return nil, fmt.Errorf("list executions for task %s: %w", handle, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*jobs.Execution, error) {
		var (
			exec  jobs.Execution
			state string
		)
		if err := row.Scan(&exec.Handle, &exec.Task, &exec.WorkerID, &state,
			&exec.DurationMs, &exec.Error, &exec.ExecutedAt); err != nil {
			return nil, err
		}
		exec.State = jobs.State(state)
		return &exec, nil
	})
}
