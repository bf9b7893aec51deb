package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "task:state:"

	maxTxRetries = 16
)

// Store はタスク状態レコードを Redis に保存します。
// レコードを書き換えるのはそのハンドルを受け取ったワーカーのみで、ゲートウェイは読み取り専用です。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Ping は Redis への疎通を確認します。
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Get はレコードを取得します。存在しない場合は nil, nil を返します。
func (s *Store) Get(ctx context.Context, handle string) (*Record, error) {
	if handle == "" {
		return nil, fmt.Errorf("handle is required")
	}
	data, err := s.rdb.Get(ctx, stateKey(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode task record %s: %w", handle, err)
	}
	return &record, nil
}

// CreatePending は投入直後の PENDING レコードを作成します。
func (s *Store) CreatePending(ctx context.Context, handle, task string) error {
	now := s.now()
	record := &Record{
		Handle:    handle,
		Task:      task,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.ttl > 0 {
		record.ExpiresAt = now.Add(s.ttl)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, stateKey(handle), payload, s.ttl).Err()
}

// Delete はレコードを削除します。投入に失敗したハンドルの後始末に使います。
func (s *Store) Delete(ctx context.Context, handle string) error {
	return s.rdb.Del(ctx, stateKey(handle)).Err()
}

// MarkStarted は実行開始を記録します（PENDING → PROGRESS）。
// レコードが失効済みの場合は作り直します。
func (s *Store) MarkStarted(ctx context.Context, handle, task string) error {
	return s.update(ctx, handle, task, func(record *Record) {
		record.State = StateProgress
		// 再配信時はそれまでのチェックポイントを残す
		if record.Progress == 0 {
			record.Step = "Started"
		}
	})
}

// UpdateProgress はチェックポイントを記録します。進捗が後退するチェックポイントは無視します。
func (s *Store) UpdateProgress(ctx context.Context, handle string, progress int, step string) error {
	return s.update(ctx, handle, "", func(record *Record) {
		record.State = StateProgress
		// 進捗とステップは常に同じチェックポイントの組で保持する
		if progress >= record.Progress {
			record.Progress = progress
			record.Step = step
		}
	})
}

// MarkSucceeded は成功結果を記録します。
func (s *Store) MarkSucceeded(ctx context.Context, handle string, result json.RawMessage) error {
	return s.update(ctx, handle, "", func(record *Record) {
		record.State = StateSuccess
		record.Progress = 100
		record.Result = result
		record.Error = ""
	})
}

// MarkFailed は失敗内容を記録します。
func (s *Store) MarkFailed(ctx context.Context, handle, message string, meta map[string]any) error {
	return s.update(ctx, handle, "", func(record *Record) {
		record.State = StateFailure
		record.Error = message
		record.Meta = meta
		record.Result = nil
	})
}

// update は WATCH/MULTI による楽観ロックでレコードを書き換えます。
// createAs が空でなければ、レコードが存在しない場合にその名前で作成します。
func (s *Store) update(ctx context.Context, handle, createAs string, mutate func(*Record)) error {
	key := stateKey(handle)
	txf := func(tx *redis.Tx) error {
		now := s.now()
		var record Record
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if createAs == "" {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, handle)
			}
			record = Record{Handle: handle, Task: createAs, State: StatePending, CreatedAt: now}
			if s.ttl > 0 {
				record.ExpiresAt = now.Add(s.ttl)
			}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("decode task record %s: %w", handle, err)
			}
		}

		if record.State.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminalRecord, handle, record.State)
		}

		mutate(&record)
		record.UpdatedAt = now
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update task record %s: too much contention", handle)
}

func stateKey(handle string) string {
	return stateKeyPrefix + handle
}
