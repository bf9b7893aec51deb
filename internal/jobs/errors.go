package jobs

import (
	"errors"
	"fmt"
)

// ErrDependencyUnavailable はブローカーまたは状態ストアに到達できないことを表します。
// ハンドル発行前の失敗であり、タスクの失敗ではありません。
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// ErrTerminalRecord は終端状態のレコードを書き換えようとした場合に返されます。
var ErrTerminalRecord = errors.New("task record is terminal")

// ErrRecordNotFound は更新対象のレコードが存在しない場合に返されます。
var ErrRecordNotFound = errors.New("task record not found")

// ExecutionError はタスク実行中の失敗をブローカーへ返すためのエラーです。
type ExecutionError struct {
	Task   string
	Handle string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %v", e.Task, e.Handle, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ArgumentError は位置引数の個数や型がタスクの期待と一致しない場合に返されます。
type ArgumentError struct {
	Index  int
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid arguments: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument %d: %s", e.Index, e.Reason)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrDependencyUnavailable, err)
}
