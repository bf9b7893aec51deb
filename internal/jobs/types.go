package jobs

import (
	"encoding/json"
	"time"
)

// State はタスクの実行状態を表します。
type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"

	// StateUnknown は STRICT_UNKNOWN_STATE 有効時のみ、記録のないハンドルに対して返されます。
	StateUnknown State = "UNKNOWN"
)

// IsTerminal は以降の状態遷移が起こらない状態かどうかを返します。
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailure
}

// Record はハンドルをキーとするタスク状態レコードです。
type Record struct {
	Handle    string          `json:"handle"`
	Task      string          `json:"task"`
	State     State           `json:"state"`
	Progress  int             `json:"progress"`
	Step      string          `json:"step,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Meta      map[string]any  `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// StatusView はクライアントへ返す正規化済みのステータスです。
type StatusView struct {
	TaskID   string          `json:"task_id"`
	State    State           `json:"state"`
	Progress int             `json:"progress"`
	Step     string          `json:"step,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Meta     map[string]any  `json:"meta,omitempty"`
	Message  string          `json:"message"`
}

// Checkpoint は進捗率とステップ名の固定ペアです。
type Checkpoint struct {
	Progress int
	Step     string
}

// envelope はキューに載せるメッセージ本体です。
type envelope struct {
	Handle string            `json:"handle"`
	Args   []json.RawMessage `json:"args"`
}
