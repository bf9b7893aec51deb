package jobs

import (
	"context"
	"sort"
	"sync"
)

// ProgressReporter は進捗チェックポイントを状態ストアへ書き込みます。
// 戻るまでに書き込みは完了しており、エラー時はタスクを中断させる必要があります。
type ProgressReporter func(ctx context.Context, progress int, step string) error

// Task はワーカーが実行できる名前付きタスクです。
type Task interface {
	Name() string
	Execute(ctx context.Context, args Args, report ProgressReporter) Outcome
}

// Outcome はタスク実行の結果です。成功と失敗のどちらか一方のみを保持します。
type Outcome struct {
	Result any
	Err    error
	// Detail は失敗時にレコードへ添える補足情報です（例: book_id）。
	Detail map[string]any
}

// Succeeded は成功結果を作ります。
func Succeeded(result any) Outcome {
	return Outcome{Result: result}
}

// Failed は失敗結果を作ります。
func Failed(err error, detail map[string]any) Outcome {
	return Outcome{Err: err, Detail: detail}
}

// OK は成功結果かどうかを返します。
func (o Outcome) OK() bool { return o.Err == nil }

// Registry はタスク名とタスク実装の対応を保持します。
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry は空の Registry を作成します。
func NewRegistry(tasks ...Task) *Registry {
	r := &Registry{tasks: make(map[string]Task)}
	for _, t := range tasks {
		r.Register(t)
	}
	return r
}

// Register はタスクを登録します。同名のタスクは置き換えられます。
func (r *Registry) Register(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name()] = t
}

// Get は名前に対応するタスクを返します。
func (r *Registry) Get(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Names は登録済みのタスク名を昇順で返します。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
