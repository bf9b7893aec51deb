package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/pdf"
)

// BookCheckpoints は書籍処理の各フェーズ完了時に記録される進捗です。
var BookCheckpoints = []jobs.Checkpoint{
	{Progress: 10, Step: "PDF Analysis"},
	{Progress: 30, Step: "Text Extraction"},
	{Progress: 60, Step: "Text Chunking"},
	{Progress: 80, Step: "Vectorization"},
	{Progress: 100, Step: "Completed"},
}

// BookResult は書籍処理の成功結果です。
type BookResult struct {
	Status  string `json:"status"`
	BookID  int    `json:"book_id"`
	Message string `json:"message"`
}

// ProcessBookTask はアップロードされた書籍を5つのフェーズで処理します。
// 引数: [bookID int]
type ProcessBookTask struct {
	deps Dependencies
}

// NewProcessBookTask は ProcessBookTask を作成します。
func NewProcessBookTask(deps Dependencies) *ProcessBookTask {
	return &ProcessBookTask{deps: deps.withDefaults()}
}

func (t *ProcessBookTask) Name() string { return ProcessBookTaskName }

// Execute はフェーズを順に実行し、各フェーズ完了後にチェックポイントを記録します。
// いずれかのフェーズが失敗した時点で中断し、残りのフェーズは実行しません。
func (t *ProcessBookTask) Execute(ctx context.Context, args jobs.Args, report jobs.ProgressReporter) jobs.Outcome {
	if err := args.Expect(1); err != nil {
		return jobs.Failed(err, nil)
	}
	bookID, err := args.Int(0)
	if err != nil {
		return jobs.Failed(err, nil)
	}
	detail := map[string]any{"book_id": bookID}
	log := t.deps.Logger.With(slog.Int("book_id", bookID))
	log.Info("processing book")

	var (
		analysis *pdf.Analysis
		text     string
		chunks   []Chunk
	)
	phases := []func(ctx context.Context) error{
		func(ctx context.Context) (err error) {
			analysis, err = t.deps.Analyzer.Analyze(ctx, bookID)
			return err
		},
		func(ctx context.Context) (err error) {
			text, err = t.deps.Extractor.Extract(ctx, analysis)
			return err
		},
		func(ctx context.Context) (err error) {
			chunks, err = t.deps.Chunker.Chunk(ctx, text, t.deps.WindowSize)
			return err
		},
		func(ctx context.Context) error {
			stored, err := t.deps.Vectors.Store(ctx, bookID, chunks)
			if err == nil {
				log.Debug("vectors stored", slog.Int("count", stored))
			}
			return err
		},
		func(ctx context.Context) error {
			return t.deps.Finalizer.MarkReady(ctx, bookID)
		},
	}

	for i, phase := range phases {
		cp := BookCheckpoints[i]
		if err := runPhase(ctx, t.deps.PhaseTimeout, cp.Step, phase); err != nil {
			log.Error("phase failed", slog.String("step", cp.Step), slog.String("error", err.Error()))
			return jobs.Failed(err, detail)
		}
		if err := report(ctx, cp.Progress, cp.Step); err != nil {
			return jobs.Failed(err, detail)
		}
	}

	return jobs.Succeeded(BookResult{
		Status:  "SUCCESS",
		BookID:  bookID,
		Message: fmt.Sprintf("Book %d processed successfully", bookID),
	})
}
