// Package tasks はワーカーが実行するタスク（書籍処理、問題生成、レポート生成）を定義します。
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/pdf"
)

// タスク名はブローカー上のメッセージ種別としてそのまま使われます。
const (
	ProcessBookTaskName           = "tasks.process_book_task"
	GenerateQATaskName            = "tasks.generate_qa_task"
	GenerateSectionReportTaskName = "tasks.generate_section_report_task"
)

const (
	defaultWindowSize   = 512
	defaultPhaseTimeout = 5 * time.Minute
)

// Dependencies はタスクが呼び出す外部コラボレーターです。
// nil のフィールドは仮実装で補われます。
type Dependencies struct {
	Analyzer  PDFAnalyzer
	Extractor TextExtractor
	Chunker   Chunker
	Vectors   VectorWriter
	Finalizer BookFinalizer
	QA        QAGenerator
	Reports   ReportGenerator

	// PhaseTimeout は外部呼び出し1回あたりの上限時間です。
	PhaseTimeout time.Duration
	WindowSize   int
	Logger       *slog.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Analyzer == nil {
		d.Analyzer = pdf.NewAnalyzer(nil)
	}
	if d.Extractor == nil {
		d.Extractor = mockExtractor{logger: d.Logger}
	}
	if d.Chunker == nil {
		d.Chunker = mockChunker{logger: d.Logger}
	}
	if d.Vectors == nil {
		d.Vectors = mockVectorWriter{logger: d.Logger}
	}
	if d.Finalizer == nil {
		d.Finalizer = mockFinalizer{logger: d.Logger}
	}
	if d.QA == nil {
		d.QA = mockQAGenerator{logger: d.Logger}
	}
	if d.Reports == nil {
		d.Reports = mockReportGenerator{logger: d.Logger}
	}
	if d.PhaseTimeout <= 0 {
		d.PhaseTimeout = defaultPhaseTimeout
	}
	if d.WindowSize <= 0 {
		d.WindowSize = defaultWindowSize
	}
	return d
}

// NewRegistry は3種類のタスクを登録した Registry を返します。
func NewRegistry(deps Dependencies) *jobs.Registry {
	deps = deps.withDefaults()
	return jobs.NewRegistry(
		NewProcessBookTask(deps),
		NewGenerateQATask(deps),
		NewGenerateSectionReportTask(deps),
	)
}

// PhaseTimeoutError はフェーズが上限時間内に終わらなかったことを表します。
type PhaseTimeoutError struct {
	Phase   string
	Timeout time.Duration
}

func (e *PhaseTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Phase, e.Timeout)
}

// runPhase は fn を上限時間付きで実行します。
// fn がコンテキストを無視しても、上限を過ぎた時点でタイムアウトとして戻ります。
func runPhase(ctx context.Context, timeout time.Duration, phase string, fn func(ctx context.Context) error) error {
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(phaseCtx) }()

	select {
	case err := <-done:
		if err != nil && phaseCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return &PhaseTimeoutError{Phase: phase, Timeout: timeout}
		}
		return err
	case <-phaseCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &PhaseTimeoutError{Phase: phase, Timeout: timeout}
	}
}
