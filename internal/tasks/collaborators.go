package tasks

import (
	"context"

	"github.com/yourusername/areadera/internal/pdf"
)

// Chunk はコンテキストウィンドウ付きのテキスト断片です。
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// QA は小項目から生成された四択問題です。
type QA struct {
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	WrongAnswers  []string `json:"wrong_answers"`
	LookupText    string   `json:"lookup_text"`
}

// SectionReport は利用者ごとのセクション学習レポートです。
type SectionReport struct {
	UserID          int      `json:"user_id"`
	SectionID       int      `json:"section_id"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
	NextSteps       string   `json:"next_steps"`
}

// PDFAnalyzer は書籍PDFの構造を解析します。
type PDFAnalyzer interface {
	Analyze(ctx context.Context, bookID int) (*pdf.Analysis, error)
}

// TextExtractor は解析済みPDFから本文を抽出します（OCR を含む）。
type TextExtractor interface {
	Extract(ctx context.Context, analysis *pdf.Analysis) (string, error)
}

// Chunker は本文をウィンドウ単位の断片に分割します。
type Chunker interface {
	Chunk(ctx context.Context, text string, windowSize int) ([]Chunk, error)
}

// VectorWriter は断片の埋め込みをベクトルストアへ書き込み、書き込んだ件数を返します。
type VectorWriter interface {
	Store(ctx context.Context, bookID int, chunks []Chunk) (int, error)
}

// BookFinalizer は書籍を利用可能な状態にします。
type BookFinalizer interface {
	MarkReady(ctx context.Context, bookID int) error
}

// QAGenerator は小項目の内容から問題を生成します。
type QAGenerator interface {
	GenerateQA(ctx context.Context, sectionContent, subPointContent string) (*QA, error)
}

// ReportGenerator はセクションの学習レポートを生成します。
type ReportGenerator interface {
	GenerateReport(ctx context.Context, userID, sectionID int) (*SectionReport, error)
}
