package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourusername/areadera/internal/pdf"
)

// 以下は外部サービス（OCR、埋め込み、LLM）に接続するまでの仮実装です。
// いずれも固定の内容を返し、ログだけを残します。

type mockExtractor struct{ logger *slog.Logger }

func (m mockExtractor) Extract(ctx context.Context, analysis *pdf.Analysis) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.logger.Info("extracting text", slog.Int("book_id", analysis.BookID), slog.Int("pages", analysis.Pages))
	pages := analysis.Pages
	if pages == 0 {
		pages = 1
	}
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		fmt.Fprintf(&b, "Page %d of book %d. ", i, analysis.BookID)
	}
	return b.String(), nil
}

type mockChunker struct{ logger *slog.Logger }

func (m mockChunker) Chunk(ctx context.Context, text string, windowSize int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	runes := []rune(text)
	chunks := make([]Chunk, 0, len(runes)/windowSize+1)
	for start := 0; start < len(runes); start += windowSize {
		end := min(start+windowSize, len(runes))
		chunks = append(chunks, Chunk{Index: len(chunks), Text: string(runes[start:end])})
	}
	m.logger.Info("created chunks with context windows", slog.Int("chunks", len(chunks)))
	return chunks, nil
}

type mockVectorWriter struct{ logger *slog.Logger }

func (m mockVectorWriter) Store(ctx context.Context, bookID int, chunks []Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.logger.Info("storing embeddings", slog.Int("book_id", bookID), slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}

type mockFinalizer struct{ logger *slog.Logger }

func (m mockFinalizer) MarkReady(ctx context.Context, bookID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("marking book as ready", slog.Int("book_id", bookID))
	return nil
}

type mockQAGenerator struct{ logger *slog.Logger }

func (m mockQAGenerator) GenerateQA(ctx context.Context, sectionContent, subPointContent string) (*QA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logger.Info("generating Q&A for sub-point", slog.Int("section_length", len(sectionContent)))
	return &QA{
		Question:      "Sample question based on content?",
		CorrectAnswer: "Sample correct answer",
		WrongAnswers:  []string{"Wrong answer 1", "Wrong answer 2", "Wrong answer 3"},
	}, nil
}

type mockReportGenerator struct{ logger *slog.Logger }

func (m mockReportGenerator) GenerateReport(ctx context.Context, userID, sectionID int) (*SectionReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logger.Info("generating section report", slog.Int("user_id", userID), slog.Int("section_id", sectionID))
	return &SectionReport{
		UserID:          userID,
		SectionID:       sectionID,
		Strengths:       []string{"Good understanding of basic concepts"},
		Weaknesses:      []string{"Struggled with advanced topics"},
		Recommendations: []string{"Review chapter 3 examples", "Practice more problems"},
		NextSteps:       "Ready to proceed to next section",
	}, nil
}
