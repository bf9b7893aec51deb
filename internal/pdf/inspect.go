// Package pdf は書籍PDFの構造解析（検証とページ数取得）を提供します。
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrInvalidPDF は PDF として解析できないファイルを表します。
var ErrInvalidPDF = errors.New("invalid pdf")

// SourceLocator は書籍IDに対応する原本ファイルを探します。
type SourceLocator interface {
	SourcePath(bookID int) (string, bool, error)
}

// Analysis は PDF 解析フェーズの結果です。
type Analysis struct {
	BookID    int    `json:"book_id"`
	Path      string `json:"path,omitempty"`
	Size      int64  `json:"size"`
	Pages     int    `json:"pages"`
	Validated bool   `json:"validated"`
}

// Analyzer は pdfcpu で原本PDFを検証し、ページ数を数えます。
type Analyzer struct {
	sources SourceLocator
}

// NewAnalyzer は Analyzer を作成します。sources が nil の場合は常に原本なしとして扱います。
func NewAnalyzer(sources SourceLocator) *Analyzer {
	return &Analyzer{sources: sources}
}

// Analyze は書籍の原本PDFを解析します。
// 原本がアップロードされていない書籍は空の解析結果を返し、後続フェーズは続行されます。
func (a *Analyzer) Analyze(ctx context.Context, bookID int) (*Analysis, error) {
	result := &Analysis{BookID: bookID}
	if a.sources == nil {
		return result, nil
	}

	path, ok, err := a.sources.SourcePath(bookID)
	if err != nil {
		return nil, fmt.Errorf("locate source for book %d: %w", bookID, err)
	}
	if !ok {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat source for book %d: %w", bookID, err)
	}

	if err := pdfapi.ValidateFile(path, nil); err != nil {
		return nil, fmt.Errorf("%w: book %d: %v", ErrInvalidPDF, bookID, err)
	}
	pages, err := pdfapi.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: book %d: page count: %v", ErrInvalidPDF, bookID, err)
	}

	result.Path = path
	result.Size = info.Size()
	result.Pages = pages
	result.Validated = true
	return result, nil
}
