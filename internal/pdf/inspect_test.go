package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type staticLocator struct {
	path string
	ok   bool
	err  error
}

func (s staticLocator) SourcePath(int) (string, bool, error) { return s.path, s.ok, s.err }

// minimalPDF は指定ページ数の白紙PDFを組み立てます。
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	offsets := []int{}
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestAnalyzeWithoutSource(t *testing.T) {
	analysis, err := NewAnalyzer(staticLocator{}).Analyze(context.Background(), 123)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.BookID != 123 || analysis.Validated || analysis.Pages != 0 {
		t.Fatalf("unexpected analysis: %#v", analysis)
	}

	analysis, err = NewAnalyzer(nil).Analyze(context.Background(), 5)
	if err != nil || analysis.BookID != 5 {
		t.Fatalf("unexpected result without locator: %#v, %v", analysis, err)
	}
}

func TestAnalyzeCountsPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, minimalPDF(3), 0o600); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}

	analysis, err := NewAnalyzer(staticLocator{path: path, ok: true}).Analyze(context.Background(), 1)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if !analysis.Validated {
		t.Fatal("expected analysis to be validated")
	}
	if analysis.Pages != 3 {
		t.Fatalf("pages = %d, want 3", analysis.Pages)
	}
	if analysis.Size == 0 || analysis.Path != path {
		t.Fatalf("unexpected file metadata: %#v", analysis)
	}
}

func TestAnalyzeRejectsInvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := NewAnalyzer(staticLocator{path: path, ok: true}).Analyze(context.Background(), 1)
	if !errors.Is(err, ErrInvalidPDF) {
		t.Fatalf("expected ErrInvalidPDF, got %v", err)
	}
}

func TestAnalyzeLocatorError(t *testing.T) {
	_, err := NewAnalyzer(staticLocator{err: errors.New("disk gone")}).Analyze(context.Background(), 1)
	if err == nil {
		t.Fatal("expected locator error")
	}
}
