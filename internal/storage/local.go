// Package storage はアップロードされた書籍PDFのローカル保存と期限切れファイルの削除を提供します。
package storage

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/blake2b"
)

const (
	booksDir       = "books"
	sourceFilename = "source.pdf"
	metaFilename   = "source.json"

	// sniffLen は MIME 判定に使う先頭バイト数です。
	sniffLen = 3072
)

// Error はクライアントへそのまま返せるコード付きエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// StoredFile は保存済み原本のメタデータです。
type StoredFile struct {
	BookID       int       `json:"book_id"`
	OriginalName string    `json:"original_name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	MIME         string    `json:"mime"`
	Digest       string    `json:"digest"`
	StoredAt     time.Time `json:"stored_at"`
}

// Local は書籍ごとのディレクトリに原本PDFを保存します。
// 保存先: <root>/books/<bookID>/source.pdf
type Local struct {
	root    string
	maxSize int64
	now     func() time.Time
}

// NewLocal は Local を作成し、ルートディレクトリを用意します。
func NewLocal(root string, maxSize int64) (*Local, error) {
	if root == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(filepath.Join(root, booksDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{
		root:    root,
		maxSize: maxSize,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// SaveMultipart はフォームで受け取ったファイルを保存します。
func (l *Local) SaveMultipart(ctx context.Context, bookID int, file *multipart.FileHeader) (*StoredFile, error) {
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}
	if l.maxSize > 0 && file.Size > l.maxSize {
		return nil, newError("LIMIT_EXCEEDED", fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", l.maxSize), nil)
	}
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルを開けませんでした: %w", err)
	}
	defer src.Close()
	return l.Save(ctx, bookID, file.Filename, src)
}

// Save は r の内容を書籍の原本として保存します。PDF 以外と上限超過は拒否します。
// 既存の原本は置き換えられます。
func (l *Local) Save(ctx context.Context, bookID int, name string, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("アップロードファイルの読み込みに失敗しました: %w", err)
	}
	if len(head) == 0 {
		return nil, newError("INVALID_INPUT", "アップロードされたファイルが空です。", nil)
	}
	mtype := mimetype.Detect(head)
	if !mtype.Is("application/pdf") {
		return nil, newError("UNSUPPORTED_MEDIA_TYPE", fmt.Sprintf("PDFファイルのみ対応しています（検出: %s）。", mtype.String()), nil)
	}

	dir := l.bookDir(bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "upload-*.part")
	if err != nil {
		return nil, fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash, err := blake2b.New256(nil)
	if err != nil {
		tmp.Close()
		return nil, err
	}

	var src io.Reader = br
	if l.maxSize > 0 {
		src = io.LimitReader(br, l.maxSize+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hash), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルの保存に失敗しました: %w", err)
	}
	if l.maxSize > 0 && size > l.maxSize {
		return nil, newError("LIMIT_EXCEEDED", fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", l.maxSize), nil)
	}

	path := filepath.Join(dir, sourceFilename)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("アップロードファイルの配置に失敗しました: %w", err)
	}

	stored := &StoredFile{
		BookID:       bookID,
		OriginalName: filepath.Base(name),
		Path:         path,
		Size:         size,
		MIME:         mtype.String(),
		Digest:       hex.EncodeToString(hash.Sum(nil)),
		StoredAt:     l.now(),
	}
	meta, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFilename), meta, 0o644); err != nil {
		return nil, fmt.Errorf("メタデータの保存に失敗しました: %w", err)
	}
	return stored, nil
}

// SourcePath は書籍の原本パスを返します。原本がなければ ok は false です。
func (l *Local) SourcePath(bookID int) (string, bool, error) {
	path := filepath.Join(l.bookDir(bookID), sourceFilename)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return path, true, nil
	case errors.Is(err, os.ErrNotExist):
		return "", false, nil
	default:
		return "", false, err
	}
}

// Lookup は保存済み原本のメタデータを返します。
func (l *Local) Lookup(bookID int) (*StoredFile, error) {
	data, err := os.ReadFile(filepath.Join(l.bookDir(bookID), metaFilename))
	if err != nil {
		return nil, err
	}
	var stored StoredFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode metadata for book %d: %w", bookID, err)
	}
	return &stored, nil
}

// PurgeExpired は最終更新から retention 以上経過した書籍ディレクトリを削除し、削除数を返します。
func (l *Local) PurgeExpired(retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(filepath.Join(l.root, booksDir))
	if err != nil {
		return 0, err
	}
	cutoff := l.now().Add(-retention)
	purged := 0
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(l.root, booksDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func (l *Local) bookDir(bookID int) string {
	return filepath.Join(l.root, booksDir, strconv.Itoa(bookID))
}
