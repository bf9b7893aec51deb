// Package api は AREADERA の HTTP API（タスク投入とステータス照会）を提供します。
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/storage"
	"github.com/yourusername/areadera/internal/tasks"
)

const (
	defaultBookID          = 123
	defaultSectionContent  = "Sample section content"
	defaultSubPointContent = "Sample sub-point content"
	defaultUserID          = 1
	defaultSectionID       = 1
)

// Gateway はタスクの投入と状態照会を行います。*jobs.Gateway が実装します。
type Gateway interface {
	Submit(ctx context.Context, taskName string, args ...any) (string, error)
	QueryStatus(ctx context.Context, handle string) (jobs.StatusView, error)
}

// Uploader は書籍PDFを保存します。*storage.Local が実装します。
type Uploader interface {
	SaveMultipart(ctx context.Context, bookID int, file *multipart.FileHeader) (*storage.StoredFile, error)
}

// Info はルートとヘルスチェックで返すサービス情報です。
type Info struct {
	Title       string
	Version     string
	Environment string
}

// Handler は HTTP ハンドラーの集合です。
type Handler struct {
	gateway Gateway
	uploads Uploader
	health  *HealthChecker
	info    Info
	logger  *slog.Logger
}

// NewHandler は Handler を作成します。uploads が nil の場合、アップロードされたファイルは保存されません。
func NewHandler(gateway Gateway, uploads Uploader, health *HealthChecker, info Info, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = &HealthChecker{Environment: info.Environment}
	}
	return &Handler{
		gateway: gateway,
		uploads: uploads,
		health:  health,
		info:    info,
		logger:  logger,
	}
}

// Root は GET / のハンドラーです。
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%s is running!", h.info.Title),
	})
}

// Health は GET /health のハンドラーです。依存先のいずれかに接続できなければ 503 を返します。
func (h *Handler) Health(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// UploadBook は POST /upload のハンドラーです。
// book_id（省略時 123）の書籍処理タスクを投入します。file が添付されていれば先に保存します。
func (h *Handler) UploadBook(c *gin.Context) {
	bookID, err := intParam(c.DefaultPostForm("book_id", c.Query("book_id")), defaultBookID)
	if err != nil || bookID <= 0 {
		respondInvalidInput(c, "book_id は正の整数で指定してください。")
		return
	}

	file, err := c.FormFile("file")
	switch {
	case err == nil:
		if h.uploads == nil {
			respondInvalidInput(c, "ファイルアップロードは無効化されています。")
			return
		}
		stored, err := h.uploads.SaveMultipart(c.Request.Context(), bookID, file)
		if err != nil {
			respondWithError(c, err)
			return
		}
		h.logger.Info("book source stored",
			slog.Int("book_id", bookID),
			slog.Int64("size", stored.Size),
			slog.String("digest", stored.Digest),
		)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		respondInvalidInput(c, "multipart/form-data でPDFファイルを送信してください。")
		return
	}

	handle, err := h.gateway.Submit(c.Request.Context(), tasks.ProcessBookTaskName, bookID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.rememberTask(c, handle)

	c.JSON(http.StatusOK, gin.H{
		"message": "Book upload started",
		"book_id": bookID,
		"task_id": handle,
		"status":  "processing",
	})
}

// BookStatus は GET /books/:book_id/status のハンドラーです。書籍の永続化は未実装のため固定値を返します。
func (h *Handler) BookStatus(c *gin.Context) {
	bookID, err := strconv.Atoi(c.Param("book_id"))
	if err != nil {
		respondInvalidInput(c, "book_id は整数で指定してください。")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"book_id":  bookID,
		"status":   "processing",
		"progress": 45,
	})
}

// TaskStatus は GET /tasks/:task_id/status のハンドラーです。
// タスクの失敗は 200 の FAILURE として返します。
func (h *Handler) TaskStatus(c *gin.Context) {
	handle := strings.TrimSpace(c.Param("task_id"))
	if handle == "" {
		respondInvalidInput(c, "task_id を指定してください。")
		return
	}
	view, err := h.gateway.QueryStatus(c.Request.Context(), handle)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type generateQARequest struct {
	SectionContent  string `json:"section_content"`
	SubPointContent string `json:"sub_point_content"`
}

// GenerateQA は POST /generate-qa のハンドラーです。本文を省略するとサンプルの内容で投入します。
func (h *Handler) GenerateQA(c *gin.Context) {
	var req generateQARequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondInvalidInput(c, "リクエストボディのJSONが不正です。")
		return
	}
	if req.SectionContent == "" {
		req.SectionContent = defaultSectionContent
	}
	if req.SubPointContent == "" {
		req.SubPointContent = defaultSubPointContent
	}

	handle, err := h.gateway.Submit(c.Request.Context(), tasks.GenerateQATaskName, req.SectionContent, req.SubPointContent)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.rememberTask(c, handle)

	c.JSON(http.StatusOK, gin.H{
		"message": "Q&A generation started",
		"task_id": handle,
	})
}

type generateReportRequest struct {
	UserID    *int `json:"user_id"`
	SectionID *int `json:"section_id"`
}

// GenerateReport は POST /generate-report のハンドラーです。省略した ID は 1 になります。
func (h *Handler) GenerateReport(c *gin.Context) {
	var req generateReportRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondInvalidInput(c, "リクエストボディのJSONが不正です。")
		return
	}
	userID, sectionID := defaultUserID, defaultSectionID
	if req.UserID != nil {
		userID = *req.UserID
	}
	if req.SectionID != nil {
		sectionID = *req.SectionID
	}
	if userID <= 0 || sectionID <= 0 {
		respondInvalidInput(c, "user_id と section_id は正の整数で指定してください。")
		return
	}

	handle, err := h.gateway.Submit(c.Request.Context(), tasks.GenerateSectionReportTaskName, userID, sectionID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	h.rememberTask(c, handle)

	c.JSON(http.StatusOK, gin.H{
		"message": "Section report generation started",
		"task_id": handle,
	})
}

// SessionTasks は GET /tasks のハンドラーです。このブラウザセッションで投入したハンドルを返します。
func (h *Handler) SessionTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"task_ids": sessionTaskIDs(sessions.Default(c)),
	})
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// bindOptionalJSON は本文があるときだけ JSON として読み込みます。
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
