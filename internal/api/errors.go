package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/storage"
)

// respondWithError はエラーを {code, message} 形式のレスポンスに変換します。
// タスク自体の失敗はここを通りません（ステータス照会で FAILURE として返します）。
func respondWithError(c *gin.Context, err error) {
	var storageErr *storage.Error
	switch {
	case errors.Is(err, jobs.ErrDependencyUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "タスクキューに接続できません。しばらくしてから再試行してください。",
		})
	case errors.As(err, &storageErr):
		status := http.StatusBadRequest
		switch storageErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "UNSUPPORTED_MEDIA_TYPE":
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{
			"code":    storageErr.Code,
			"message": storageErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func respondInvalidInput(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_INPUT",
		"message": message,
	})
}
