package api

import (
	"log/slog"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookieName はタスク履歴を保持するクッキー名です。
	SessionCookieName = "areadera_session"

	sessionKeyTaskIDs = "task_ids"
	maxSessionTaskIDs = 20
)

// rememberTask はこのブラウザセッションで投入したハンドルを記録します。新しいものが先頭です。
// 保存に失敗してもタスク投入は成功として扱い、警告ログだけを残します。
func (h *Handler) rememberTask(c *gin.Context, handle string) {
	session := sessions.Default(c)
	ids := append([]string{handle}, sessionTaskIDs(session)...)
	if len(ids) > maxSessionTaskIDs {
		ids = ids[:maxSessionTaskIDs]
	}
	session.Set(sessionKeyTaskIDs, strings.Join(ids, ","))
	if err := session.Save(); err != nil {
		h.logger.Warn("failed to save session task history",
			slog.String("task_id", handle),
			slog.String("error", err.Error()),
		)
	}
}

func sessionTaskIDs(session sessions.Session) []string {
	raw, _ := session.Get(sessionKeyTaskIDs).(string)
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}
