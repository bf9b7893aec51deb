package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yourusername/areadera/internal/telemetry"
)

// Purger は期限切れのアップロードを削除します。
type Purger interface {
	PurgeExpired(retention time.Duration) (int, error)
}

// Janitor は cron スケジュールに従って期限切れのアップロードを削除します。
type Janitor struct {
	cron      *cron.Cron
	purger    Purger
	retention time.Duration
	logger    *slog.Logger
}

// NewJanitor は Janitor を作成します。schedule は cron 式または "@every 10m" 形式です。
func NewJanitor(purger Purger, schedule string, retention time.Duration, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		cron:      cron.New(),
		purger:    purger,
		retention: retention,
		logger:    logger.With(slog.String("component", "janitor")),
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce は削除を1回実行します。
func (j *Janitor) RunOnce() {
	purged, err := j.purger.PurgeExpired(j.retention)
	if purged > 0 {
		telemetry.UploadsPurged.Add(float64(purged))
		j.logger.Info("purged expired uploads", slog.Int("count", purged))
	}
	if err != nil {
		j.logger.Error("failed to purge uploads", slog.String("error", err.Error()))
	}
}

// Start はスケジューラーをバックグラウンドで起動します。
func (j *Janitor) Start() { j.cron.Start() }

// Stop はスケジューラーを停止し、実行中の削除が終わるまで待ちます。
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }
