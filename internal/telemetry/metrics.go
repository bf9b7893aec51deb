// Package telemetry はメトリクスとトレースの初期化を提供します。
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmitted はゲートウェイから投入されたタスク数です。
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areadera",
		Subsystem: "gateway",
		Name:      "tasks_submitted_total",
		Help:      "Total tasks submitted through the gateway.",
	}, []string{"task"})

	// StatusQueries はステータス照会の回数です。
	StatusQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areadera",
		Subsystem: "gateway",
		Name:      "status_queries_total",
		Help:      "Total task status queries, labelled by reported state.",
	}, []string{"state"})

	// WorkerTasksProcessed は終端状態に達したタスク数です。
	WorkerTasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "areadera",
		Subsystem: "worker",
		Name:      "tasks_processed_total",
		Help:      "Total tasks processed, labelled by task and terminal state.",
	}, []string{"task", "state"})

	// WorkerTasksInFlight は実行中のタスク数です。
	WorkerTasksInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "areadera",
		Subsystem: "worker",
		Name:      "tasks_inflight",
		Help:      "Tasks currently being executed.",
	}, []string{"task"})

	// WorkerTaskDurationSeconds はタスクの実行時間です。
	WorkerTaskDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "areadera",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Task execution time in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 900},
	}, []string{"task"})

	// UploadsPurged は保持期間を過ぎて削除されたアップロード数です。
	UploadsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "areadera",
		Subsystem: "worker",
		Name:      "uploads_purged_total",
		Help:      "Uploaded documents removed after their retention period.",
	})
)
