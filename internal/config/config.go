// Package config は環境変数から設定を読み込み、API とワーカーの両プロセスで使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はプロセス起動時に一度だけ構築され、各コンポーネントへ明示的に渡される設定です。
type Config struct {
	// 接続先（必須）
	DatabaseURL    string // 主データストア (PostgreSQL) の接続文字列
	RedisURL       string // キャッシュ/ブローカー用 Redis の接続URL
	QdrantURL      string // ベクトルインデックスのURL
	TogetherAPIKey string // LLM プロバイダーのAPIキー

	// 環境
	Environment string
	Debug       bool
	LogLevel    string

	// API メタデータ
	APITitle   string
	APIVersion string

	// サーバー設定
	Port               string
	CORSAllowedOrigins string
	SessionSecret      string

	// ブローカー/バックエンド設定（未設定時は RedisURL を使用）
	BrokerURL        string
	ResultBackendURL string

	// ジョブ/キュー設定
	TaskQueue          string
	WorkerConcurrency  int
	PhaseTimeout       time.Duration // 外部コラボレーター1フェーズあたりの上限
	ResultTTL          time.Duration // タスク状態レコードの保持期間
	StrictUnknownState bool          // true の場合、未知のハンドルを UNKNOWN として返す

	// アップロード設定
	UploadDir       string
	MaxFileSize     int64
	UploadRetention time.Duration
	CleanupSchedule string // アップロード掃除の cron 式

	// 周辺基盤（空なら無効）
	KafkaBrokers []string
	FailureTopic string
	OTelEndpoint string
	MetricsAddr  string
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	redisURL := getEnv("REDIS_URL", "")
	config := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       redisURL,
		QdrantURL:      getEnv("QDRANT_URL", ""),
		TogetherAPIKey: getEnv("TOGETHER_API_KEY", ""),

		Environment: getEnv("ENVIRONMENT", "development"),
		Debug:       getEnvAsBool("DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		APITitle:   getEnv("API_TITLE", "AREADERA API"),
		APIVersion: getEnv("API_VERSION", "1.0.0"),

		Port:               getEnv("PORT", "8000"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		SessionSecret:      getEnv("SESSION_SECRET", ""),

		// Celery 互換: ブローカー/バックエンド未指定なら主 Redis を使う
		BrokerURL:        getEnv("BROKER_URL", redisURL),
		ResultBackendURL: getEnv("RESULT_BACKEND_URL", redisURL),

		TaskQueue:          getEnv("TASK_QUEUE", "default"),
		WorkerConcurrency:  getEnvAsInt("WORKER_CONCURRENCY", 4),
		PhaseTimeout:       time.Duration(getEnvAsInt("PHASE_TIMEOUT_SECONDS", 300)) * time.Second,
		ResultTTL:          time.Duration(getEnvAsInt("RESULT_TTL_MINUTES", 24*60)) * time.Minute,
		StrictUnknownState: getEnvAsBool("STRICT_UNKNOWN_STATE", false),

		UploadDir:       getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "areadera")),
		MaxFileSize:     getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB
		UploadRetention: time.Duration(getEnvAsInt("UPLOAD_RETENTION_MINUTES", 24*60)) * time.Minute,
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 10m"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		FailureTopic: getEnv("FAILURE_TOPIC", "areadera.tasks.failed"),
		OTelEndpoint: getEnv("OTEL_ENDPOINT", ""),
		MetricsAddr:  getEnv("METRICS_ADDR", ":9095"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。必須項目が欠けている場合は起動を中止します。
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"QDRANT_URL", c.QdrantURL},
		{"TOGETHER_API_KEY", c.TogetherAPIKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.PhaseTimeout <= 0 {
		return fmt.Errorf("PHASE_TIMEOUT_SECONDS must be positive")
	}

	// 本番環境ではセッション署名鍵を必須とする
	if c.Environment == "production" && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in production")
	}

	return nil
}

// 書籍処理はフェーズ数が最も多いタスクで、タスク全体の上限はこれに合わせる
const (
	bookPhases        = 5
	taskTimeoutMargin = time.Minute
)

// TaskTimeout はタスク1件あたりの上限時間です。
// 書籍処理の全フェーズが PhaseTimeout いっぱいまでかかっても打ち切られない長さになります。
func (c *Config) TaskTimeout() time.Duration {
	return c.PhaseTimeout*bookPhases + taskTimeoutMargin
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	return parseEnv(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, strconv.ParseBool)
}

// parseEnv は環境変数を parse で変換します。未設定または変換できない場合はデフォルト値を返します。
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

// splitList はカンマ区切りの値を空要素を除いて分割します。
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
