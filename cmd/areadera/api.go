package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/yourusername/areadera/internal/api"
	"github.com/yourusername/areadera/internal/audit"
	"github.com/yourusername/areadera/internal/jobs"
	"github.com/yourusername/areadera/internal/storage"
	"github.com/yourusername/areadera/internal/telemetry"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	RunE:  runAPI,
}

func runAPI(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg, "areadera-api")

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, "areadera-api", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	brokerOpt, err := asynq.ParseRedisURI(cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("failed to parse broker url: %w", err)
	}
	client := asynq.NewClient(brokerOpt)
	defer client.Close()

	rdb, err := newRedisClient(cfg.ResultBackendURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := jobs.NewStore(rdb, cfg.ResultTTL)

	gateway := jobs.NewGateway(client, store,
		jobs.WithQueue(cfg.TaskQueue),
		jobs.WithRetention(cfg.ResultTTL),
		jobs.WithTaskTimeout(cfg.TaskTimeout()),
		jobs.WithStrictUnknown(cfg.StrictUnknownState),
		jobs.WithGatewayLogger(logger),
	)

	uploads, err := storage.NewLocal(cfg.UploadDir, cfg.MaxFileSize)
	if err != nil {
		return err
	}

	// 接続は遅延されるため、データベースが落ちていても起動し /health で degraded を返す
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	health := &api.HealthChecker{
		Environment: cfg.Environment,
		Database:    audit.NewRepository(pool),
		Redis:       store,
		VectorIndex: api.HTTPReadiness(&http.Client{Timeout: 2 * time.Second}, cfg.QdrantURL, "/readyz"),
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Warn("SESSION_SECRET is not set; using an ephemeral secret")
	}

	handler := api.NewHandler(gateway, uploads, health, api.Info{
		Title:       cfg.APITitle,
		Version:     cfg.APIVersion,
		Environment: cfg.Environment,
	}, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		SessionSecret:      secret,
		SecureCookies:      cfg.Environment == "production",
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting",
			slog.String("addr", srv.Addr),
			slog.String("title", cfg.APITitle),
			slog.String("version", cfg.APIVersion),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
