package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const probeTimeout = 2 * time.Second

// Pinger は疎通確認できる依存先です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc は関数を Pinger として扱います。
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthReport は /health のレスポンスです。
type HealthReport struct {
	Status               string `json:"status"`
	Environment          string `json:"environment"`
	DatabaseConnected    bool   `json:"database_connected"`
	RedisConnected       bool   `json:"redis_connected"`
	VectorIndexConnected bool   `json:"vector_index_connected"`
}

// Healthy はすべての依存先に接続できているかを返します。
func (r HealthReport) Healthy() bool { return r.Status == "healthy" }

// HealthChecker は依存先を並行して確認します。
type HealthChecker struct {
	Environment string
	Database    Pinger
	Redis       Pinger
	VectorIndex Pinger
}

// Check は各依存先を最大2秒で確認します。nil の依存先は未接続として扱います。
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	probes := []Pinger{h.Database, h.Redis, h.VectorIndex}
	results := make([]bool, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		if p == nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			results[i] = p.Ping(probeCtx) == nil
		}()
	}
	wg.Wait()

	report := HealthReport{
		Status:               "healthy",
		Environment:          h.Environment,
		DatabaseConnected:    results[0],
		RedisConnected:       results[1],
		VectorIndexConnected: results[2],
	}
	for _, ok := range results {
		if !ok {
			report.Status = "degraded"
		}
	}
	return report
}

// HTTPReadiness は baseURL + path に GET し、2xx なら疎通ありとみなします。
// Qdrant の /readyz を確認するために使います。
func HTTPReadiness(client *http.Client, baseURL, path string) Pinger {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + path
	return PingFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("readiness probe %s: status %d", url, resp.StatusCode)
		}
		return nil
	})
}
