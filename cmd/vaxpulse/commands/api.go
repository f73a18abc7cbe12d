package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vaxpulse/internal/api"
	"github.com/wonny/vaxpulse/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- KPI 조회 엔드포인트 제공
- Primary store 실패/빈 결과 시 외부 source로 fallback

Endpoints:
  GET  /health                              - Health check
  GET  /countries                           - 국가 목록
  GET  /kpi/monthly-growth/{country}        - 월말 누적 + MoM 성장률
  GET  /kpi/manufacturer-share/{country}    - 제조사 점유율 (top 15)
  GET  /kpi/summary/{country}               - KPI 요약
  GET  /kpi/quality/{country}               - 데이터 품질
  GET  /kpi/last-updated/{country}          - 마지막 보고일
  GET  /kpi/world-map?metric=...            - 국가별 지표 (latest_total|latest_growth)

Example:
  go run ./cmd/vaxpulse api
  go run ./cmd/vaxpulse api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT env, 8000)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== VaxPulse API Server ===")

	// 1. Wire components
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log := a.cfg, a.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	opts := a.orchestrator.Options()
	log.WithFields(map[string]interface{}{
		"port":               cfg.Port,
		"env":                cfg.Env,
		"fallback_enabled":   opts.FallbackEnabled,
		"fallback_on_empty":  opts.FallbackOnEmpty,
		"external_url":       opts.ExternalURL,
		"cache_ttl":          cfg.Source.CacheTTL,
		"shared_cache":       a.redis.Enabled(),
		"shared_fetch_limit": cfg.Source.SharedFetchLimit,
	}).Info("Initializing API server")

	// 2. Create handlers
	kpiHandler := handlers.NewKPIHandler(a.reporter, log)

	var health handlers.HealthChecker
	if a.db != nil {
		health = a.db
	}
	healthHandler := handlers.NewHealthHandler(health, opts.FallbackEnabled)

	// 3. Create router
	router := api.NewRouter(kpiHandler, healthHandler, log)

	// 4. Create server
	server := api.New(cfg, log, router)

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /countries")
	fmt.Println("  GET  /kpi/monthly-growth/{country}")
	fmt.Println("  GET  /kpi/manufacturer-share/{country}")
	fmt.Println("  GET  /kpi/summary/{country}")
	fmt.Println("  GET  /kpi/quality/{country}")
	fmt.Println("  GET  /kpi/last-updated/{country}")
	fmt.Println("  GET  /kpi/world-map?metric=latest_total|latest_growth")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
