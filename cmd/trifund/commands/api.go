package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trifund/internal/api"
	"github.com/wonny/trifund/internal/api/handlers"
	"github.com/wonny/trifund/internal/audit"
	"github.com/wonny/trifund/internal/portfolio"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API + WebSocket 서버를 시작합니다.

Endpoints:
  GET  /health                            - Health check (DB 포함)
  GET  /metrics                           - Prometheus metrics
  GET  /api/v1/portfolio/latest           - 최신 포트폴리오
  GET  /api/v1/portfolio/latest/{strategy} - 최신 포트폴리오의 단일 전략
  GET  /api/v1/portfolio/{runID}          - 특정 실행의 포트폴리오
  GET  /api/v1/runs                       - 실행 이력
  POST /api/v1/runs                       - 선정 실행 트리거 {"as_of","dry_run"}
  GET  /api/v1/runs/current               - 진행 중/최근 트리거 실행 상태
  GET  /api/v1/config                     - 전략 설정 + 해시
  GET  /api/v1/config/{hash}              - 해시에 해당하는 설정 스냅샷
  GET  /api/v1/runs/{runID}/report        - 실행 감사 리포트 (실패 포함)
  GET  /ws/portfolio                      - 발행 스트림 (WebSocket)

Example:
  go run ./cmd/trifund api
  go run ./cmd/trifund api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: $PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(a.log)

	orch, err := a.orchestrator(nil, hub)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	runner, err := a.runner(orch)
	if err != nil {
		return err
	}

	repo := portfolio.NewRepository(a.db.Pool)
	runs := handlers.NewRunHandler(ctx, runner, 30*time.Minute, a.log)

	router := api.NewRouter(api.Routes{
		Portfolio: handlers.NewPortfolioHandler(repo, repo, a.log),
		Runs:      runs,
		Config:    handlers.NewConfigHandler(a.strategy, orch.ConfigHash()),
		Audit:     handlers.NewAuditHandler(audit.NewRepository(a.db.Pool), a.log),
		Stream:    hub,
		Metrics:   a.metrics,
		Health:    a.db,
	}, a.log)

	server := api.New(a.cfg, a.log, router, hub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := runs.Wait(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("Triggered run did not stop before shutdown timeout")
	}

	a.log.Info("Server stopped")
	return nil
}
