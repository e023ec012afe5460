package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/wonny/findata/internal/api/handlers"
	"github.com/wonny/findata/internal/api/router"
	"github.com/wonny/findata/internal/infra/external/alphavantage"
	"github.com/wonny/findata/internal/pkg/logger"
	"github.com/wonny/findata/internal/service/financial"
)

// serveCmd API 서버
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTP API 서버 시작",
	Long: `HTTP API 서버를 시작합니다. Ctrl+C로 종료할 수 있습니다.

ALPHAVANTAGE_SYNC_INTERVAL이 설정되면 Alpha Vantage 주기 수집도 함께 실행합니다.

Examples:
  go run ./cmd/findata serve
  go run ./cmd/findata serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default API_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().
		Str("version", serviceVersion).
		Msg("🚀 Starting findata API Server...")

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 연결은 첫 요청에서 생성되지만 기동 시 상태를 남긴다
	if h := a.db.Health(ctx); h.Status != "healthy" {
		log.Warn().Str("status", h.Status).Str("error", h.Error).Msg("Database not ready at start-up")
	}

	var syncer *financial.Syncer
	if av := cfg.AlphaVantage; av.SyncInterval > 0 && av.APIKey != "" {
		syncer = financial.NewSyncer(a.svc, alphavantage.NewClient(av), av.Symbols, av.Days, av.SyncInterval)
		if err := syncer.Start(ctx); err != nil {
			return err
		}
		defer syncer.Stop()
	}

	var cacheHealth handlers.CacheHealth
	if a.cache != nil {
		cacheHealth = a.cache
	}
	accessLogger := logger.NewAccessLogger(loggerConfig(cfg))
	handler := router.NewRouter(&router.Config{
		FinancialHandler: handlers.NewFinancialHandler(a.svc, cfg.Ingest.DateFormat),
		HealthHandler:    handlers.NewHealthHandler(a.db, cacheHealth, serviceVersion),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AccessLogger:     &accessLogger,
		RequestTimeout:   cfg.Server.WriteTimeout,
	})

	port := servePort
	if port == "" {
		port = cfg.Server.Port
	}
	addr := fmt.Sprintf(":%s", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Msg("🎯 API Server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("🛑 Shutdown signal received, stopping server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("👋 findata API Server stopped")
	return nil
}
