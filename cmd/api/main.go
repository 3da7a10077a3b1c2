package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/document-insights/internal/adapters/http"
	"github.com/kirillkom/document-insights/internal/bootstrap"
	"github.com/kirillkom/document-insights/internal/config"
	"github.com/kirillkom/document-insights/internal/infrastructure/identity/statictoken"
	"github.com/kirillkom/document-insights/internal/observability/logging"
	"github.com/kirillkom/document-insights/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticator, err := statictoken.Parse(cfg.AuthTokens)
	if err != nil {
		logger.Error("auth_config_invalid", "error", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		BreakerObserver: httpMetrics.BreakerObserver(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	deps := httpadapter.Dependencies{
		Ingestor:      app.IngestUC,
		Processor:     app.ProcessUC,
		Exporter:      app.ExportUC,
		Authenticator: authenticator,
		Metrics:       httpMetrics,
		Logger:        logger,
	}
	// A nil *DispatchProcessingUseCase must not become a non-nil interface.
	if app.DispatchUC != nil {
		deps.Dispatcher = app.DispatchUC
	}
	router, err := httpadapter.NewRouter(cfg, deps)
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Synchronous processing waits on four model calls.
		WriteTimeout: time.Duration(cfg.ProcessTimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr, "repository", cfg.RepositoryDriver, "llm_provider", cfg.LLMProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
