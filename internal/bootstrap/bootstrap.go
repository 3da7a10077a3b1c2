package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-insights/internal/config"
	"github.com/kirillkom/document-insights/internal/core/ports"
	"github.com/kirillkom/document-insights/internal/core/usecase"
	"github.com/kirillkom/document-insights/internal/infrastructure/extractor"
	"github.com/kirillkom/document-insights/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-insights/internal/infrastructure/llm/openai"
	"github.com/kirillkom/document-insights/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-insights/internal/infrastructure/repository/memory"
	"github.com/kirillkom/document-insights/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-insights/internal/infrastructure/resilience"
	"github.com/kirillkom/document-insights/internal/infrastructure/storage/localfs"
)

type Options struct {
	Logger *slog.Logger
	// BreakerObserver receives circuit breaker transitions, usually a metrics gauge.
	BreakerObserver resilience.StateObserver
	// RequireQueue fails startup when NATS is not configured.
	RequireQueue bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo    ports.DocumentRepository
	Storage ports.ObjectStorage
	// Queue is nil when NATS_URL is empty and the queue is optional.
	Queue ports.MessageQueue

	IngestUC   *usecase.IngestDocumentUseCase
	ProcessUC  *usecase.ProcessDocumentUseCase
	DispatchUC *usecase.DispatchProcessingUseCase
	ExportUC   *usecase.ExportInsightsUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	repo, err := app.openRepository(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Repo = repo

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	app.Storage = storage

	model, err := newLanguageModel(cfg, resilience.NewExecutor(
		resilience.ModelConfig(cfg.LLMBreakerEnabled), logger, opts.BreakerObserver,
	))
	if err != nil {
		app.Close()
		return nil, err
	}

	requester := usecase.NewInsightRequester(model, usecase.InsightConfig{
		MaxInputChars:   cfg.InsightMaxInputChars,
		ParallelQueries: cfg.InsightParallelQueries,
	}, logger)

	app.IngestUC = usecase.NewIngestDocumentUseCase(repo, storage, cfg.UploadMaxBytes)
	app.ProcessUC = usecase.NewProcessDocumentUseCase(repo, extractor.New(storage, logger), requester, logger)
	app.ExportUC = usecase.NewExportInsightsUseCase(repo, logger)

	if cfg.NATSURL == "" {
		if opts.RequireQueue {
			app.Close()
			return nil, fmt.Errorf("init message queue: NATS_URL is empty")
		}
		logger.Warn("async_processing_disabled", "reason", "NATS_URL is empty")
		return app, nil
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), logger, opts.BreakerObserver),
		Logger:             logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.closers = append(app.closers, queue.Close)
	app.Queue = queue
	app.DispatchUC = usecase.NewDispatchProcessingUseCase(repo, queue)

	return app, nil
}

func (a *App) openRepository(ctx context.Context) (ports.DocumentRepository, error) {
	if a.Config.RepositoryDriver == config.RepositoryMemory {
		a.Logger.Warn("repository_in_memory", "reason", "documents are lost on restart and not shared with the worker")
		return memory.NewDocumentRepository(), nil
	}

	db, err := postgres.OpenDB(a.Config.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	repo := postgres.NewDocumentRepository(db)
	if err := ensureSchema(ctx, db, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, repo *postgres.DocumentRepository) error {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func newLanguageModel(cfg config.Config, executor *resilience.Executor) (ports.LanguageModel, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, timeout, executor), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("init language model: OPENAI_API_KEY is required for the openai provider")
		}
		return openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, timeout, executor), nil
	default:
		return nil, fmt.Errorf("init language model: unknown provider %q", cfg.LLMProvider)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
