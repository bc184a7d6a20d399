package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/furqanlabs/furqan/db"
	"github.com/furqanlabs/furqan/internal/answer"
	"github.com/furqanlabs/furqan/internal/config"
	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/query"
	"github.com/furqanlabs/furqan/internal/retrieval"
	"github.com/furqanlabs/furqan/internal/verse"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.LLM, err = llm.New(g, embedder, llm.Config{
		Model:          cfg.FullModelName(),
		FastModel:      cfg.FullFastModelName(),
		EmbedDimension: cfg.EmbedderDimension,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	a.Verses, err = verse.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating verse store: %w", err)
	}

	var reranker retrieval.Reranker
	if cfg.RerankEnabled {
		reranker, err = retrieval.NewLLMReranker(a.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("creating reranker: %w", err)
		}
		logger.Info("LLM reranking enabled", "candidates", cfg.RerankCandidates)
	}

	a.Retriever, err = retrieval.NewEngine(a.LLM, a.Verses, reranker, retrieval.Config{
		TopK:          cfg.TopK,
		MinSimilarity: cfg.MinSimilarity,
		Candidates:    cfg.RerankCandidates,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}

	a.Rewriter = query.NewRewriter(a.LLM, logger)

	a.Generator, err = answer.NewGenerator(a.LLM, cfg.MaxTokens, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	a.Streamer, err = answer.NewStreamer(a.LLM, cfg.MaxTokens, logger)
	if err != nil {
		return nil, fmt.Errorf("creating streamer: %w", err)
	}

	return a, nil
}

// provideOtelShutdown sets up trace export before Genkit initialization so
// Genkit's TracerProvider picks up the span processor. An empty endpoint
// disables export entirely.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the GoogleAI plugin. The plugin
// reads GEMINI_API_KEY from the environment; config validation has already
// confirmed it is set.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}
