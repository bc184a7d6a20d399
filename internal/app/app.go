// Package app wires the application together: configuration, tracing,
// database pool, Genkit, and the question-answering pipeline stages. It is
// the only package that knows how the pieces connect.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/furqanlabs/furqan/internal/answer"
	"github.com/furqanlabs/furqan/internal/config"
	"github.com/furqanlabs/furqan/internal/llm"
	"github.com/furqanlabs/furqan/internal/query"
	"github.com/furqanlabs/furqan/internal/retrieval"
	"github.com/furqanlabs/furqan/internal/verse"
)

// App is the application container. Every field is constructed once in
// Setup and shared by all requests; all of them are safe for concurrent
// use.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	LLM       *llm.Client
	Verses    *verse.Store
	Retriever *retrieval.Engine
	Rewriter  *query.Rewriter
	Generator *answer.Generator
	Streamer  *answer.Streamer

	otelCleanup func()
	dbCleanup   func()
}

// Close releases all resources in reverse construction order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
