package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks all configuration values, failing fast on the first
// problem. Called from Load; exported so tests and callers constructing
// Config directly can reuse it.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrMissingAPIKey)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.FastModelName) == "" {
		return fmt.Errorf("%w: fast_model_name is empty", ErrInvalidModelName)
	}
	if c.MaxTokens < 256 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: max_tokens %d outside [256, 32768]", ErrInvalidModelName, c.MaxTokens)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidEmbedder)
	}
	if c.EmbedderDimension <= 0 {
		return fmt.Errorf("%w: embedder_dimension %d must be positive", ErrInvalidEmbedder, c.EmbedderDimension)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: top_k %d outside [1, 50]", ErrInvalidRetrieval, c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity >= 1 {
		return fmt.Errorf("%w: min_similarity %g outside [0, 1)", ErrInvalidRetrieval, c.MinSimilarity)
	}
	if c.RerankCandidates < c.TopK {
		return fmt.Errorf("%w: rerank_candidates %d smaller than top_k %d", ErrInvalidRetrieval, c.RerankCandidates, c.TopK)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host is empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port %d outside [1, 65535]", ErrInvalidPostgres, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name is empty", ErrInvalidPostgres)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: postgres_ssl_mode %q not recognized", ErrInvalidPostgres, c.PostgresSSLMode)
	}

	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidServer)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("%w: rate_burst %d must be positive", ErrInvalidServer, c.RateBurst)
	}

	return nil
}
