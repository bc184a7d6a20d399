// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or /etc/furqan/config.yaml)
//  3. Default values
//
// Error handling uses sentinel errors so callers can branch with errors.Is
// and wrap with fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedder indicates the embedder model or dimension is invalid.
	ErrInvalidEmbedder = errors.New("invalid embedder configuration")

	// ErrInvalidRetrieval indicates a retrieval parameter is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidServer indicates the HTTP server settings are invalid.
	ErrInvalidServer = errors.New("invalid server configuration")
)

// DefaultEmbedderModel is the Gemini embedding model used for the corpus.
// gemini-embedding-001 outputs 3072 dimensions by default; the verses
// schema stores vector(3072) and relies on exact (non-indexed) scans, so
// no truncation is applied.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// Generation models. ModelName answers questions; FastModelName serves
	// low-stakes auxiliary calls (query rewriting, rerank scoring).
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	FastModelName string `mapstructure:"fast_model_name" json:"fast_model_name"`
	MaxTokens     int    `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration.
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retrieval configuration.
	TopK             int     `mapstructure:"top_k" json:"top_k"`
	MinSimilarity    float64 `mapstructure:"min_similarity" json:"min_similarity"`
	RerankEnabled    bool    `mapstructure:"rerank_enabled" json:"rerank_enabled"`
	RerankCandidates int     `mapstructure:"rerank_candidates" json:"rerank_candidates"`

	// Storage configuration (see storage.go).
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration.
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Observability. Empty endpoint disables trace export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/furqan")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("fast_model_name", "gemini-2.5-flash-lite")
	viper.SetDefault("max_tokens", 2048)

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", 3072)

	viper.SetDefault("top_k", 8)
	viper.SetDefault("min_similarity", 0.3)
	viper.SetDefault("rerank_enabled", false)
	viper.SetDefault("rerank_candidates", 20)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "furqan")
	viper.SetDefault("postgres_password", "furqan_dev_password")
	viper.SetDefault("postgres_db_name", "furqan")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("service_name", "furqan")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit GoogleAI plugin, not via
// viper; Validate() only checks its presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "FURQAN_MODEL_NAME")
	mustBind("fast_model_name", "FURQAN_FAST_MODEL_NAME")
	mustBind("embedder_model", "FURQAN_EMBEDDER_MODEL")
	mustBind("listen_addr", "FURQAN_LISTEN_ADDR")
	mustBind("cors_origins", "FURQAN_CORS_ORIGINS")
	mustBind("trust_proxy", "FURQAN_TRUST_PROXY")
	mustBind("rate_burst", "FURQAN_RATE_BURST")
	mustBind("rerank_enabled", "FURQAN_RERANK_ENABLED")
	mustBind("otlp_endpoint", "FURQAN_OTLP_ENDPOINT")
	mustBind("postgres_password", "FURQAN_POSTGRES_PASSWORD")
}

// IsDev reports whether the configured environment is a development one.
// Both the default "dev" and the spelled-out "development" count.
func (c *Config) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development":
		return true
	}
	return false
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash".
func (c *Config) FullModelName() string {
	return qualifyModel(c.ModelName)
}

// FullFastModelName returns the provider-qualified fast model name.
func (c *Config) FullFastModelName() string {
	return qualifyModel(c.FastModelName)
}

func qualifyModel(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}
