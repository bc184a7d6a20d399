package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a Config that passes Validate with GEMINI_API_KEY set.
func validConfig() *Config {
	return &Config{
		ModelName:         "gemini-2.5-flash",
		FastModelName:     "gemini-2.5-flash-lite",
		MaxTokens:         2048,
		EmbedderModel:     DefaultEmbedderModel,
		EmbedderDimension: 3072,
		TopK:              8,
		MinSimilarity:     0.3,
		RerankCandidates:  20,
		PostgresHost:      "localhost",
		PostgresPort:      5432,
		PostgresUser:      "furqan",
		PostgresPassword:  "secret",
		PostgresDBName:    "furqan",
		PostgresSSLMode:   "disable",
		ListenAddr:        ":8080",
		RateBurst:         60,
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "  " },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty fast model name",
			mutate:  func(c *Config) { c.FastModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "max tokens too small",
			mutate:  func(c *Config) { c.MaxTokens = 10 },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "zero embedder dimension",
			mutate:  func(c *Config) { c.EmbedderDimension = 0 },
			wantErr: ErrInvalidEmbedder,
		},
		{
			name:    "top_k out of range",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "min similarity at 1.0",
			mutate:  func(c *Config) { c.MinSimilarity = 1.0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "rerank candidates below top_k",
			mutate:  func(c *Config) { c.RerankCandidates = 3 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgres,
		},
		{
			name:    "bad ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "maybe" },
			wantErr: ErrInvalidPostgres,
		},
		{
			name:    "zero rate burst",
			mutate:  func(c *Config) { c.RateBurst = 0 },
			wantErr: ErrInvalidServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	err := validConfig().Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
}

func TestFullModelName(t *testing.T) {
	cfg := &Config{ModelName: "gemini-2.5-flash", FastModelName: "googleai/gemini-2.5-flash-lite"}
	if got := cfg.FullModelName(); got != "googleai/gemini-2.5-flash" {
		t.Errorf("FullModelName() = %q", got)
	}
	// Already-qualified names pass through unchanged.
	if got := cfg.FullFastModelName(); got != "googleai/gemini-2.5-flash-lite" {
		t.Errorf("FullFastModelName() = %q", got)
	}
}

func TestIsDev(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"dev", true}, // the default value
		{"development", true},
		{"Development", true},
		{" dev ", true},
		{"prod", false},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		cfg := &Config{Environment: tt.env}
		if got := cfg.IsDev(); got != tt.want {
			t.Errorf("IsDev() with environment %q = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestPostgresURL(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "p@ss w0rd"
	u := cfg.PostgresURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("PostgresURL() = %q, want postgres:// scheme", u)
	}
	if strings.Contains(u, "p@ss w0rd") {
		t.Errorf("PostgresURL() did not encode password: %q", u)
	}
}
