// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (PENSIEVE_* and DATABASE_URL)
//  2. Config file (~/.pensieve/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive values (the PostgreSQL password, the Gemini API key) are
// masked in MarshalJSON and String; never log the raw struct fields.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Sentinel errors returned by Validate, checkable with errors.Is.
var (
	ErrConfigNil           = errors.New("configuration is nil")
	ErrMissingAPIKey       = errors.New("missing API key")
	ErrInvalidModel        = errors.New("invalid model name")
	ErrInvalidDimension    = errors.New("invalid embedding dimension")
	ErrInvalidBatchSize    = errors.New("invalid embedding batch size")
	ErrInvalidChunking     = errors.New("invalid chunking configuration")
	ErrInvalidCache        = errors.New("invalid cache configuration")
	ErrInvalidSearch       = errors.New("invalid search defaults")
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
	ErrInvalidPostgresDB   = errors.New("invalid PostgreSQL database name")
	ErrInvalidSSLMode      = errors.New("invalid PostgreSQL SSL mode")
)

// Embedding defaults. gemini-embedding-001 emits 3072 dimensions by
// default and supports truncation via OutputDimensionality; the pgvector
// schema stores 1536.
const (
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultGenerationModel = "gemini-2.0-flash"
	DefaultDimension       = 1536
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// Model configuration
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	EmbeddingModel  string `mapstructure:"embedding_model" json:"embedding_model"`
	GenerationModel string `mapstructure:"generation_model" json:"generation_model"`
	Dimension       int    `mapstructure:"dimension" json:"dimension"`
	BatchSize       int    `mapstructure:"batch_size" json:"batch_size"`
	Concurrency     int    `mapstructure:"concurrency" json:"concurrency"`

	// Chunking defaults
	ChunkMaxTokens     int `mapstructure:"chunk_max_tokens" json:"chunk_max_tokens"`
	ChunkOverlapTokens int `mapstructure:"chunk_overlap_tokens" json:"chunk_overlap_tokens"`

	// Search defaults
	TopK         int     `mapstructure:"top_k" json:"top_k"`
	Threshold    float64 `mapstructure:"threshold" json:"threshold"`
	VectorWeight float64 `mapstructure:"vector_weight" json:"vector_weight"`

	// Result cache
	CacheCapacity   int `mapstructure:"cache_capacity" json:"cache_capacity"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server (serve mode only)
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".pensieve")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("dimension", DefaultDimension)
	v.SetDefault("batch_size", 100)
	v.SetDefault("concurrency", 2)

	v.SetDefault("chunk_max_tokens", 500)
	v.SetDefault("chunk_overlap_tokens", 50)

	v.SetDefault("top_k", 10)
	v.SetDefault("threshold", 0.7)
	v.SetDefault("vector_weight", 0.7)

	v.SetDefault("cache_capacity", 100)
	v.SetDefault("cache_ttl_seconds", 300)

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "pensieve")
	v.SetDefault("postgres_password", "pensieve_dev_password")
	v.SetDefault("postgres_db_name", "pensieve")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
}

// bindEnvVariables binds environment overrides explicitly. DATABASE_URL
// is handled separately in parseDatabaseURL.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("embedding_model", "PENSIEVE_EMBEDDING_MODEL")
	mustBind("generation_model", "PENSIEVE_GENERATION_MODEL")
	mustBind("listen_addr", "PENSIEVE_LISTEN_ADDR")
	mustBind("cors_origins", "PENSIEVE_CORS_ORIGINS")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters or
// fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. When adding a new secret field,
// update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
