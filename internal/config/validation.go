package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate checks configuration values. Returns sentinel errors checkable
// with errors.Is.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model cannot be empty", ErrInvalidModel)
	}
	if c.GenerationModel == "" {
		return fmt.Errorf("%w: generation_model cannot be empty", ErrInvalidModel)
	}

	// gemini-embedding-001 supports output dimensionality up to 3072.
	if c.Dimension < 1 || c.Dimension > 3072 {
		return fmt.Errorf("%w: must be between 1 and 3072, got %d", ErrInvalidDimension, c.Dimension)
	}

	if c.BatchSize < 1 || c.BatchSize > 250 {
		return fmt.Errorf("%w: must be between 1 and 250, got %d", ErrInvalidBatchSize, c.BatchSize)
	}

	if c.ChunkMaxTokens < 1 {
		return fmt.Errorf("%w: chunk_max_tokens must be positive, got %d", ErrInvalidChunking, c.ChunkMaxTokens)
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkMaxTokens {
		return fmt.Errorf("%w: chunk_overlap_tokens must be in [0, chunk_max_tokens), got %d",
			ErrInvalidChunking, c.ChunkOverlapTokens)
	}

	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k must be between 1 and 100, got %d", ErrInvalidSearch, c.TopK)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [0, 1], got %v", ErrInvalidSearch, c.Threshold)
	}
	if c.VectorWeight < 0 || c.VectorWeight > 1 {
		return fmt.Errorf("%w: vector_weight must be in [0, 1], got %v", ErrInvalidSearch, c.VectorWeight)
	}

	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache_capacity must be positive, got %d", ErrInvalidCache, c.CacheCapacity)
	}
	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("%w: cache_ttl_seconds must be positive, got %d", ErrInvalidCache, c.CacheTTLSeconds)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDB)
	}

	if c.PostgresPassword == "pensieve_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password in config.yaml for production deployments")
	}

	// Deprecated allow/prefer modes are excluded, they are MITM-vulnerable.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
