package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/pensieve-ai/pensieve/db"
	"github.com/pensieve-ai/pensieve/internal/cache"
	"github.com/pensieve-ai/pensieve/internal/chunker"
	"github.com/pensieve-ai/pensieve/internal/config"
	"github.com/pensieve-ai/pensieve/internal/embedding"
	"github.com/pensieve-ai/pensieve/internal/gemini"
	"github.com/pensieve-ai/pensieve/internal/rag"
	"github.com/pensieve-ai/pensieve/internal/store"
)

// Embedding API rate limit: requests per second and burst. Conservative
// against the free-tier quota.
const (
	embedRatePerSec = 5
	embedRateBurst  = 10
)

// application holds the wired object graph for one command invocation.
type application struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	engine *rag.Engine
	logger *slog.Logger
}

// setup loads configuration, migrates the schema and wires the engine.
func setup(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.Default()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	chunkStore, err := store.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	geminiClient, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.GeminiAPIKey,
		EmbeddingModel:  cfg.EmbeddingModel,
		GenerationModel: cfg.GenerationModel,
		Dimension:       cfg.Dimension,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	embedder, err := embedding.NewClient(geminiClient, embedding.Config{
		BatchSize:   cfg.BatchSize,
		Dimension:   cfg.Dimension,
		Concurrency: cfg.Concurrency,
		Limiter:     rate.NewLimiter(rate.Limit(embedRatePerSec), embedRateBurst),
	}, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	engine, err := rag.NewEngine(chunkStore, embedder, logger,
		rag.WithGenerator(geminiClient),
		rag.WithChunking(chunker.Config{
			MaxTokens:     cfg.ChunkMaxTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
		}),
		rag.WithCache(cache.New[*rag.SearchResponse](
			cfg.CacheCapacity,
			time.Duration(cfg.CacheTTLSeconds)*time.Second,
		)),
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &application{cfg: cfg, pool: pool, engine: engine, logger: logger}, nil
}

func (a *application) close() {
	a.pool.Close()
}
