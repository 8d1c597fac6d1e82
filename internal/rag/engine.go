package rag

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pensieve-ai/pensieve/internal/cache"
	"github.com/pensieve-ai/pensieve/internal/chunker"
)

// Engine orchestrates the full retrieval pipeline: chunking, embedding,
// storage, search and generation. All external capabilities are injected;
// the engine holds no vendor-specific code.
type Engine struct {
	store     ChunkStore
	embedder  Embedder
	generator GenerationProvider
	cache     *cache.Cache[*SearchResponse]
	chunking  chunker.Config
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator installs a generation provider. Without one, Generate
// and GenerateStream return ErrConfiguration; indexing and search work
// regardless.
func WithGenerator(g GenerationProvider) Option {
	return func(e *Engine) { e.generator = g }
}

// WithChunking overrides the default chunking configuration.
func WithChunking(cfg chunker.Config) Option {
	return func(e *Engine) { e.chunking = cfg }
}

// WithCache overrides the default result cache.
func WithCache(c *cache.Cache[*SearchResponse]) Option {
	return func(e *Engine) { e.cache = c }
}

// NewEngine wires an engine from its dependencies. store and embedder
// are required.
func NewEngine(store ChunkStore, embedder Embedder, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		store:    store,
		embedder: embedder,
		chunking: chunker.Config{
			MaxTokens:     chunker.DefaultMaxTokens,
			OverlapTokens: chunker.DefaultOverlapTokens,
		},
		logger: logger.With("component", "rag"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.New[*SearchResponse](cache.DefaultCapacity, cache.DefaultTTL)
	}
	return e, nil
}

// notify delivers a progress update to the caller's callback. Callback
// panics must never abort indexing.
func notify(fn ProgressFunc, p Progress) {
	if fn == nil {
		return
	}
	defer func() { _ = recover() }()
	p.UpdatedAt = time.Now()
	fn(p)
}
