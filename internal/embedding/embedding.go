// Package embedding wraps a batched embedding-generation capability.
//
// The Client owns sub-batching, a bounded concurrency window across
// sub-batches, and dimensionality validation. It deliberately does NOT
// retry: provider failures are surfaced with enough context (which
// sub-batch failed) for the caller's retry policy.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Defaults for client construction.
const (
	DefaultBatchSize   = 100
	DefaultDimension   = 1536
	DefaultConcurrency = 2

	// MaxConcurrency caps in-flight sub-batches to bound provider
	// rate-limit exposure.
	MaxConcurrency = 4
)

// Sentinel errors for embedding operations.
var (
	// ErrDimensionMismatch indicates the provider returned a vector whose
	// dimensionality does not match the configured dimension. This is a
	// configuration error, not a retry condition.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyResponse indicates the provider returned no vectors for a
	// non-empty input.
	ErrEmptyResponse = errors.New("empty embedding response")
)

// Provider generates embeddings for a batch of texts in one call.
// Implementations must return exactly one vector per input text, aligned
// by index.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config controls Client behavior. Zero values use defaults.
type Config struct {
	BatchSize   int // texts per provider call, default 100
	Dimension   int // expected vector dimensionality, default 1536
	Concurrency int // in-flight sub-batches, default 2, capped at 4

	// Limiter optionally throttles provider calls. Nil disables limiting.
	Limiter *rate.Limiter
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Dimension <= 0 {
		c.Dimension = DefaultDimension
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	return c
}

// Client batches embedding requests against a Provider.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
}

// NewClient creates an embedding client.
func NewClient(provider Provider, cfg Config, logger *slog.Logger) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: provider, cfg: cfg.withDefaults(), logger: logger}, nil
}

// Dimension returns the configured vector dimensionality.
func (c *Client) Dimension() int {
	return c.cfg.Dimension
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts and returns vectors aligned by input index.
//
// Inputs are split into sub-batches of at most BatchSize texts; sub-batches
// are issued concurrently up to the configured window. Failure of any
// sub-batch fails the whole call — there is no partial silent success.
// Output order always matches input order regardless of completion order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		batchIdx := start / c.cfg.BatchSize

		g.Go(func() error {
			if c.cfg.Limiter != nil {
				if err := c.cfg.Limiter.Wait(gctx); err != nil {
					return fmt.Errorf("rate limit wait for sub-batch %d: %w", batchIdx, err)
				}
			}

			batch := texts[start:end]
			vecs, err := c.provider.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("embedding sub-batch %d (%d texts): %w", batchIdx, len(batch), err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("sub-batch %d: %w: got %d vectors for %d texts",
					batchIdx, ErrEmptyResponse, len(vecs), len(batch))
			}

			for i, v := range vecs {
				if len(v) != c.cfg.Dimension {
					return fmt.Errorf("sub-batch %d text %d: %w: got %d, want %d",
						batchIdx, i, ErrDimensionMismatch, len(v), c.cfg.Dimension)
				}
				vectors[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("embedded batch", "texts", len(texts), "dimension", c.cfg.Dimension)
	return vectors, nil
}
