// Package gemini implements the embedding and generation capabilities on
// Google's Gemini API. It is the only package that knows about a concrete
// model vendor; everything above it depends on the capability interfaces.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/pensieve-ai/pensieve/internal/rag"
)

// Default model names.
const (
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultGenerationModel = "gemini-2.0-flash"
)

// Config selects models and credentials for one Client.
type Config struct {
	APIKey          string
	EmbeddingModel  string
	GenerationModel string
	Dimension       int // embedding output dimensionality
}

func (c Config) withDefaults() Config {
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultEmbeddingModel
	}
	if c.GenerationModel == "" {
		c.GenerationModel = DefaultGenerationModel
	}
	if c.Dimension <= 0 {
		c.Dimension = 1536
	}
	return c
}

// Client talks to the Gemini API. It satisfies embedding.Provider and
// rag.GenerationProvider.
type Client struct {
	api    *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Gemini client. A missing API key is a configuration
// error, reported before any network activity.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", rag.ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &Client{
		api:    api,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "gemini"),
	}, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(c.cfg.Dimension)
	resp, err := c.api.Models.EmbedContent(ctx, c.cfg.EmbeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func buildContents(req rag.GenerationRequest) []*genai.Content {
	var sb strings.Builder
	if len(req.Context) > 0 {
		sb.WriteString("Context passages:\n\n")
		for i, passage := range req.Context {
			fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, passage)
		}
	}
	sb.WriteString("Question: ")
	sb.WriteString(req.Query)
	return []*genai.Content{genai.NewContentFromText(sb.String(), genai.RoleUser)}
}

func (c *Client) generateConfig(req rag.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

// Generate produces a complete answer in one call.
func (c *Client) Generate(ctx context.Context, req rag.GenerationRequest) (*rag.GenerationResult, error) {
	resp, err := c.api.Models.GenerateContent(ctx, c.cfg.GenerationModel, buildContents(req), c.generateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	result := &rag.GenerationResult{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// GenerateStream produces an answer incrementally. The returned channel
// is closed when the model finishes or ctx is cancelled.
func (c *Client) GenerateStream(ctx context.Context, req rag.GenerationRequest) (<-chan rag.ProviderChunk, error) {
	out := make(chan rag.ProviderChunk)
	go func() {
		defer close(out)
		for resp, err := range c.api.Models.GenerateContentStream(ctx, c.cfg.GenerationModel, buildContents(req), c.generateConfig(req)) {
			if err != nil {
				select {
				case out <- rag.ProviderChunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- rag.ProviderChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
