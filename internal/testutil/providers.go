package testutil

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/pensieve-ai/pensieve/internal/rag"
)

// DiscardLogger returns a logger that drops all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// FakeEmbedder produces deterministic unit vectors derived from the text,
// so equal texts embed identically and similarity math stays meaningful
// without any network access. It satisfies embedding.Provider.
type FakeEmbedder struct {
	Dimension int // default 8
}

// Embed returns one deterministic unit vector per text.
func (f *FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.Dimension
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text, dim)
	}
	return out, nil
}

func deterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// xorshift keeps the components spread without math/rand state.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// FakeGenerator satisfies rag.GenerationProvider with canned output.
type FakeGenerator struct {
	Answer string
	Chunks []string
}

func (f *FakeGenerator) Generate(_ context.Context, _ rag.GenerationRequest) (*rag.GenerationResult, error) {
	return &rag.GenerationResult{Text: f.Answer}, nil
}

func (f *FakeGenerator) GenerateStream(ctx context.Context, _ rag.GenerationRequest) (<-chan rag.ProviderChunk, error) {
	ch := make(chan rag.ProviderChunk)
	go func() {
		defer close(ch)
		chunks := f.Chunks
		if len(chunks) == 0 && f.Answer != "" {
			chunks = []string{f.Answer}
		}
		for _, text := range chunks {
			select {
			case ch <- rag.ProviderChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
