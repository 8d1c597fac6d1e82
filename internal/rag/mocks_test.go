package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pensieve-ai/pensieve/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// mockStore records calls and serves canned results.
type mockStore struct {
	mu sync.Mutex

	chunks     map[string][]store.Chunk // by document ID
	vecResults []store.SearchResult
	kwResults  []store.SearchResult
	count      int64

	replaceCalls int
	deleteCalls  int
	vecCalls     int
	kwCalls      int

	replaceErr error
	vecErr     error
}

func newMockStore() *mockStore {
	return &mockStore{chunks: make(map[string][]store.Chunk)}
}

func (m *mockStore) ReplaceDocument(_ context.Context, documentID string, _ *string, chunks []store.Chunk) (store.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	if m.replaceErr != nil {
		return store.IndexStats{}, m.replaceErr
	}
	m.chunks[documentID] = chunks
	total := 0
	for _, c := range chunks {
		total += c.TokenCount
	}
	return store.IndexStats{ChunkCount: len(chunks), TotalTokens: total}, nil
}

func (m *mockStore) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	delete(m.chunks, documentID)
	return nil
}

func (m *mockStore) VectorSearch(_ context.Context, _ []float32, _ store.SearchParams) ([]store.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vecCalls++
	if m.vecErr != nil {
		return nil, m.vecErr
	}
	return m.vecResults, nil
}

func (m *mockStore) KeywordSearch(_ context.Context, _ string, _ store.SearchParams) ([]store.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kwCalls++
	return m.kwResults, nil
}

func (m *mockStore) CountChunks(_ context.Context, _ *string, _ bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

func (m *mockStore) Documents(_ context.Context, _ *string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockStore) GetStats(_ context.Context, _ *string) (store.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks, tokens int64
	for _, cs := range m.chunks {
		chunks += int64(len(cs))
		for _, c := range cs {
			tokens += int64(c.TokenCount)
		}
	}
	return store.Stats{
		TotalDocuments:   int64(len(m.chunks)),
		IndexedDocuments: int64(len(m.chunks)),
		TotalChunks:      chunks,
		TotalTokens:      tokens,
	}, nil
}

// mockEmbedder returns fixed-dimension vectors and counts calls.
type mockEmbedder struct {
	mu         sync.Mutex
	oneCalls   int
	batchCalls int
	err        error
}

func (m *mockEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oneCalls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len(text)), 0, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0, 0}
	}
	return out, nil
}

// mockGenerator answers with a fixed string or replays scripted stream
// chunks.
type mockGenerator struct {
	answer    string
	chunks    []string
	err       error
	streamErr error
}

func (m *mockGenerator) Generate(_ context.Context, req GenerationRequest) (*GenerationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &GenerationResult{
		Text:       m.answer,
		TokensUsed: len(req.Context) * 10,
	}, nil
}

func (m *mockGenerator) GenerateStream(ctx context.Context, _ GenerationRequest) (<-chan ProviderChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan ProviderChunk)
	go func() {
		defer close(ch)
		for _, text := range m.chunks {
			select {
			case ch <- ProviderChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if m.streamErr != nil {
			select {
			case ch <- ProviderChunk{Err: m.streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func storeResult(docID string, index int, content string, sim float64) store.SearchResult {
	return store.SearchResult{
		Chunk: store.Chunk{
			DocumentID: docID,
			Index:      index,
			Content:    content,
		},
		Similarity: sim,
	}
}

func newTestEngine(st ChunkStore, emb Embedder, opts ...Option) *Engine {
	e, err := NewEngine(st, emb, testLogger(), opts...)
	if err != nil {
		panic(fmt.Sprintf("engine construction: %v", err))
	}
	return e
}
