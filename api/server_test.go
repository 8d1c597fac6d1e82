package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pensieve-ai/pensieve/internal/embedding"
	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
	"github.com/pensieve-ai/pensieve/internal/store"
	"github.com/pensieve-ai/pensieve/internal/testutil"
)

// fakeChunkStore keeps chunks in memory and serves canned search results.
type fakeChunkStore struct {
	docs       map[string][]store.Chunk
	vecResults []store.SearchResult
	kwResults  []store.SearchResult
	count      int64 // overrides derived chunk count when set
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{docs: make(map[string][]store.Chunk)}
}

func (f *fakeChunkStore) ReplaceDocument(_ context.Context, documentID string, _ *string, chunks []store.Chunk) (store.IndexStats, error) {
	f.docs[documentID] = chunks
	return store.IndexStats{ChunkCount: len(chunks)}, nil
}

func (f *fakeChunkStore) DeleteDocument(_ context.Context, documentID string) error {
	delete(f.docs, documentID)
	return nil
}

func (f *fakeChunkStore) VectorSearch(_ context.Context, _ []float32, _ store.SearchParams) ([]store.SearchResult, error) {
	return f.vecResults, nil
}

func (f *fakeChunkStore) KeywordSearch(_ context.Context, _ string, _ store.SearchParams) ([]store.SearchResult, error) {
	return f.kwResults, nil
}

func (f *fakeChunkStore) CountChunks(_ context.Context, _ *string, _ bool) (int64, error) {
	if f.count > 0 {
		return f.count, nil
	}
	var n int64
	for _, cs := range f.docs {
		n += int64(len(cs))
	}
	return n, nil
}

func (f *fakeChunkStore) Documents(_ context.Context, _ *string) ([]string, error) {
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeChunkStore) GetStats(_ context.Context, _ *string) (store.Stats, error) {
	var chunks int64
	for _, cs := range f.docs {
		chunks += int64(len(cs))
	}
	return store.Stats{
		TotalDocuments:   int64(len(f.docs)),
		IndexedDocuments: int64(len(f.docs)),
		TotalChunks:      chunks,
	}, nil
}

func testEngine(t *testing.T, st rag.ChunkStore, opts ...rag.Option) *rag.Engine {
	t.Helper()
	embedder, err := embedding.NewClient(&testutil.FakeEmbedder{}, embedding.Config{Dimension: 8}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("embedding client: %v", err)
	}
	engine, err := rag.NewEngine(st, embedder, testutil.DiscardLogger(), opts...)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return engine
}

func testServer(t *testing.T, st rag.ChunkStore, opts ...rag.Option) *httptest.Server {
	t.Helper()
	srv := NewServer(testEngine(t, st, opts...), nil, log.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t, newFakeChunkStore())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestReadyWithoutPool(t *testing.T) {
	ts := testServer(t, newFakeChunkStore())

	resp, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 without a pool", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := testServer(t, newFakeChunkStore())

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("X-Request-ID header missing")
	}

	// A caller-supplied ID is echoed back.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "caller-id-1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with ID: %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("X-Request-ID"); got != "caller-id-1" {
		t.Errorf("echoed ID = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("handler bug")
	})
	h := chain(mux, recoveryMiddleware(log.NewNop()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
