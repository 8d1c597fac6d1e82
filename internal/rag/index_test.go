package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pensieve-ai/pensieve/internal/chunker"
	"github.com/pensieve-ai/pensieve/internal/store"
)

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(nil, &mockEmbedder{}, testLogger()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil store: got %v, want ErrConfiguration", err)
	}
	if _, err := NewEngine(newMockStore(), nil, testLogger()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("nil embedder: got %v, want ErrConfiguration", err)
	}
	if _, err := NewEngine(newMockStore(), &mockEmbedder{}, nil); err != nil {
		t.Errorf("nil logger should fall back to default: %v", err)
	}
}

func TestNewEngineDefaultChunking(t *testing.T) {
	e := newTestEngine(newMockStore(), &mockEmbedder{})
	if e.chunking.MaxTokens != chunker.DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", e.chunking.MaxTokens, chunker.DefaultMaxTokens)
	}
	if e.chunking.OverlapTokens != chunker.DefaultOverlapTokens {
		t.Errorf("OverlapTokens = %d, want %d", e.chunking.OverlapTokens, chunker.DefaultOverlapTokens)
	}
}

func TestIndexDocument(t *testing.T) {
	st := newMockStore()
	emb := &mockEmbedder{}
	e := newTestEngine(st, emb)

	text := strings.Repeat("Photosynthesis converts light into chemical energy. ", 40)
	res, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       text,
		Metadata:   Metadata{Subject: "biology", Grade: "9"},
	})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got reason %q", res.Reason)
	}
	if res.ChunkCount == 0 || res.TotalTokens == 0 {
		t.Errorf("empty counters: %+v", res)
	}
	if emb.batchCalls != 1 {
		t.Errorf("batchCalls = %d, want 1", emb.batchCalls)
	}

	stored := st.chunks["doc-1"]
	if len(stored) != res.ChunkCount {
		t.Fatalf("stored %d chunks, result says %d", len(stored), res.ChunkCount)
	}
	for i, c := range stored {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Metadata["subject"] != "biology" || c.Metadata["grade"] != "9" {
			t.Errorf("chunk %d metadata = %v", i, c.Metadata)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestIndexDocumentEmptyText(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(st, &mockEmbedder{})

	// Stale chunks from an earlier version of the document.
	st.chunks["doc-1"] = []store.Chunk{{DocumentID: "doc-1", Content: "old"}}

	var states []IndexState
	res, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "   \n\t  ",
		OnProgress: func(p Progress) { states = append(states, p.State) },
	})
	if err != nil {
		t.Fatalf("degenerate document must not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("expected Success=false for whitespace-only text")
	}
	if res.Reason == "" {
		t.Error("expected a reason on the result")
	}
	if len(states) == 0 || states[len(states)-1] != StateError {
		t.Errorf("final state = %v, want error", states)
	}
	if _, ok := st.chunks["doc-1"]; ok {
		t.Error("stale chunks survived a re-index to empty")
	}
}

func TestIndexDocumentProgressSequence(t *testing.T) {
	e := newTestEngine(newMockStore(), &mockEmbedder{})

	var states []IndexState
	_, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "A short note about mitochondria.",
		OnProgress: func(p Progress) { states = append(states, p.State) },
	})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	want := []IndexState{StatePending, StateChunking, StateEmbedding, StateStoring, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestIndexDocumentPanickingCallback(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(st, &mockEmbedder{})

	res, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "Callbacks must not be able to break indexing.",
		OnProgress: func(Progress) { panic("observer bug") },
	})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success despite panicking callback")
	}
	if st.replaceCalls != 1 {
		t.Errorf("replaceCalls = %d, want 1", st.replaceCalls)
	}
}

func TestIndexDocumentEmbeddingFailure(t *testing.T) {
	st := newMockStore()
	emb := &mockEmbedder{err: errors.New("quota exceeded")}
	e := newTestEngine(st, emb)

	_, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "Some content worth embedding.",
	})
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
	if st.replaceCalls != 0 {
		t.Errorf("store written after embedding failure")
	}
}

func TestIndexDocumentStoreFailure(t *testing.T) {
	st := newMockStore()
	st.replaceErr = errors.New("connection reset")
	e := newTestEngine(st, &mockEmbedder{})

	_, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "Some content.",
	})
	if !errors.Is(err, ErrStore) {
		t.Fatalf("got %v, want ErrStore", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(st, &mockEmbedder{})

	if _, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-1",
		Text:       "Content to delete.",
	}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := e.DeleteDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, ok := st.chunks["doc-1"]; ok {
		t.Errorf("chunks survived deletion")
	}

	// Unknown document is a no-op.
	if err := e.DeleteDocument(context.Background(), "ghost"); err != nil {
		t.Errorf("deleting unknown document: %v", err)
	}
	if err := e.DeleteDocument(context.Background(), "  "); !errors.Is(err, ErrConfiguration) {
		t.Errorf("blank ID: got %v, want ErrConfiguration", err)
	}
}

func TestUnindexedDocuments(t *testing.T) {
	st := newMockStore()
	e := newTestEngine(st, &mockEmbedder{})

	if _, err := e.IndexDocument(context.Background(), IndexRequest{
		DocumentID: "doc-a",
		Text:       "Indexed already.",
	}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	missing, err := e.UnindexedDocuments(context.Background(), nil, []string{"doc-a", "doc-b", "doc-c"})
	if err != nil {
		t.Fatalf("UnindexedDocuments: %v", err)
	}
	if len(missing) != 2 || missing[0] != "doc-b" || missing[1] != "doc-c" {
		t.Errorf("missing = %v, want [doc-b doc-c]", missing)
	}
}
