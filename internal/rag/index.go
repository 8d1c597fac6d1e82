package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pensieve-ai/pensieve/internal/chunker"
	"github.com/pensieve-ai/pensieve/internal/store"
	"github.com/pensieve-ai/pensieve/internal/token"
)

// IndexDocument chunks, embeds and stores one document, replacing any
// previously indexed content under the same document ID. The new rows
// become visible atomically.
//
// A document with no retrievable content, whether empty text or nothing
// left after chunking, is not an error: the result carries Success=false
// with a reason, and any stale chunks for the document are removed.
func (e *Engine) IndexDocument(ctx context.Context, req IndexRequest) (*IndexResult, error) {
	start := time.Now()

	prog := Progress{
		ID:         uuid.New(),
		DocumentID: req.DocumentID,
		State:      StatePending,
		StartedAt:  start,
	}
	notify(req.OnProgress, prog)

	fail := func(state IndexState, err error) (*IndexResult, error) {
		prog.State = StateError
		prog.Reason = err.Error()
		notify(req.OnProgress, prog)
		e.logger.Error("indexing failed",
			"document_id", req.DocumentID,
			"state", string(state),
			"error", err)
		return nil, err
	}

	if strings.TrimSpace(req.DocumentID) == "" {
		return fail(StatePending, fmt.Errorf("%w: document ID is required", ErrConfiguration))
	}

	cfg := e.chunking
	if req.Chunking != nil {
		cfg = *req.Chunking
	}

	prog.State = StateChunking
	notify(req.OnProgress, prog)

	var chunks []string
	if strings.TrimSpace(req.Text) != "" {
		chunks = chunker.Split(req.Text, cfg)
	}
	if len(chunks) == 0 {
		// An expected outcome for degenerate documents: a structured
		// Success=false result, never an error. Stale rows from an
		// earlier version must not survive a re-index that produced
		// nothing.
		reason := "no retrievable content after chunking"
		if strings.TrimSpace(req.Text) == "" {
			reason = "document text is empty"
		}
		if err := e.store.DeleteDocument(ctx, req.DocumentID); err != nil {
			return fail(StateChunking, fmt.Errorf("%w: clearing stale chunks: %w", ErrStore, err))
		}
		e.cache.Clear()
		prog.State = StateError
		prog.Reason = reason
		notify(req.OnProgress, prog)
		e.logger.Warn("document not indexed",
			"document_id", req.DocumentID,
			"reason", reason)
		return &IndexResult{
			DocumentID: req.DocumentID,
			Duration:   time.Since(start),
			Success:    false,
			Reason:     reason,
		}, nil
	}

	prog.State = StateEmbedding
	prog.ChunksTotal = len(chunks)
	notify(req.OnProgress, prog)

	vectors, err := e.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fail(StateEmbedding, fmt.Errorf("%w: embedding %d chunks: %w", ErrProvider, len(chunks), err))
	}

	prog.State = StateStoring
	prog.ChunksProcessed = len(chunks)
	notify(req.OnProgress, prog)

	meta := req.Metadata.toMap()
	rows := make([]store.Chunk, len(chunks))
	totalTokens := 0
	for i, content := range chunks {
		n := token.Estimate(content)
		totalTokens += n
		rows[i] = store.Chunk{
			DocumentID: req.DocumentID,
			TenantID:   req.TenantID,
			Index:      i,
			Content:    content,
			TokenCount: n,
			Embedding:  vectors[i],
			Metadata:   meta,
		}
	}

	stats, err := e.store.ReplaceDocument(ctx, req.DocumentID, req.TenantID, rows)
	if err != nil {
		return fail(StateStoring, fmt.Errorf("%w: replacing document %s: %w", ErrStore, req.DocumentID, err))
	}

	e.cache.Clear()

	prog.State = StateCompleted
	notify(req.OnProgress, prog)

	e.logger.Info("document indexed",
		"document_id", req.DocumentID,
		"chunks", stats.ChunkCount,
		"tokens", totalTokens,
		"duration", time.Since(start))

	return &IndexResult{
		DocumentID:      req.DocumentID,
		ChunkCount:      len(chunks),
		TotalTokens:     totalTokens,
		ProcessedChunks: stats.ChunkCount,
		Duration:        time.Since(start),
		Success:         true,
	}, nil
}

// DeleteDocument removes all chunks for a document and invalidates the
// result cache. Deleting an unknown document is a no-op.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document ID is required", ErrConfiguration)
	}
	if err := e.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("%w: deleting document %s: %w", ErrStore, documentID, err)
	}
	e.cache.Clear()
	e.logger.Info("document deleted", "document_id", documentID)
	return nil
}

// Stats reports corpus-level counters for a tenant.
func (e *Engine) Stats(ctx context.Context, tenantID *string) (store.Stats, error) {
	s, err := e.store.GetStats(ctx, tenantID)
	if err != nil {
		return store.Stats{}, fmt.Errorf("%w: reading stats: %w", ErrStore, err)
	}
	return s, nil
}

// UnindexedDocuments returns the members of candidates with no indexed
// chunks for the tenant. Order follows candidates.
func (e *Engine) UnindexedDocuments(ctx context.Context, tenantID *string, candidates []string) ([]string, error) {
	indexed, err := e.store.Documents(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %w", ErrStore, err)
	}
	seen := make(map[string]struct{}, len(indexed))
	for _, id := range indexed {
		seen[id] = struct{}{}
	}
	var missing []string
	for _, id := range candidates {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
