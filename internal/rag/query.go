package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pensieve-ai/pensieve/internal/cache"
	"github.com/pensieve-ai/pensieve/internal/store"
)

// Search retrieves the passages most relevant to a query. Pure vector
// search by default; hybrid vector+keyword scoring when req.UseHybrid is
// set. Responses are cached; cache hits skip the embedding call entirely.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrEmptyInput)
	}
	req = req.normalized()

	key := cacheKey(req)
	if resp, ok := e.cache.Get(key); ok {
		hit := *resp
		hit.Cached = true
		return &hit, nil
	}

	start := time.Now()

	total, err := e.store.CountChunks(ctx, req.TenantID, req.IncludePublic)
	if err != nil {
		return nil, fmt.Errorf("%w: counting chunks: %w", ErrStore, err)
	}
	if total == 0 {
		// Empty scope is not an error; skip the embedding call.
		resp := &SearchResponse{
			Results:    []SearchResult{},
			SearchTime: time.Since(start),
			NoContent:  true,
		}
		e.cache.Put(key, resp)
		out := *resp
		return &out, nil
	}

	queryVec, err := e.embedder.EmbedOne(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrProvider, err)
	}

	// Over-fetch to cover the offset; pagination is applied after fusion.
	params := store.SearchParams{
		TenantID:      req.TenantID,
		TopK:          req.TopK + req.Offset,
		Threshold:     req.Threshold,
		Filters:       req.Filters.toMap(),
		IncludePublic: req.IncludePublic,
	}

	vecResults, err := e.store.VectorSearch(ctx, queryVec, params)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrStore, err)
	}

	var results []SearchResult
	if req.UseHybrid {
		kwResults, err := e.store.KeywordSearch(ctx, req.Query, params)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword search: %w", ErrStore, err)
		}
		results = fuse(vecResults, kwResults, req.VectorWeight)
	} else {
		results = fromStore(vecResults)
	}

	results = paginate(results, req.Offset, req.TopK)

	resp := &SearchResponse{
		Results:        results,
		QueryEmbedding: queryVec,
		SearchTime:     time.Since(start),
		TotalChunks:    total,
		NoContent:      len(results) == 0,
	}
	e.cache.Put(key, resp)

	e.logger.Debug("search completed",
		"results", len(results),
		"hybrid", req.UseHybrid,
		"duration", resp.SearchTime)

	// Callers may mutate the response they receive (handlers strip the
	// query embedding before serializing). The cached entry must stay
	// untouched, so hand back a copy on the miss path as on the hit path.
	out := *resp
	return &out, nil
}

func cacheKey(req SearchRequest) cache.Key {
	tenant := ""
	if req.TenantID != nil {
		tenant = *req.TenantID
	}
	return cache.Key{
		Query:         req.Query,
		Tenant:        tenant,
		Filters:       req.Filters.toMap(),
		Limit:         req.TopK,
		Offset:        req.Offset,
		Threshold:     req.Threshold,
		Hybrid:        req.UseHybrid,
		VectorWeight:  req.VectorWeight,
		IncludePublic: req.IncludePublic,
	}
}

func fromStore(in []store.SearchResult) []SearchResult {
	out := make([]SearchResult, len(in))
	for i, r := range in {
		out[i] = SearchResult{
			DocumentID: r.Chunk.DocumentID,
			ChunkIndex: r.Chunk.Index,
			Content:    r.Chunk.Content,
			Metadata:   r.Chunk.Metadata,
			Similarity: r.Similarity,
			IsPublic:   r.IsPublic,
		}
	}
	return out
}

func paginate(results []SearchResult, offset, limit int) []SearchResult {
	if offset >= len(results) {
		return []SearchResult{}
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
