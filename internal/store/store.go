// Package store persists document chunks and their embeddings in
// PostgreSQL with pgvector, scoped per tenant.
//
// A document's chunk set is replaced atomically: ReplaceDocument deletes
// the old rows and inserts the new ones inside a single transaction, so
// concurrent readers see either the full old set or the full new set,
// never a mixture. Rows with a NULL tenant belong to the shared/public
// corpus visible across tenants.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// insertBatchSize bounds rows per batched insert within the replace
// transaction. The logical replace stays atomic at document granularity.
const insertBatchSize = 50

// ErrNoChunks indicates a replace was attempted with an empty chunk set.
var ErrNoChunks = errors.New("no chunks to store")

// chunkCols is the standard SELECT column list for scanResults.
const chunkCols = `id, document_id, tenant_id, chunk_index, content, token_count, metadata, created_at`

const insertChunkSQL = `INSERT INTO chunks
	(document_id, tenant_id, chunk_index, content, token_count, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Chunk is one stored passage of a document.
type Chunk struct {
	ID         int64
	DocumentID string
	TenantID   *string // nil = shared/public corpus
	Index      int
	Content    string
	TokenCount int
	Embedding  []float32 // populated on write, not read back on search
	Metadata   map[string]string
	CreatedAt  time.Time
}

// SearchResult is a chunk with its relevance score for one query.
type SearchResult struct {
	Chunk      Chunk
	Similarity float64 // cosine similarity in [0,1] (vector search) or normalized rank (keyword search)
	IsPublic   bool
}

// SearchParams scope and bound a search.
type SearchParams struct {
	TenantID      *string // nil = search the public corpus only
	TopK          int
	Threshold     float64 // minimum similarity, vector search only
	Filters       map[string]string
	IncludePublic bool
}

// IndexStats summarizes one completed document replace.
type IndexStats struct {
	ChunkCount  int
	TotalTokens int
	Duration    time.Duration
}

// Stats summarizes a tenant's indexed corpus.
type Stats struct {
	TotalDocuments   int64
	IndexedDocuments int64
	TotalChunks      int64
	TotalTokens      int64
}

// Store manages chunk persistence and similarity search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a chunk Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// ReplaceDocument atomically replaces documentID's chunk set.
// Inserts are batched in groups of 50 inside one transaction; on any
// failure the transaction rolls back and the old chunk set stays intact.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, tenantID *string, chunks []Chunk) (IndexStats, error) {
	if documentID == "" {
		return IndexStats{}, fmt.Errorf("documentID is required")
	}
	if len(chunks) == 0 {
		return IndexStats{}, ErrNoChunks
	}

	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return IndexStats{}, fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return IndexStats{}, fmt.Errorf("deleting old chunks for %q: %w", documentID, err)
	}

	totalTokens := 0
	for batchStart := 0; batchStart < len(chunks); batchStart += insertBatchSize {
		batchEnd := min(batchStart+insertBatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, c := range chunks[batchStart:batchEnd] {
			metadataJSON, err := json.Marshal(c.Metadata)
			if err != nil {
				return IndexStats{}, fmt.Errorf("marshaling metadata for chunk %d: %w", c.Index, err)
			}
			batch.Queue(insertChunkSQL,
				documentID, tenantID, c.Index, c.Content, c.TokenCount,
				pgvector.NewVector(c.Embedding), metadataJSON)
			totalTokens += c.TokenCount
		}

		if err := execBatch(ctx, tx, batch); err != nil {
			return IndexStats{}, fmt.Errorf("inserting chunk batch at %d for %q: %w", batchStart, documentID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return IndexStats{}, fmt.Errorf("committing replace for %q: %w", documentID, err)
	}

	stats := IndexStats{
		ChunkCount:  len(chunks),
		TotalTokens: totalTokens,
		Duration:    time.Since(start),
	}
	s.logger.Debug("replaced document chunks",
		"document_id", documentID, "chunks", stats.ChunkCount, "tokens", stats.TotalTokens)
	return stats, nil
}

// execBatch sends a batch and surfaces the first per-statement error.
func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	return results.Close()
}

// DeleteDocument removes all chunks of documentID.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks for %q: %w", documentID, err)
	}
	s.logger.Debug("deleted document chunks", "document_id", documentID, "rows", tag.RowsAffected())
	return nil
}

// VectorSearch returns the chunks most similar to queryVec by cosine
// similarity, scored on [0,1]. Tenant-private and public rows are ranked
// by the same expression in one query, so their scores are directly
// comparable. Results below p.Threshold are excluded.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, p SearchParams) ([]SearchResult, error) {
	p = p.normalized()

	filterJSON, err := marshalFilters(p.Filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`,
		        (1 - (embedding <=> $1))::float8 AS similarity,
		        tenant_id IS NULL AS is_public
		 FROM chunks
		 WHERE (tenant_id = $2 OR ($3 AND tenant_id IS NULL))
		   AND ($4::jsonb IS NULL OR metadata @> $4::jsonb)
		   AND (1 - (embedding <=> $1)) >= $5
		 ORDER BY embedding <=> $1
		 LIMIT $6`,
		pgvector.NewVector(queryVec),
		p.TenantID,
		p.IncludePublic || p.TenantID == nil,
		filterJSON,
		p.Threshold,
		p.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return s.scanResults(rows)
}

// KeywordSearch ranks chunks by full-text relevance against query.
// Scores are ts_rank_cd values clamped to [0,1] so they can be fused with
// vector similarities without renormalization.
func (s *Store) KeywordSearch(ctx context.Context, query string, p SearchParams) ([]SearchResult, error) {
	p = p.normalized()
	if query == "" {
		return []SearchResult{}, nil
	}

	filterJSON, err := marshalFilters(p.Filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`,
		        LEAST(1.0, ts_rank_cd(search_text, plainto_tsquery('simple', $1), 1))::float8 AS score,
		        tenant_id IS NULL AS is_public
		 FROM chunks
		 WHERE search_text @@ plainto_tsquery('simple', $1)
		   AND (tenant_id = $2 OR ($3 AND tenant_id IS NULL))
		   AND ($4::jsonb IS NULL OR metadata @> $4::jsonb)
		 ORDER BY score DESC
		 LIMIT $5`,
		query,
		p.TenantID,
		p.IncludePublic || p.TenantID == nil,
		filterJSON,
		p.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return s.scanResults(rows)
}

// CountChunks returns the number of retrievable chunks in scope.
func (s *Store) CountChunks(ctx context.Context, tenantID *string, includePublic bool) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE (tenant_id = $1 OR ($2 AND tenant_id IS NULL))`,
		tenantID, includePublic || tenantID == nil,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Documents lists distinct indexed document IDs in tenant scope.
func (s *Store) Documents(ctx context.Context, tenantID *string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT document_id FROM chunks
		 WHERE (tenant_id = $1 OR ($1::text IS NULL AND tenant_id IS NULL))
		 ORDER BY document_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStats returns corpus statistics for tenantID's private scope.
func (s *Store) GetStats(ctx context.Context, tenantID *string) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT document_id), COUNT(*), COALESCE(SUM(token_count), 0)
		 FROM chunks
		 WHERE (tenant_id = $1 OR ($1::text IS NULL AND tenant_id IS NULL))`,
		tenantID,
	).Scan(&st.IndexedDocuments, &st.TotalChunks, &st.TotalTokens)
	if err != nil {
		return Stats{}, fmt.Errorf("reading corpus stats: %w", err)
	}
	// Every document this store knows about has at least one chunk.
	st.TotalDocuments = st.IndexedDocuments
	return st, nil
}

func (p SearchParams) normalized() SearchParams {
	if p.TopK <= 0 {
		p.TopK = 10
	}
	if p.Threshold < 0 {
		p.Threshold = 0
	}
	return p
}

func marshalFilters(filters map[string]string) ([]byte, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	filterJSON, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata filters: %w", err)
	}
	return filterJSON, nil
}

// scanResults converts rows from a search query into SearchResults.
func (s *Store) scanResults(rows pgx.Rows) ([]SearchResult, error) {
	results := make([]SearchResult, 0)
	for rows.Next() {
		var (
			r            SearchResult
			metadataJSON []byte
		)
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.TenantID, &r.Chunk.Index,
			&r.Chunk.Content, &r.Chunk.TokenCount, &metadataJSON, &r.Chunk.CreatedAt,
			&r.Similarity, &r.IsPublic,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &r.Chunk.Metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata",
				"chunk_id", r.Chunk.ID, "error", err)
			r.Chunk.Metadata = make(map[string]string)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}
