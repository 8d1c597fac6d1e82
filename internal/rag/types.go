package rag

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pensieve-ai/pensieve/internal/chunker"
	"github.com/pensieve-ai/pensieve/internal/store"
)

// Defaults for search and generation requests.
const (
	DefaultTopK         = 10
	DefaultThreshold    = 0.7
	DefaultVectorWeight = 0.7
)

// ChunkStore is the persistence interface the engine depends on.
// *store.Store satisfies it.
type ChunkStore interface {
	ReplaceDocument(ctx context.Context, documentID string, tenantID *string, chunks []store.Chunk) (store.IndexStats, error)
	DeleteDocument(ctx context.Context, documentID string) error
	VectorSearch(ctx context.Context, queryVec []float32, p store.SearchParams) ([]store.SearchResult, error)
	KeywordSearch(ctx context.Context, query string, p store.SearchParams) ([]store.SearchResult, error)
	CountChunks(ctx context.Context, tenantID *string, includePublic bool) (int64, error)
	Documents(ctx context.Context, tenantID *string) ([]string, error)
	GetStats(ctx context.Context, tenantID *string) (store.Stats, error)
}

// Embedder is the embedding capability the engine depends on.
// *embedding.Client satisfies it.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationRequest carries one generation call's inputs.
type GenerationRequest struct {
	SystemPrompt string
	Query        string
	Context      []string // retrieved passages, highest ranked first
}

// GenerationResult is a completed, non-streaming generation.
type GenerationResult struct {
	Text       string
	TokensUsed int
}

// ProviderChunk is one increment of a streaming generation. The provider
// closes its channel when generation completes; a non-nil Err terminates
// the stream.
type ProviderChunk struct {
	Text string
	Err  error
}

// GenerationProvider abstracts a text-generation vendor. One concrete
// implementation exists per vendor; the engine is written against this
// interface only.
type GenerationProvider interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)

	// GenerateStream starts a generation and returns a channel of text
	// increments. Implementations must honor ctx cancellation and close
	// the channel when done.
	GenerateStream(ctx context.Context, req GenerationRequest) (<-chan ProviderChunk, error)
}

// Metadata is the caller-supplied document description copied onto every
// chunk for self-contained filtering.
type Metadata struct {
	Subject      string `json:"subject,omitempty"`
	Grade        string `json:"grade,omitempty"`
	Unit         string `json:"unit,omitempty"`
	SourceFile   string `json:"sourceFile,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

// metadata keys as stored on chunk rows.
const (
	metaSubject      = "subject"
	metaGrade        = "grade"
	metaUnit         = "unit"
	metaSourceFile   = "source_file"
	metaDocumentType = "document_type"
)

func (m Metadata) toMap() map[string]string {
	out := make(map[string]string)
	if m.Subject != "" {
		out[metaSubject] = m.Subject
	}
	if m.Grade != "" {
		out[metaGrade] = m.Grade
	}
	if m.Unit != "" {
		out[metaUnit] = m.Unit
	}
	if m.SourceFile != "" {
		out[metaSourceFile] = m.SourceFile
	}
	if m.DocumentType != "" {
		out[metaDocumentType] = m.DocumentType
	}
	return out
}

// Filters restrict a search by chunk metadata. Zero-value fields are
// not applied.
type Filters struct {
	Subject      string `json:"subject,omitempty"`
	Grade        string `json:"grade,omitempty"`
	Unit         string `json:"unit,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

func (f Filters) toMap() map[string]string {
	out := make(map[string]string)
	if f.Subject != "" {
		out[metaSubject] = f.Subject
	}
	if f.Grade != "" {
		out[metaGrade] = f.Grade
	}
	if f.Unit != "" {
		out[metaUnit] = f.Unit
	}
	if f.DocumentType != "" {
		out[metaDocumentType] = f.DocumentType
	}
	return out
}

// IndexRequest asks the engine to (re-)index one document.
type IndexRequest struct {
	DocumentID string
	TenantID   *string // nil = shared/public corpus
	Text       string
	Metadata   Metadata

	// Chunking overrides the engine's default chunking config when non-nil.
	Chunking *chunker.Config

	// OnProgress, when non-nil, is invoked on every state transition.
	// It is fire-and-forget: panics are recovered and never abort indexing.
	OnProgress ProgressFunc
}

// IndexResult reports one indexing call's outcome. An expected-degenerate
// outcome (no retrievable content) is reported with Success=false and a
// reason rather than an error.
type IndexResult struct {
	DocumentID      string        `json:"documentId"`
	ChunkCount      int           `json:"chunkCount"`
	TotalTokens     int           `json:"totalTokens"`
	ProcessedChunks int           `json:"processedChunks"`
	Duration        time.Duration `json:"processingTimeMs"`
	Success         bool          `json:"success"`
	Reason          string        `json:"error,omitempty"`
}

// IndexState is one phase of the indexing state machine.
type IndexState string

// Indexing states, in order. StateError is terminal and reachable from
// any non-terminal state.
const (
	StatePending   IndexState = "pending"
	StateChunking  IndexState = "chunking"
	StateEmbedding IndexState = "embedding"
	StateStoring   IndexState = "storing"
	StateCompleted IndexState = "completed"
	StateError     IndexState = "error"
)

// Progress is a single-document, in-flight progress record. It lives for
// one indexing call and is not persisted.
type Progress struct {
	ID              uuid.UUID
	DocumentID      string
	State           IndexState
	ChunksTotal     int
	ChunksProcessed int
	StartedAt       time.Time
	UpdatedAt       time.Time
	Reason          string // populated in StateError
}

// ProgressFunc receives state-transition notifications during indexing.
type ProgressFunc func(Progress)

// SearchRequest describes one query. Use NewSearchRequest for spec
// defaults (TopK 10, Threshold 0.7, VectorWeight 0.7, public corpus
// included).
type SearchRequest struct {
	Query         string  `json:"query"`
	TenantID      *string `json:"tenantId,omitempty"`
	TopK          int     `json:"topK"`
	Offset        int     `json:"offset"`
	Threshold     float64 `json:"threshold"`
	Filters       Filters `json:"filters"`
	UseHybrid     bool    `json:"useHybrid"`
	VectorWeight  float64 `json:"vectorWeight"`
	IncludePublic bool    `json:"includePublic"`
}

// NewSearchRequest returns a request with default limits and weights.
func NewSearchRequest(query string, tenantID *string) SearchRequest {
	return SearchRequest{
		Query:         query,
		TenantID:      tenantID,
		TopK:          DefaultTopK,
		Threshold:     DefaultThreshold,
		VectorWeight:  DefaultVectorWeight,
		IncludePublic: true,
	}
}

func (r SearchRequest) normalized() SearchRequest {
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.Threshold <= 0 {
		r.Threshold = DefaultThreshold
	}
	if r.VectorWeight <= 0 || r.VectorWeight > 1 {
		r.VectorWeight = DefaultVectorWeight
	}
	return r
}

// SearchResult is one ranked passage.
type SearchResult struct {
	DocumentID    string            `json:"documentId"`
	ChunkIndex    int               `json:"chunkIndex"`
	Content       string            `json:"content"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Similarity    float64           `json:"similarity"`
	KeywordScore  float64           `json:"keywordScore,omitempty"`
	CombinedScore float64           `json:"combinedScore,omitempty"`
	IsPublic      bool              `json:"isPublic"`
}

// SearchResponse is the answer to one SearchRequest.
type SearchResponse struct {
	Results        []SearchResult `json:"results"`
	QueryEmbedding []float32      `json:"queryEmbedding,omitempty"`
	SearchTime     time.Duration  `json:"searchTimeMs"`
	TotalChunks    int64          `json:"totalChunks"`

	// NoContent marks a successful search that legitimately found
	// nothing, as distinct from an error.
	NoContent bool `json:"noContent,omitempty"`

	// Cached marks a response served from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// GenerateRequest asks for a retrieval-augmented answer.
type GenerateRequest struct {
	Query        string  `json:"query"`
	TenantID     *string `json:"tenantId,omitempty"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`

	// Search overrides retrieval parameters when non-nil; Query and
	// TenantID are always taken from this request.
	Search *SearchRequest `json:"search,omitempty"`
}

// GenerateResponse is a completed retrieval-augmented answer.
type GenerateResponse struct {
	Answer     string         `json:"answer"`
	Sources    []SearchResult `json:"sources"`
	TokensUsed int            `json:"tokensUsed,omitempty"`
	NoContent  bool           `json:"noContent,omitempty"`
}

// StreamEventType discriminates StreamEvent payloads.
type StreamEventType string

// Stream event kinds.
const (
	StreamText    StreamEventType = "text"    // Text is set
	StreamSources StreamEventType = "sources" // Sources is set, final event before close
	StreamError   StreamEventType = "error"   // Err is set, stream terminates
)

// StreamEvent is one element of a streaming generation. The event channel
// is closed after the terminal event (sources or error).
type StreamEvent struct {
	Type    StreamEventType
	Text    string
	Sources []SearchResult
	Err     error
}
