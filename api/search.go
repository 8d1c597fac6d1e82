package api

import (
	"encoding/json"
	"net/http"

	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
)

// SearchHandler serves similarity search.
type SearchHandler struct {
	engine *rag.Engine
	logger log.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(engine *rag.Engine, logger log.Logger) *SearchHandler {
	return &SearchHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers search routes on mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// SearchRequestBody is the body of POST /api/search. Omitted limits and
// weights take the engine defaults; includePublic defaults to true.
type SearchRequestBody struct {
	Query         string      `json:"query"`
	TenantID      *string     `json:"tenantId,omitempty"`
	TopK          int         `json:"topK,omitempty"`
	Offset        int         `json:"offset,omitempty"`
	Threshold     float64     `json:"threshold,omitempty"`
	Filters       rag.Filters `json:"filters,omitempty"`
	UseHybrid     bool        `json:"useHybrid,omitempty"`
	VectorWeight  float64     `json:"vectorWeight,omitempty"`
	IncludePublic *bool       `json:"includePublic,omitempty"`
}

func (b SearchRequestBody) toEngine() rag.SearchRequest {
	req := rag.NewSearchRequest(b.Query, b.TenantID)
	if b.TopK > 0 {
		req.TopK = b.TopK
	}
	if b.Offset > 0 {
		req.Offset = b.Offset
	}
	if b.Threshold > 0 {
		req.Threshold = b.Threshold
	}
	if b.VectorWeight > 0 {
		req.VectorWeight = b.VectorWeight
	}
	req.Filters = b.Filters
	req.UseHybrid = b.UseHybrid
	if b.IncludePublic != nil {
		req.IncludePublic = *b.IncludePublic
	}
	return req
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	resp, err := h.engine.Search(r.Context(), body.toEngine())
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	// The query embedding is an internal detail, not part of the API
	// surface.
	resp.QueryEmbedding = nil
	writeJSON(w, h.logger, http.StatusOK, resp)
}
