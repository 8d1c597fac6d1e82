package api

import (
	"encoding/json"
	"net/http"

	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
)

// MaxDocumentBytes bounds the request body for document uploads.
const MaxDocumentBytes = 10 << 20 // 10 MiB

// DocumentHandler serves document indexing, deletion and stats.
type DocumentHandler struct {
	engine *rag.Engine
	logger log.Logger
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(engine *rag.Engine, logger log.Logger) *DocumentHandler {
	return &DocumentHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers document routes on mux.
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.index)
	mux.HandleFunc("DELETE /api/documents/{id}", h.delete)
	mux.HandleFunc("GET /api/stats", h.stats)
}

// IndexDocumentRequest is the body of POST /api/documents.
type IndexDocumentRequest struct {
	DocumentID string       `json:"documentId"`
	TenantID   *string      `json:"tenantId,omitempty"`
	Text       string       `json:"text"`
	Metadata   rag.Metadata `json:"metadata"`
}

func (h *DocumentHandler) index(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxDocumentBytes)

	var req IndexDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}
	if req.DocumentID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_document_id", "documentId is required")
		return
	}

	result, err := h.engine.IndexDocument(r.Context(), rag.IndexRequest{
		DocumentID: req.DocumentID,
		TenantID:   req.TenantID,
		Text:       req.Text,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

func (h *DocumentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, h.logger, http.StatusBadRequest, "missing_document_id", "document ID path segment is required")
		return
	}
	if err := h.engine.DeleteDocument(r.Context(), id); err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) stats(w http.ResponseWriter, r *http.Request) {
	var tenantID *string
	if t := r.URL.Query().Get("tenantId"); t != "" {
		tenantID = &t
	}
	stats, err := h.engine.Stats(r.Context(), tenantID)
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"totalDocuments":   stats.TotalDocuments,
		"indexedDocuments": stats.IndexedDocuments,
		"totalChunks":      stats.TotalChunks,
		"totalTokens":      stats.TotalTokens,
	})
}
