package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
)

// GenerateHandler serves retrieval-augmented generation, synchronous and
// streaming.
type GenerateHandler struct {
	engine *rag.Engine
	logger log.Logger
}

// NewGenerateHandler creates a generate handler.
func NewGenerateHandler(engine *rag.Engine, logger log.Logger) *GenerateHandler {
	return &GenerateHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers generation routes on mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", h.generate)
	mux.HandleFunc("POST /api/generate/stream", h.stream)
}

// GenerateRequestBody is the body of both generation endpoints.
type GenerateRequestBody struct {
	Query        string             `json:"query"`
	TenantID     *string            `json:"tenantId,omitempty"`
	SystemPrompt string             `json:"systemPrompt,omitempty"`
	Search       *SearchRequestBody `json:"search,omitempty"`
}

func (b GenerateRequestBody) toEngine() rag.GenerateRequest {
	req := rag.GenerateRequest{
		Query:        b.Query,
		TenantID:     b.TenantID,
		SystemPrompt: b.SystemPrompt,
	}
	if b.Search != nil {
		s := b.Search.toEngine()
		req.Search = &s
	}
	return req
}

func (h *GenerateHandler) generate(w http.ResponseWriter, r *http.Request) {
	var body GenerateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	resp, err := h.engine.Generate(r.Context(), body.toEngine())
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// SSE event payloads. Every event is a named SSE event with one JSON
// data line.
type sseTextData struct {
	Text string `json:"text"`
}

type sseSourceData struct {
	Sources []sseSource `json:"sources"`
}

type sseSource struct {
	DocumentID string  `json:"documentId"`
	SourceFile string  `json:"sourceFile,omitempty"`
	Similarity float64 `json:"similarity"`
}

type sseErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *GenerateHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var body GenerateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return
	}

	events, err := h.engine.GenerateStream(r.Context(), body.toEngine())
	if err != nil {
		writeEngineError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	ctx := r.Context()
	for ev := range events {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected during stream",
				"request_id", RequestID(ctx))
			return
		default:
		}

		switch ev.Type {
		case rag.StreamText:
			writeSSE(w, flusher, "chunk", sseTextData{Text: ev.Text})
		case rag.StreamSources:
			writeSSE(w, flusher, "sources", sseSourceData{Sources: toSSESources(ev.Sources)})
		case rag.StreamError:
			h.logger.Error("stream failed", "error", ev.Err,
				"request_id", RequestID(ctx))
			writeSSE(w, flusher, "error", sseErrorData{
				Code:    "stream_failed",
				Message: ev.Err.Error(),
			})
			return
		}
	}
}

func toSSESources(results []rag.SearchResult) []sseSource {
	out := make([]sseSource, len(results))
	for i, r := range results {
		score := r.Similarity
		if r.CombinedScore > 0 {
			score = r.CombinedScore
		}
		out[i] = sseSource{
			DocumentID: r.DocumentID,
			SourceFile: r.Metadata["source_file"],
			Similarity: score,
		}
	}
	return out
}

// writeSSE writes one named event. Data is a single JSON line, so no
// multi-line splitting is needed.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	// JSON never contains raw newlines, but guard the framing anyway.
	body := strings.ReplaceAll(string(payload), "\n", "")
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	flusher.Flush()
}
