package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pensieve-ai/pensieve/internal/log"
	"github.com/pensieve-ai/pensieve/internal/rag"
)

// writeJSON writes a JSON response. Encoding failures after WriteHeader
// cannot reach the client anymore; they are logged and dropped.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, logger log.Logger, status int, code, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: code, Message: message})
}

// writeEngineError maps engine sentinels onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, logger log.Logger, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyInput):
		writeError(w, logger, http.StatusBadRequest, "empty_input", err.Error())
	case errors.Is(err, rag.ErrConfiguration):
		writeError(w, logger, http.StatusUnprocessableEntity, "configuration", err.Error())
	case errors.Is(err, rag.ErrProvider):
		logger.Error("provider failure", "error", err)
		writeError(w, logger, http.StatusBadGateway, "provider", "model provider request failed")
	default:
		logger.Error("internal failure", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "internal", "internal server error")
	}
}
