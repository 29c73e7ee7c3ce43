package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type textRequest struct {
	Message string `json:"message"`
}

type textResponse struct {
	Response  string `json:"response"`
	Timestamp int64  `json:"timestamp"`
}

// HandleText answers a typed message through the configured Responder.
func (m Main) HandleText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Text message error", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process message"})
		return
	}
	if req.Message == "" {
		m.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing message"})
		return
	}

	resp, err := m.responder.Respond(r.Context(), req.Message)
	if err != nil {
		m.logger.Error("Text message error", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to process message"})
		return
	}

	m.writeJSON(w, http.StatusOK, textResponse{
		Response:  resp,
		Timestamp: time.Now().UnixMilli(),
	})
}
