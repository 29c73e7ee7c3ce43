package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type signedURLRequest struct {
	AgentID string `json:"agent_id"`
	APIKey  string `json:"api_key"`

	// Older clients send camelCase names.
	AgentIDCamel string `json:"agentId"`
	APIKeyCamel  string `json:"apiKey"`
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleSignedURL issues a signed vendor connection URL. The request body is optional and may override the
// agent id and API key; an absent or malformed body is treated as empty. Configuration and upstream failures
// are both reported as 500 with the error message.
func (m Main) HandleSignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req signedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Debug("Ignoring signed url request body", slog.String(errLoggerKey, err.Error()))
		req = signedURLRequest{}
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = req.AgentIDCamel
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = req.APIKeyCamel
	}

	signedURL, err := m.issuer.SignedURL(r.Context(), agentID, apiKey)
	if err != nil {
		m.logger.Error("Failed to issue signed url", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	m.writeJSON(w, http.StatusOK, signedURLResponse{SignedURL: signedURL})
}
