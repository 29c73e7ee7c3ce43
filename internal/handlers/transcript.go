package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
)

type appendRequest struct {
	ID   string       `json:"id"`
	Item *models.Item `json:"item"`
}

// HandleTranscript serves the transcript store. POST appends the item in the body to the conversation
// named by "id"; GET lists the records of the conversation named by the "id" query parameter.
func (m Main) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		m.appendRecord(w, r)
	case http.MethodGet:
		m.listRecords(w, r)
	default:
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m Main) appendRecord(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.logger.Error("Failed to decode append request", slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusBadRequest, struct{}{})
		return
	}
	if req.ID == "" || req.Item == nil {
		m.logger.Error("Conversation id and item are required")
		m.writeJSON(w, http.StatusBadRequest, struct{}{})
		return
	}

	rec, err := m.store.Append(r.Context(), req.ID, *req.Item)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			m.logger.Error("Rejected item",
				slog.String("conversationID", req.ID),
				slog.String(errLoggerKey, err.Error()))
			m.writeJSON(w, http.StatusBadRequest, struct{}{})
			return
		}
		m.logger.Error("Failed to append record",
			slog.String("conversationID", req.ID),
			slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	m.logger.Debug("Appended record",
		slog.String("conversationID", rec.ConversationID),
		slog.Int("sequenceIndex", rec.SequenceIndex))
	m.publishRecord(rec)

	m.writeJSON(w, http.StatusOK, struct{}{})
}

func (m Main) listRecords(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("id")
	if conversationID == "" {
		m.writeJSON(w, http.StatusOK, []models.Record{})
		return
	}

	records, err := m.store.Records(r.Context(), conversationID)
	if err != nil {
		m.logger.Error("Failed to list records",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		m.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []models.Record{}
	}

	m.writeJSON(w, http.StatusOK, records)
}
