package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
)

type message struct {
	ID      string
	Role    string
	Index   int
	Content template.HTML
}

type conversationPageData struct {
	ConversationID string
	Messages       []message
}

// HandleHome starts a new conversation by redirecting to a freshly generated conversation page.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	id := models.NewConversationID()
	http.Redirect(w, r, "/c/"+id, http.StatusTemporaryRedirect)
}

// HandleConversation renders the conversation page for the "id" path value, including the transcript
// stored so far.
func (m Main) HandleConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		http.NotFound(w, r)
		return
	}

	records, err := m.store.Records(r.Context(), conversationID)
	if err != nil {
		m.logger.Error("Failed to list records",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	msgs := make([]message, len(records))
	for i, rec := range records {
		content, err := m.renderTranscript(rec.Transcript)
		if err != nil {
			m.logger.Error("Failed to render transcript",
				slog.String("record", fmt.Sprintf("%+v", rec)),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs[i] = message{
			ID:      rec.MessageID,
			Role:    string(rec.Role),
			Index:   rec.SequenceIndex,
			Content: content,
		}
	}

	data := conversationPageData{
		ConversationID: conversationID,
		Messages:       msgs,
	}
	if err := m.templates.ExecuteTemplate(w, "conversation.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) renderTranscript(transcript string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(transcript), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	// Raw HTML in transcripts is dropped by goldmark unless WithUnsafe is set.
	return template.HTML(buf.String()), nil
}
