package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	voicewebui "github.com/MegaGrindStone/voice-web-ui"
	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Store defines the interface for the transcript store: an append-only log of records keyed by conversation
// id. Implementations must assign each appended record a sequence index equal to the number of records
// already stored for its conversation, even under concurrent appends.
type Store interface {
	Append(ctx context.Context, conversationID string, item models.Item) (models.Record, error)
	Records(ctx context.Context, conversationID string) ([]models.Record, error)
}

// SignedURLIssuer obtains a signed vendor connection URL. Empty agentID or apiKey fall back to the issuer's
// configured defaults.
type SignedURLIssuer interface {
	SignedURL(ctx context.Context, agentID, apiKey string) (string, error)
}

// Responder answers a typed message for the text chat path.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

// Main serves the HTTP surface of the voice assistant: the signed URL issuer, the transcript store API, the
// text chat endpoint, the conversation pages and the live transcript feed.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	store     Store
	issuer    SignedURLIssuer
	responder Responder

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	// replayBufferSize is the number of published records kept for clients that reconnect with a
	// Last-Event-ID.
	replayBufferSize = 256
)

var recordSSEType = sse.Type("record")

// NewMain creates a new Main instance with the provided Store, SignedURLIssuer and Responder
// implementations. It parses the HTML templates from the embedded filesystem and sets up the SSE server
// that pushes appended records to subscribers of a conversation.
func NewMain(store Store, issuer SignedURLIssuer, responder Responder, logger *slog.Logger) (Main, error) {
	replayer, err := sse.NewFiniteReplayer(replayBufferSize, true)
	if err != nil {
		return Main{}, err
	}

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		voicewebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			Provider: &sse.Joe{Replayer: replayer},
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				conversationID := s.Req.URL.Query().Get("id")
				if conversationID != "" {
					topics = append(topics, transcriptTopic(conversationID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
			),
		),
		store:     store,
		issuer:    issuer,
		responder: responder,
		logger:    logger.With(slog.String("module", "main")),
	}, nil
}

func transcriptTopic(conversationID string) string {
	return fmt.Sprintf("transcript-%s", conversationID)
}

// HandleSSE streams appended records of the conversation named by the "id" query parameter. A client that
// reconnects with a Last-Event-ID first receives the records it missed.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) publishRecord(rec models.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Error("Failed to marshal record",
			slog.String("conversationID", rec.ConversationID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: recordSSEType,
	}
	msg.AppendData(string(data))
	if err := m.sseSrv.Publish(&msg, transcriptTopic(rec.ConversationID)); err != nil {
		m.logger.Error("Failed to publish record",
			slog.String("conversationID", rec.ConversationID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Debug("Failed to write response", slog.Int("status", status), slog.String(errLoggerKey, err.Error()))
	}
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected clients and
// waits up to 5 seconds for connections to terminate. After the timeout, any remaining connections are
// forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeTranscript")}
	// SSE events must carry data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
