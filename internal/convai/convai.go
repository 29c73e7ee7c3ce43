// Package convai speaks the ElevenLabs Conversational AI websocket protocol and translates its frames into
// session events.
package convai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MegaGrindStone/voice-web-ui/internal/session"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Dialer opens vendor sessions on signed URLs. It implements session.VendorDialer.
type Dialer struct {
	dialer *websocket.Dialer
	logger *slog.Logger
}

// Session is an open vendor conversation.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
}

type clientFrame struct {
	Type    string `json:"type"`
	EventID int64  `json:"event_id,omitempty"`
}

const (
	frameInitiationClientData = "conversation_initiation_client_data"
	frameInitiationMetadata   = "conversation_initiation_metadata"
	frameUserTranscript       = "user_transcript"
	frameAgentResponse        = "agent_response"
	frameAudio                = "audio"
	frameInterruption         = "interruption"
	framePing                 = "ping"
	framePong                 = "pong"
)

// NewDialer creates a Dialer using the default websocket dialer.
func NewDialer(logger *slog.Logger) Dialer {
	return Dialer{
		dialer: websocket.DefaultDialer,
		logger: logger.With(slog.String("module", "convai")),
	}
}

// Dial connects to signedURL and starts the session. Frames are read on a separate goroutine and reported
// through emit until the connection ends; the final event is either EventDisconnected or EventError.
func (d Dialer) Dial(ctx context.Context, signedURL string, emit func(session.Event)) (session.VendorSession, error) {
	conn, _, err := d.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error dialing vendor: %w", err)
	}

	s := &Session{
		conn:    conn,
		logger:  d.logger,
		closing: make(chan struct{}),
	}
	if err := s.write(clientFrame{Type: frameInitiationClientData}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error starting conversation: %w", err)
	}

	go s.readLoop(emit)

	return s, nil
}

func (s *Session) readLoop(emit func(session.Event)) {
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
				emit(session.Event{Kind: session.EventDisconnected})
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				emit(session.Event{Kind: session.EventDisconnected})
				return
			}
			emit(session.Event{Kind: session.EventError, Err: err})
			return
		}

		if ev, ok := s.translate(frame); ok {
			emit(ev)
		}
	}
}

// translate maps a vendor frame to a session event. Frames without a session meaning, and pings after they
// are answered, report false.
func (s *Session) translate(frame []byte) (session.Event, bool) {
	typ := gjson.GetBytes(frame, "type").String()

	switch typ {
	case frameInitiationMetadata:
		s.logger.Debug("Conversation started",
			slog.String("conversationID", gjson.GetBytes(frame, "conversation_initiation_metadata_event.conversation_id").String()))
		return session.Event{Kind: session.EventConnected}, true
	case frameUserTranscript:
		return session.Event{
			Kind:   session.EventMessage,
			Source: "user",
			Text:   gjson.GetBytes(frame, "user_transcription_event.user_transcript").String(),
		}, true
	case frameAgentResponse:
		return session.Event{
			Kind:   session.EventMessage,
			Source: "ai",
			Text:   gjson.GetBytes(frame, "agent_response_event.agent_response").String(),
		}, true
	case frameAudio:
		return session.Event{Kind: session.EventMode, Speaking: true}, true
	case frameInterruption:
		return session.Event{Kind: session.EventMode, Speaking: false}, true
	case framePing:
		eventID := gjson.GetBytes(frame, "ping_event.event_id").Int()
		if err := s.write(clientFrame{Type: framePong, EventID: eventID}); err != nil {
			s.logger.Warn("Failed to answer ping", slog.Int64("eventID", eventID), slog.String("err", err.Error()))
		}
		return session.Event{}, false
	default:
		s.logger.Debug("Ignoring frame", slog.String("type", typ))
		return session.Event{}, false
	}
}

func (s *Session) write(frame clientFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close ends the conversation with a normal closure. It does not wait for the read goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closing)

		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}
