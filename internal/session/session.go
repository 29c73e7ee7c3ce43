// Package session implements the client side of a voice conversation: a small state machine that moves
// between idle, connecting and connected as the user toggles voice and the vendor session reports events,
// keeps the displayed transcript, and persists every turn to the transcript store.
//
// All state is owned by the goroutine running Controller.Run. Vendor events, user actions and the results
// of asynchronous calls are delivered to it through one channel, so the displayed transcript follows event
// arrival order.
package session

import (
	"context"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/pkg/errors"
)

// Status is the connection status of the voice session.
type Status int

const (
	// StatusIdle means no voice session is open.
	StatusIdle Status = iota
	// StatusConnecting means a voice session is being opened.
	StatusConnecting
	// StatusConnected means the vendor accepted the voice session.
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventKind identifies what a vendor Event reports.
type EventKind int

const (
	// EventConnected reports that the vendor accepted the session.
	EventConnected EventKind = iota + 1
	// EventMessage carries a finished user transcript or agent response.
	EventMessage
	// EventMode reports whether the agent is speaking.
	EventMode
	// EventDisconnected reports that the vendor closed the session.
	EventDisconnected
	// EventError reports a session failure.
	EventError
)

// Event is emitted by a VendorSession.
type Event struct {
	Kind EventKind

	// Source is the vendor's label for the speaker of an EventMessage, "ai" for the agent.
	Source string
	// Text is the message of an EventMessage.
	Text string
	// Speaking is set on EventMode.
	Speaking bool
	// Err is set on EventError.
	Err error
}

// ErrPermissionDenied is returned by a Microphone when the user refuses access.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Microphone grants access to audio input before a voice session is opened.
type Microphone interface {
	RequestPermission(ctx context.Context) error
}

// MicrophoneFunc adapts a function to the Microphone interface.
type MicrophoneFunc func(ctx context.Context) error

func (f MicrophoneFunc) RequestPermission(ctx context.Context) error {
	return f(ctx)
}

// SignedURLSource fetches a signed vendor connection URL.
type SignedURLSource interface {
	SignedURL(ctx context.Context) (string, error)
}

// VendorSession is an open conversation with the voice vendor.
type VendorSession interface {
	Close() error
}

// VendorDialer opens a vendor session on a signed URL. Events of the session are passed to emit, from any
// goroutine, until the session ends.
type VendorDialer interface {
	Dial(ctx context.Context, signedURL string, emit func(Event)) (VendorSession, error)
}

// Transcript persists and restores the turns of a conversation.
type Transcript interface {
	Append(ctx context.Context, conversationID string, item models.Item) error
	Records(ctx context.Context, conversationID string) ([]models.Record, error)
}

// TextCompleter answers typed messages.
type TextCompleter interface {
	Complete(ctx context.Context, message string) (string, error)
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Status   Status
	Speaking bool
	Messages []models.Message
}
