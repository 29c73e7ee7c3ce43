package models

import (
	"errors"
	"fmt"
)

// Item is the message payload a client submits to the transcript store after every turn. Its shape follows
// the vendor's realtime conversation item.
type Item struct {
	ID      string        `json:"id"`
	Role    Role          `json:"role"`
	Status  string        `json:"status"`
	Object  string        `json:"object"`
	Type    string        `json:"type"`
	Content []ItemContent `json:"content"`
}

// ItemContent is one content part of an Item.
type ItemContent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

// Record is a stored transcript entry. The JSON names are the ones the browser client reads back when it
// restores a conversation.
type Record struct {
	// SequenceIndex is the position of the record in its conversation, starting from 0.
	SequenceIndex  int    `json:"created_at"`
	MessageID      string `json:"id"`
	ConversationID string `json:"session_id"`
	ContentType    string `json:"content_type"`
	Transcript     string `json:"content_transcript"`
	ObjectKind     string `json:"object"`
	Role           Role   `json:"role"`
	Status         string `json:"status"`
	ItemType       string `json:"type"`
}

const (
	// ContentTypeText is the content type of typed and transcribed turns.
	ContentTypeText = "text"

	// ItemStatusCompleted marks a finished turn.
	ItemStatusCompleted = "completed"
	// ItemObjectRealtime is the object kind of items produced by the client.
	ItemObjectRealtime = "realtime.item"
	// ItemTypeMessage is the item type of conversation messages.
	ItemTypeMessage = "message"
)

// ErrValidation is returned when a request is missing a required field or carries an unusable payload.
var ErrValidation = errors.New("validation error")

// Validate reports whether the item can be turned into a Record.
func (i Item) Validate() error {
	if len(i.Content) == 0 {
		return fmt.Errorf("%w: item %q has no content", ErrValidation, i.ID)
	}
	return nil
}

// NewRecord builds the record that stores item as the seq-th entry of the conversation. Content type and
// transcript are taken from the first content part, so the item must have been validated.
func NewRecord(conversationID string, seq int, item Item) Record {
	return Record{
		SequenceIndex:  seq,
		MessageID:      item.ID,
		ConversationID: conversationID,
		ContentType:    item.Content[0].Type,
		Transcript:     item.Content[0].Transcript,
		ObjectKind:     item.Object,
		Role:           item.Role,
		Status:         item.Status,
		ItemType:       item.Type,
	}
}
