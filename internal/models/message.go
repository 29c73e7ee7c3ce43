package models

import "time"

// Message is a single turn as it is displayed to the user. It is the client-side view of a conversation
// entry, built either from a live vendor event, from typed text, or from a stored Record when the history
// is loaded.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message spoken or typed by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the voice agent or the text responder.
	RoleAssistant Role = "assistant"
)

// RoleFromSource maps a vendor event source to a Role. The vendor labels agent output as "ai"; anything
// else is treated as the user.
func RoleFromSource(source string) Role {
	if source == "ai" {
		return RoleAssistant
	}
	return RoleUser
}

// ItemFromMessage wraps a displayed message into the item shape accepted by the transcript store.
func ItemFromMessage(msg Message) Item {
	return Item{
		ID:     msg.ID,
		Role:   msg.Role,
		Status: ItemStatusCompleted,
		Object: ItemObjectRealtime,
		Type:   ItemTypeMessage,
		Content: []ItemContent{
			{
				Type:       ContentTypeText,
				Transcript: msg.Content,
			},
		},
	}
}

// MessagesFromRecords converts stored records back into displayed messages. Timestamps are not stored, so
// they are spread backwards from now one second per record, keeping the original order.
func MessagesFromRecords(records []Record, now time.Time) []Message {
	msgs := make([]Message, len(records))
	for i, rec := range records {
		role := RoleUser
		if rec.Role == RoleAssistant {
			role = RoleAssistant
		}
		msgs[i] = Message{
			ID:        rec.MessageID,
			Role:      role,
			Content:   rec.Transcript,
			Timestamp: now.Add(-time.Duration(len(records)-rec.SequenceIndex) * time.Second),
		}
	}
	return msgs
}
