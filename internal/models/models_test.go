package models_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    models.Item
		wantErr bool
	}{
		{
			name: "valid",
			item: models.ItemFromMessage(models.Message{ID: "msg_1", Role: models.RoleUser, Content: "hi"}),
		},
		{
			name: "empty transcript is still content",
			item: models.ItemFromMessage(models.Message{ID: "msg_2", Role: models.RoleUser}),
		},
		{
			name:    "no content",
			item:    models.Item{ID: "msg_3", Role: models.RoleUser},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	item := models.ItemFromMessage(models.Message{ID: "msg_1", Role: models.RoleAssistant, Content: "Done."})

	got := models.NewRecord("conv", 3, item)
	want := models.Record{
		SequenceIndex:  3,
		MessageID:      "msg_1",
		ConversationID: "conv",
		ContentType:    models.ContentTypeText,
		Transcript:     "Done.",
		ObjectKind:     models.ItemObjectRealtime,
		Role:           models.RoleAssistant,
		Status:         models.ItemStatusCompleted,
		ItemType:       models.ItemTypeMessage,
	}
	if got != want {
		t.Errorf("NewRecord() = %+v, want %+v", got, want)
	}
}

func TestRoleFromSource(t *testing.T) {
	tests := map[string]models.Role{
		"ai":    models.RoleAssistant,
		"user":  models.RoleUser,
		"":      models.RoleUser,
		"agent": models.RoleUser,
	}
	for source, want := range tests {
		if got := models.RoleFromSource(source); got != want {
			t.Errorf("RoleFromSource(%q) = %q, want %q", source, got, want)
		}
	}
}

func TestMessagesFromRecords(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []models.Record{
		{SequenceIndex: 0, MessageID: "a", Role: models.RoleUser, Transcript: "hello"},
		{SequenceIndex: 1, MessageID: "b", Role: models.RoleAssistant, Transcript: "hi"},
		{SequenceIndex: 2, MessageID: "c", Role: "system", Transcript: "odd"},
	}

	msgs := models.MessagesFromRecords(records, now)
	if len(msgs) != 3 {
		t.Fatalf("MessagesFromRecords() len = %d, want 3", len(msgs))
	}

	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser}
	for i, msg := range msgs {
		if msg.ID != records[i].MessageID || msg.Content != records[i].Transcript {
			t.Errorf("message %d = %+v, want record %+v", i, msg, records[i])
		}
		if msg.Role != wantRoles[i] {
			t.Errorf("message %d role = %q, want %q", i, msg.Role, wantRoles[i])
		}
		if i > 0 && !msg.Timestamp.After(msgs[i-1].Timestamp) {
			t.Errorf("message %d timestamp %v not after %v", i, msg.Timestamp, msgs[i-1].Timestamp)
		}
	}
	if !msgs[2].Timestamp.Equal(now.Add(-time.Second)) {
		t.Errorf("last timestamp = %v, want %v", msgs[2].Timestamp, now.Add(-time.Second))
	}

	if got := models.MessagesFromRecords(nil, now); len(got) != 0 {
		t.Errorf("MessagesFromRecords(nil) = %v, want empty", got)
	}
}

func TestNewConversationID(t *testing.T) {
	re := regexp.MustCompile(`^\d+_0(\.\d+)?$`)

	seen := make(map[string]bool)
	for range 100 {
		id := models.NewConversationID()
		if !re.MatchString(id) {
			t.Fatalf("NewConversationID() = %q, does not match %s", id, re)
		}
		if seen[id] {
			t.Fatalf("NewConversationID() returned duplicate %q", id)
		}
		seen[id] = true
	}
}
