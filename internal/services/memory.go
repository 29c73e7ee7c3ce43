package services

import (
	"context"
	"slices"
	"sync"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
)

// Memory implements the Store interface with a process-local map from conversation id to records. Nothing
// survives a restart. A single mutex guards the map, so the count read and the append of one Append call
// can't interleave with another.
type Memory struct {
	mu      sync.Mutex
	records map[string][]models.Record
}

// NewMemory creates an empty in-memory transcript store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string][]models.Record),
	}
}

// Append stores item as the next record of the conversation.
func (m *Memory) Append(_ context.Context, conversationID string, item models.Item) (models.Record, error) {
	if err := item.Validate(); err != nil {
		return models.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recs := m.records[conversationID]
	rec := models.NewRecord(conversationID, len(recs), item)
	m.records[conversationID] = append(recs, rec)

	return rec, nil
}

// Records returns a copy of the conversation's records in append order.
func (m *Memory) Records(_ context.Context, conversationID string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := slices.Clone(m.records[conversationID])
	if recs == nil {
		recs = []models.Record{}
	}
	return recs, nil
}

// Close is a no-op; it lets Memory be used wherever a closable store is expected.
func (m *Memory) Close() error { return nil }
