package services

import (
	"context"
	"database/sql"
	"sync"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLite implements the Store interface with a single records table. Appends are serialized by a mutex
// and run in a transaction, so the count read and the insert behave as one step.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite opens the database at dsn and creates the schema if needed.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			message_id TEXT NOT NULL,
			content_type TEXT NOT NULL,
			transcript TEXT NOT NULL,
			object TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (conversation_id, seq)
		)
	`)
	if err != nil {
		return errors.Wrap(err, "sqlite store: migrate")
	}
	return nil
}

// Append inserts item as the next record of the conversation.
func (s *SQLite) Append(ctx context.Context, conversationID string, item models.Item) (models.Record, error) {
	if err := item.Validate(); err != nil {
		return models.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, errors.Wrap(err, "sqlite store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE conversation_id = ?`, conversationID).Scan(&n); err != nil {
		return models.Record{}, errors.Wrap(err, "sqlite store: count")
	}

	rec := models.NewRecord(conversationID, n, item)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (conversation_id, seq, message_id, content_type, transcript, object, role, status, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ConversationID, rec.SequenceIndex, rec.MessageID, rec.ContentType, rec.Transcript,
		rec.ObjectKind, string(rec.Role), rec.Status, rec.ItemType)
	if err != nil {
		return models.Record{}, errors.Wrap(err, "sqlite store: insert")
	}

	if err := tx.Commit(); err != nil {
		return models.Record{}, errors.Wrap(err, "sqlite store: commit")
	}
	return rec, nil
}

// Records returns the conversation's records ordered by sequence index.
func (s *SQLite) Records(ctx context.Context, conversationID string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, message_id, content_type, transcript, object, role, status, type
		FROM records WHERE conversation_id = ? ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: query")
	}
	defer func() { _ = rows.Close() }()

	records := []models.Record{}
	for rows.Next() {
		rec := models.Record{ConversationID: conversationID}
		var role string
		if err := rows.Scan(&rec.SequenceIndex, &rec.MessageID, &rec.ContentType, &rec.Transcript,
			&rec.ObjectKind, &role, &rec.Status, &rec.ItemType); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan")
		}
		rec.Role = models.Role(role)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite store: rows")
	}
	return records, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
