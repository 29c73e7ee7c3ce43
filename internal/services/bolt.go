package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for durable storage of transcripts. Each
// conversation gets its own bucket, and records are keyed by the bucket sequence so a cursor walk yields
// them in append order.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens or creates the BoltDB file at path. The database file is created with 0600 permissions if
// it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	return BoltDB{db: db}, nil
}

func conversationBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conversation-%s", conversationID))
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Append stores item as the next record of the conversation. Bolt serializes write transactions, and the
// bucket sequence is rolled back together with a failed transaction, so indexes stay gap-free.
func (b BoltDB) Append(_ context.Context, conversationID string, item models.Item) (models.Record, error) {
	if err := item.Validate(); err != nil {
		return models.Record{}, err
	}

	var rec models.Record
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(conversationBucketName(conversationID))
		if err != nil {
			return fmt.Errorf("failed to create conversation bucket: %w", err)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		rec = models.NewRecord(conversationID, int(seq-1), item)

		v, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		return bucket.Put(sequenceKey(seq), v)
	})
	if err != nil {
		return models.Record{}, err
	}

	return rec, nil
}

// Records retrieves all records of the conversation in the order they were appended.
func (b BoltDB) Records(_ context.Context, conversationID string) ([]models.Record, error) {
	records := []models.Record{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(conversationBucketName(conversationID))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var rec models.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
