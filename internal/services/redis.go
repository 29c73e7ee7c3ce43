package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MegaGrindStone/voice-web-ui/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "voicewebui:transcript:"

// Redis implements the Store interface on top of Redis lists, one list per conversation. The list position
// of an item is its sequence index; RPUSH returns the new length atomically, so concurrent appenders never
// observe the same index.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at addr and verifies the connection. An empty prefix selects the
// default key prefix.
func NewRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis store: empty addr")
	}
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis store: ping")
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(conversationID string) string {
	return r.prefix + conversationID
}

// Append pushes item to the end of the conversation list.
func (r *Redis) Append(ctx context.Context, conversationID string, item models.Item) (models.Record, error) {
	if err := item.Validate(); err != nil {
		return models.Record{}, err
	}

	v, err := json.Marshal(item)
	if err != nil {
		return models.Record{}, errors.Wrap(err, "redis store: marshal item")
	}

	n, err := r.client.RPush(ctx, r.key(conversationID), v).Result()
	if err != nil {
		return models.Record{}, errors.Wrap(err, "redis store: rpush")
	}

	return models.NewRecord(conversationID, int(n-1), item), nil
}

// Records reads the whole conversation list.
func (r *Redis) Records(ctx context.Context, conversationID string) ([]models.Record, error) {
	vals, err := r.client.LRange(ctx, r.key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis store: lrange")
	}

	records := make([]models.Record, 0, len(vals))
	for i, v := range vals {
		var item models.Item
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, errors.Wrapf(err, "redis store: unmarshal item %d", i)
		}
		if err := item.Validate(); err != nil {
			return nil, errors.Wrapf(err, "redis store: item %d", i)
		}
		records = append(records, models.NewRecord(conversationID, i, item))
	}
	return records, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
