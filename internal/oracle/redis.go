package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisFeed reads quotes published by an external price publisher into
// Redis. Each feed lives at one key as a JSON-encoded Quote.
type RedisFeed struct {
	rdb *redis.Client
}

// NewRedisFeed creates an oracle backed by a Redis client.
func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func (f *RedisFeed) Read(ctx context.Context, feedID string) (Quote, error) {
	data, err := f.rdb.Get(ctx, feedKey(feedID)).Bytes()
	if err == redis.Nil {
		return Quote{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("oracle: read feed %s: %w", feedID, err)
	}

	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return Quote{}, fmt.Errorf("oracle: decode feed %s: %w", feedID, err)
	}
	return q, nil
}

func feedKey(feedID string) string { return fmt.Sprintf("oracle:feed:%s", feedID) }
