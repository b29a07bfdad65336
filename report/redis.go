package report

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list scan events are appended to.
const DefaultKey = "clamd:scan:results"

// listWriter is the part of redis.Cmdable used by RedisRecorder.
type listWriter interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisRecorder appends scan events as JSON to a Redis list.
// When maxLen is positive only the newest maxLen events are kept.
type RedisRecorder struct {
	client listWriter
	key    string
	maxLen int64
}

// NewRedisRecorder creates a recorder on client. An empty key selects DefaultKey.
func NewRedisRecorder(client redis.Cmdable, key string, maxLen int64) *RedisRecorder {
	return newRedisRecorder(client, key, maxLen)
}

func newRedisRecorder(client listWriter, key string, maxLen int64) *RedisRecorder {
	if key == "" {
		key = DefaultKey
	}
	return &RedisRecorder{client: client, key: key, maxLen: maxLen}
}

// Record appends e to the list and trims it to the configured length.
func (r *RedisRecorder) Record(ctx context.Context, e Event) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("failed to record event %s in %s: %w", e.ID, r.key, err)
	}
	if r.maxLen > 0 {
		if err := r.client.LTrim(ctx, r.key, -r.maxLen, -1).Err(); err != nil {
			return fmt.Errorf("failed to trim %s: %w", r.key, err)
		}
	}
	return nil
}
