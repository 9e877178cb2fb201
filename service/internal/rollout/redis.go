// internal/rollout/redis.go — Redis list sink for encoded observations.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CaptainGlac1er/rocket-learn/service/internal/wire"
)

// RedisSink appends msgpack records to one Redis list per episode, where the
// trainer's rollout workers pop them.
type RedisSink struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSink returns a sink writing under prefix. A zero ttl never expires lists.
func NewRedisSink(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the list key for an episode.
func (s *RedisSink) Key(episodeID string) string { return s.prefix + episodeID }

// Publish appends recs in order. The push and the expiry refresh run in one
// transaction so a list never outlives its ttl after the last write.
func (s *RedisSink) Publish(ctx context.Context, episodeID string, recs []wire.Record) error {
	if len(recs) == 0 {
		return nil
	}
	vals := make([]any, len(recs))
	for i := range recs {
		b, err := wire.MarshalRecord(&recs[i])
		if err != nil {
			return err
		}
		vals[i] = b
	}
	key := s.Key(episodeID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %d records to %s: %w", len(recs), key, err)
	}
	return nil
}

// Fetch reads records [start, stop] (inclusive, Redis LRANGE semantics) of an episode.
func (s *RedisSink) Fetch(ctx context.Context, episodeID string, start, stop int64) ([]wire.Record, error) {
	key := s.Key(episodeID)
	raw, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	recs := make([]wire.Record, len(raw))
	for i, r := range raw {
		if recs[i], err = wire.UnmarshalRecord([]byte(r)); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, start+int64(i), err)
		}
	}
	return recs, nil
}

// Len returns the number of records stored for an episode.
func (s *RedisSink) Len(ctx context.Context, episodeID string) (int64, error) {
	return s.client.LLen(ctx, s.Key(episodeID)).Result()
}
