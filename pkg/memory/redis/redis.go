// Package redis stores conversation histories in Redis lists so multiple
// server instances share them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/model"
)

// Store implements memory.Store on a Redis list per conversation. A
// positive TTL is refreshed on every append.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewStore creates a Redis-backed conversation store.
func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

func (s *Store) Append(ctx context.Context, conversationID string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key := conversationKey(conversationID)

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		b, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values = append(values, b)
	}
	if err := s.rdb.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append conversation turns: %w", err)
	}

	if s.ttl > 0 {
		if ok, err := s.rdb.Expire(ctx, key, s.ttl).Result(); err != nil {
			return fmt.Errorf("failed to refresh conversation ttl: %w", err)
		} else if !ok {
			logger.Warn("could not refresh ttl on conversation key", "key", key)
		}
	}
	return nil
}

func (s *Store) History(ctx context.Context, conversationID string) ([]model.Turn, error) {
	key := conversationKey(conversationID)

	rows, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.Turn{}, nil
		}
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	turns := make([]model.Turn, 0, len(rows))
	for i, row := range rows {
		var turn model.Turn
		if err := json.Unmarshal([]byte(row), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %d: %w", i, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *Store) Clear(ctx context.Context, conversationID string) error {
	if err := s.rdb.Del(ctx, conversationKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
