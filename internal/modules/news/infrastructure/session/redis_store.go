package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisStore 会话历史存在 session:<id>，值为 Turn 列表的 JSON
type RedisStore struct {
	rdb *redis.Client
}

var _ repository.SessionStore = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is nil")
	}
	return &RedisStore{rdb: rdb}, nil
}

// Key 返回会话在 Redis 中的 key
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) ([]news.Turn, error) {
	empty := []news.Turn{}
	if strings.TrimSpace(sessionID) == "" {
		return empty, nil
	}
	raw, err := s.rdb.Get(ctx, Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("%w: get %s: %w", news.ErrSessionStore, sessionID, err)
	}
	var turns []news.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return empty, fmt.Errorf("%w: decode %s: %w", news.ErrSessionStore, sessionID, err)
	}
	if turns == nil {
		turns = empty
	}
	return turns, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, turns []news.Turn, ttl time.Duration) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session id is empty")
	}
	if turns == nil {
		turns = []news.Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, Key(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %w", news.ErrSessionStore, sessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %w", news.ErrSessionStore, sessionID, err)
	}
	return nil
}
