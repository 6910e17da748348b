package session

import (
	"context"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
	"NewsPulse/internal/modules/news/domain/repository"
)

// NoopStore 未配置 Redis 时使用：读取永远为空，写入直接丢弃
type NoopStore struct{}

var _ repository.SessionStore = NoopStore{}

func (NoopStore) Get(context.Context, string) ([]news.Turn, error) { return []news.Turn{}, nil }

func (NoopStore) Set(context.Context, string, []news.Turn, time.Duration) error { return nil }

func (NoopStore) Delete(context.Context, string) error { return nil }
