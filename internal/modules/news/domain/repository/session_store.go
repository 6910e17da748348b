package repository

import (
	"context"
	"time"

	"NewsPulse/internal/modules/news/domain/news"
)

// SessionStore 会话历史存储，整体覆盖写入，过期后视为不存在
type SessionStore interface {
	// Get 不存在或已过期返回空列表；后端异常时返回空列表和错误
	Get(ctx context.Context, sessionID string) ([]news.Turn, error)
	// Set 整体替换并重置过期时间
	Set(ctx context.Context, sessionID string, turns []news.Turn, ttl time.Duration) error
	// Delete 删除不存在的 key 也视为成功
	Delete(ctx context.Context, sessionID string) error
}
