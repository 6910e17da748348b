package initial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"NewsPulse/internal/config"
	"NewsPulse/internal/modules/news/domain/repository"
	"NewsPulse/internal/modules/news/infrastructure/session"
	"NewsPulse/pkg/zlog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

// NewRedisClient 未配置 host 时返回 (nil, nil)；连接失败返回错误
func NewRedisClient(ctx context.Context, conf *config.Config) (*goredis.Client, error) {
	host := strings.TrimSpace(conf.RedisConfig.Host)
	if host == "" {
		return nil, nil
	}
	port := conf.RedisConfig.Port
	if port == 0 {
		port = 6379
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	zlog.Info("redis connecting", zap.String("addr", addr))

	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     conf.RedisConfig.Password,
		DB:           conf.RedisConfig.DB,
		PoolSize:     conf.RedisConfig.PoolSize,
		MinIdleConns: conf.RedisConfig.MinIdleConns,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	zlog.Info("redis connected", zap.String("addr", addr))
	return client, nil
}

// NewSessionStore Redis 不可用时退化为 NoopStore，返回的 client 可能为 nil
func NewSessionStore(ctx context.Context, conf *config.Config) (repository.SessionStore, *goredis.Client) {
	client, err := NewRedisClient(ctx, conf)
	if err != nil {
		zlog.Warn("redis unavailable, session history disabled", zap.Error(err))
		return session.NoopStore{}, nil
	}
	if client == nil {
		zlog.Info("redis not configured, session history disabled")
		return session.NoopStore{}, nil
	}
	store, err := session.NewRedisStore(client)
	if err != nil {
		_ = client.Close()
		zlog.Warn("create redis session store failed", zap.Error(err))
		return session.NoopStore{}, nil
	}
	return store, client
}
