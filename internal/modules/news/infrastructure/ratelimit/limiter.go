package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 批量 embedding 共享的固定间隔限速器（桶容量 1）
type Limiter struct {
	bucket   *rate.Limiter
	interval time.Duration
}

// NewLimiter interval <= 0 时不限速
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait 阻塞到允许下一次调用，ctx 取消时返回错误
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Interval 两次调用之间的最小间隔
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
