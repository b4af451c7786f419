package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowLimiter allows up to limit requests per key in each fixed window.
// Counters live in Redis so the limit holds across server instances.
type WindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(client *redis.Client, limit int, window time.Duration) *WindowLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &WindowLimiter{client: client, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts one request for key in the current window.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, slot)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, 2*l.window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit counter: %w", err)
	}

	if incr.Val() <= l.limit {
		return true, 0, nil
	}
	next := time.Unix(0, (slot+1)*int64(l.window))
	return false, next.Sub(now), nil
}
