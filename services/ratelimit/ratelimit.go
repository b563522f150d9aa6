// Package ratelimit implements fixed-window request limiting.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/cadence/academy/core"
)

// Limiter allows at most Limit hits per key and window.
type Limiter interface {
	// Allow records a hit on key. When the limit is exceeded it returns false and the time left in the window.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// New returns a redis backed limiter when a redis URL is configured, an in-memory one otherwise.
func New(conf *core.Config, limit int, window time.Duration) (Limiter, error) {
	if conf.RedisURL == "" {
		return NewMemoryLimiter(limit, window), nil
	}
	opts, err := redis.ParseURL(conf.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return NewRedisLimiter(redis.NewClient(opts), limit, window), nil
}

type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = l.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, errors.Wrap(err, "counting hit")
	}
	if int(incr.Val()) > l.limit {
		return false, ttl.Val(), nil
	}
	return true, 0, nil
}

func (l *RedisLimiter) Close() error { return l.client.Close() }

type window struct {
	hits    int
	resetAt time.Time
}

// MemoryLimiter is a single-process Limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: win, windows: make(map[string]*window), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
		l.gc(now)
	}
	w.hits++
	if w.hits > l.limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// gc drops expired windows. Callers hold mu.
func (l *MemoryLimiter) gc(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
