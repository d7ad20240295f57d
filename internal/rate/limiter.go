// Package rate implementa rate limiting de ventana fija, en memoria o Redis.
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

// Result es la decisión para un hit. WindowTTL es lo que resta de la ventana.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter cuenta hits por clave. Un error significa backend caído, no "bloqueado".
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter es un fixed window compartido entre réplicas: una clave por
// (key, ventana), INCR y PTTL en una transacción, PEXPIRE cuando falta TTL.
type RedisLimiter struct {
	client rdb.Cmdable
	prefix string
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client rdb.Cmdable, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) windowKey(key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	start := now.Truncate(l.window)
	k := l.windowKey(key, start)

	var (
		hits *rdb.IntCmd
		pttl *rdb.DurationCmd
	)
	if _, err := l.client.TxPipelined(ctx, func(p rdb.Pipeliner) error {
		hits = p.Incr(ctx, k)
		pttl = p.PTTL(ctx, k)
		return nil
	}); err != nil {
		return Result{}, err
	}

	left := pttl.Val()
	// Sin TTL: primer hit de la ventana, o un PEXPIRE anterior que falló.
	if left <= 0 {
		left = start.Add(l.window).Sub(now)
		if err := l.client.PExpire(ctx, k, left+time.Second).Err(); err != nil {
			logger.From(ctx).Warn("rate limiter: window key left without TTL",
				logger.Component("rate"),
				logger.String("key", k),
				logger.Err(err),
			)
		}
	}

	return buildResult(hits.Val(), l.max, left, l.window), nil
}

func buildResult(hits, max int64, ttl, window time.Duration) Result {
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Duration(math.Ceil(window.Seconds())) * time.Second
		}
	}
	return res
}
