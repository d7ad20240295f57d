package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter is the single-process variant of RedisLimiter. Counters live
// in a go-cache keyed by window start, so each window expires on its own.
type MemoryLimiter struct {
	counters *gocache.Cache
	prefix   string
	max      int64
	window   time.Duration
	now      func() time.Time
}

func NewMemoryLimiter(prefix string, max int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		counters: gocache.New(window, 2*window),
		prefix:   prefix,
		max:      int64(max),
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	winEnd := winStart.Add(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	// Add falla si la clave ya existe; en ese caso incrementamos.
	hits := int64(1)
	if err := l.counters.Add(k, hits, winEnd.Sub(now)+time.Second); err != nil {
		n, ierr := l.counters.IncrementInt64(k, 1)
		if ierr != nil {
			// la clave expiró entre Add e Increment: nueva ventana
			l.counters.Set(k, hits, winEnd.Sub(now)+time.Second)
		} else {
			hits = n
		}
	}

	return buildResult(hits, l.max, winEnd.Sub(now), l.window), nil
}
