package rate

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/lazyauth/internal/observability/logger"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter("login:", 3, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(context.Background(), "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.EqualValues(t, i, res.CurrentHits)
		require.EqualValues(t, 3-i, res.Remaining)
	}

	res, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 50*time.Second, res.RetryAfter)

	// other key, own counter
	res, err = l.Allow(context.Background(), "5.6.7.8")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// next window
	now = now.Add(time.Minute)
	res, err = l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.EqualValues(t, 1, res.CurrentHits)
}

func TestBuildResult_RetryAfterFallback(t *testing.T) {
	res := buildResult(5, 2, -1, 90*time.Second)
	require.False(t, res.Allowed)
	require.Equal(t, 90*time.Second, res.RetryAfter)
	require.EqualValues(t, 0, res.Remaining)
}

// fakeRedis responde INCR / PTTL / PEXPIRE desde memoria vía hooks de
// go-redis; nunca abre una conexión.
type fakeRedis struct {
	mu        sync.Mutex
	counts    map[string]int64
	ttls      map[string]time.Duration
	expireErr error
	expires   int
}

func newFakeRedisClient(t *testing.T) (*rdb.Client, *fakeRedis) {
	t.Helper()
	f := &fakeRedis{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
	c := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:0"})
	c.AddHook(f)
	t.Cleanup(func() { _ = c.Close() })
	return c, f
}

func (f *fakeRedis) DialHook(rdb.DialHook) rdb.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("fake redis: dial not allowed")
	}
}

func (f *fakeRedis) ProcessHook(rdb.ProcessHook) rdb.ProcessHook {
	return func(_ context.Context, cmd rdb.Cmder) error {
		f.apply(cmd)
		return cmd.Err()
	}
}

func (f *fakeRedis) ProcessPipelineHook(rdb.ProcessPipelineHook) rdb.ProcessPipelineHook {
	return func(_ context.Context, cmds []rdb.Cmder) error {
		for _, cmd := range cmds {
			f.apply(cmd)
		}
		return nil
	}
}

func (f *fakeRedis) apply(cmd rdb.Cmder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	args := cmd.Args()
	if len(args) < 2 {
		return // multi / exec
	}
	key, _ := args[1].(string)

	switch cmd.Name() {
	case "incr":
		f.counts[key]++
		cmd.(*rdb.IntCmd).SetVal(f.counts[key])
	case "pttl":
		ttl, ok := f.ttls[key]
		if !ok {
			ttl = -1
		}
		cmd.(*rdb.DurationCmd).SetVal(ttl)
	case "pexpire":
		f.expires++
		if f.expireErr != nil {
			cmd.(*rdb.BoolCmd).SetErr(f.expireErr)
			return
		}
		if ms, ok := args[2].(int64); ok {
			f.ttls[key] = time.Duration(ms) * time.Millisecond
		}
		cmd.(*rdb.BoolCmd).SetVal(true)
	}
}

func TestRedisLimiter_FixedWindowSetsTTLOnce(t *testing.T) {
	client, f := newFakeRedisClient(t)
	l := NewRedisLimiter(client, "rl:login:", 2, time.Minute)
	l.now = func() time.Time { return time.Date(2025, 1, 1, 10, 0, 20, 0, time.UTC) }
	ctx := context.Background()

	r1, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, r1.Allowed)
	require.Equal(t, 40*time.Second, r1.WindowTTL)
	require.Equal(t, 1, f.expires)

	r2, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, r2.Allowed)
	require.EqualValues(t, 0, r2.Remaining)
	require.Equal(t, 41*time.Second, r2.WindowTTL) // PTTL de la clave
	require.Equal(t, 1, f.expires)

	r3, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, r3.Allowed)
	require.Equal(t, 41*time.Second, r3.RetryAfter)
}

func TestRedisLimiter_ExpireFailureIsLoggedAndRetried(t *testing.T) {
	client, f := newFakeRedisClient(t)
	f.expireErr = errors.New("READONLY You can't write against a read only replica")

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	l := NewRedisLimiter(client, "rl:callback:", 5, time.Minute)

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	entries := logs.FilterMessage("rate limiter: window key left without TTL").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Contains(t, entries[0].ContextMap()["error"], "READONLY")

	// la clave sigue sin TTL: el siguiente hit vuelve a intentarlo
	f.expireErr = nil
	_, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, 2, f.expires)
	require.Len(t, f.ttls, 1)
}

func TestRedisLimiter_PipelineErrorSurfaces(t *testing.T) {
	c := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { _ = c.Close() })
	c.AddHook(&failingPipeline{err: errors.New("connection refused")})

	_, err := NewRedisLimiter(c, "", 1, time.Minute).Allow(context.Background(), "k")
	require.ErrorContains(t, err, "connection refused")
}

type failingPipeline struct{ err error }

func (h *failingPipeline) DialHook(next rdb.DialHook) rdb.DialHook { return next }
func (h *failingPipeline) ProcessHook(next rdb.ProcessHook) rdb.ProcessHook {
	return next
}
func (h *failingPipeline) ProcessPipelineHook(rdb.ProcessPipelineHook) rdb.ProcessPipelineHook {
	return func(context.Context, []rdb.Cmder) error { return h.err }
}

// Requiere un Redis real: LAZYAUTH_TEST_REDIS_ADDR=localhost:6379
func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("LAZYAUTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LAZYAUTH_TEST_REDIS_ADDR not set")
	}
	client := rdb.NewClient(&rdb.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "lazyauth:test:"+uuid.NewString()+":", 2, time.Minute)
	ctx := context.Background()

	r1, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, r1.Allowed)
	r2, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, r2.Allowed)
	r3, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, r3.Allowed)
	require.Greater(t, r3.RetryAfter, time.Duration(0))
}
