package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type LimiterTestSuite struct {
	suite.Suite
	ctx   context.Context
	cfg   Config
	clock *fakeClock
	mr    *miniredis.Miniredis
	rdb   *redis.Client
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterTestSuite))
}

func (s *LimiterTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = Config{Capacity: 3, RatePerSecond: 1}
	s.clock = &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
}

func (s *LimiterTestSuite) TearDownTest() {
	s.rdb.Close()
}

func (s *LimiterTestSuite) limiters() map[string]Limiter {
	mem, err := NewTokenBucket(s.cfg, WithClock(s.clock.Now))
	require.NoError(s.T(), err)
	rs, err := NewRedisTokenBucket(s.rdb, "checkout", s.cfg, WithRedisClock(s.clock.Now))
	require.NoError(s.T(), err)
	return map[string]Limiter{"memory": mem, "redis": rs}
}

func (s *LimiterTestSuite) TestCapacityThenRefill() {
	for name, l := range s.limiters() {
		key := "retailer-" + name
		for i := 0; i < s.cfg.Capacity; i++ {
			ok, err := l.Allow(s.ctx, key)
			require.NoError(s.T(), err)
			require.True(s.T(), ok, "%s 應該允許第 %d 次請求", name, i+1)
		}

		ok, err := l.Allow(s.ctx, key)
		require.NoError(s.T(), err)
		require.False(s.T(), ok, "%s 超過容量限制應該被拒絕", name)

		s.clock.Advance(time.Second)
		ok, err = l.Allow(s.ctx, key)
		require.NoError(s.T(), err)
		require.True(s.T(), ok, "%s 補充後應該有新的 token", name)

		ok, err = l.Allow(s.ctx, key)
		require.NoError(s.T(), err)
		require.False(s.T(), ok)
	}
}

func (s *LimiterTestSuite) TestKeysAreIndependent() {
	for name, l := range s.limiters() {
		for i := 0; i < s.cfg.Capacity; i++ {
			ok, err := l.Allow(s.ctx, name+"-a")
			require.NoError(s.T(), err)
			require.True(s.T(), ok)
		}
		ok, err := l.Allow(s.ctx, name+"-a")
		require.NoError(s.T(), err)
		require.False(s.T(), ok)

		ok, err = l.Allow(s.ctx, name+"-b")
		require.NoError(s.T(), err)
		require.True(s.T(), ok, "%s key b 不受 key a 影響", name)
	}
}

func (s *LimiterTestSuite) TestConcurrentAccessNeverExceedsCapacity() {
	for name, l := range s.limiters() {
		var wg sync.WaitGroup
		results := make(chan bool, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := l.Allow(s.ctx, "concurrent-"+name)
				if err == nil {
					results <- ok
				}
			}()
		}
		wg.Wait()
		close(results)

		allowed := 0
		for ok := range results {
			if ok {
				allowed++
			}
		}
		require.Equal(s.T(), s.cfg.Capacity, allowed, name)
	}
}

func (s *LimiterTestSuite) TestRedisBucketExpires() {
	rs, err := NewRedisTokenBucket(s.rdb, "checkout", s.cfg, WithRedisClock(s.clock.Now))
	require.NoError(s.T(), err)

	_, err = rs.Allow(s.ctx, "r1")
	require.NoError(s.T(), err)
	require.True(s.T(), s.mr.Exists(generateBucketKey("checkout", "r1")))
	require.Greater(s.T(), s.mr.TTL(generateBucketKey("checkout", "r1")), time.Duration(0))
}

func (s *LimiterTestSuite) TestRedisUnavailable() {
	rs, err := NewRedisTokenBucket(s.rdb, "checkout", s.cfg)
	require.NoError(s.T(), err)
	s.mr.Close()

	_, err = rs.Allow(s.ctx, "r1")
	require.Error(s.T(), err)
}

func (s *LimiterTestSuite) TestInvalidConfig() {
	_, err := NewTokenBucket(Config{Capacity: 0, RatePerSecond: 1})
	require.ErrorIs(s.T(), err, ErrInvalidConfig)
	_, err = NewRedisTokenBucket(s.rdb, "x", Config{Capacity: 1, RatePerSecond: 0})
	require.ErrorIs(s.T(), err, ErrInvalidConfig)
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("boom")
}

func TestMiddleware(t *testing.T) {
	mem, err := NewTokenBucket(Config{Capacity: 1, RatePerSecond: 0.001})
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	reject := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	keyFn := func(r *http.Request) string { return r.Header.Get("X-Key") }

	h := NewMiddleware(mem, keyFn, reject, nil)(next)

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("a"))
	require.Equal(t, http.StatusTooManyRequests, do("a"))
	require.Equal(t, http.StatusOK, do("b"))
	// 沒有 key 不限流
	require.Equal(t, http.StatusOK, do(""))
	require.Equal(t, http.StatusOK, do(""))

	failOpen := NewMiddleware(errLimiter{}, keyFn, reject, nil)(next)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Key", "a")
	rec := httptest.NewRecorder()
	failOpen.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
