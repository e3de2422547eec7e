package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// TokenBucket 單機版，每個 key 一個桶，取用時才補 token
type TokenBucket struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

var _ Limiter = (*TokenBucket)(nil)

type TokenBucketOption func(*TokenBucket)

func WithClock(now func() time.Time) TokenBucketOption {
	return func(t *TokenBucket) {
		t.now = now
	}
}

func NewTokenBucket(cfg Config, opts ...TokenBucketOption) (*TokenBucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &TokenBucket{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(t.cfg.Capacity), lastRefill: now}
		t.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(t.cfg.Capacity), b.tokens+elapsed*t.cfg.RatePerSecond)
		b.lastRefill = now
	}

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	t.evict(now)
	return true, nil
}

// evict 清掉已經補滿的桶
func (t *TokenBucket) evict(now time.Time) {
	ttl := t.cfg.ttl()
	for key, b := range t.buckets {
		if now.Sub(b.lastRefill) > ttl {
			delete(t.buckets, key)
		}
	}
}
