package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient 介面定義
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// 時間單位為毫秒，避免 lua number 精度問題
var tokenBucketScript = `
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local currentTokens = tonumber(bucket[1])
	local lastRefill = tonumber(bucket[2])

	-- key 不存在時視為滿桶
	if currentTokens == nil then
		currentTokens = capacity
		lastRefill = now
	end

	local elapsed = (now - lastRefill) / 1000
	if elapsed > 0 then
		currentTokens = math.min(capacity, currentTokens + elapsed * rate)
		lastRefill = now
	end

	local allowed = 0
	if currentTokens >= 1 then
		currentTokens = currentTokens - 1
		allowed = 1
	end

	redis.call('HSET', key, 'tokens', tostring(currentTokens), 'last_refill', tostring(lastRefill))
	redis.call('PEXPIRE', key, ttl)
	return allowed
`

func generateBucketKey(prefix, key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", prefix, key)
}

// RedisTokenBucket 多個 instance 共用同一個桶
type RedisTokenBucket struct {
	cfg    Config
	prefix string
	client RedisClient
	now    func() time.Time
}

var _ Limiter = (*RedisTokenBucket)(nil)

type RedisTokenBucketOption func(*RedisTokenBucket)

func WithRedisClock(now func() time.Time) RedisTokenBucketOption {
	return func(r *RedisTokenBucket) {
		r.now = now
	}
}

func NewRedisTokenBucket(client RedisClient, prefix string, cfg Config, opts ...RedisTokenBucketOption) (*RedisTokenBucket, error) {
	if client == nil {
		panic("redis client is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &RedisTokenBucket{
		cfg:    cfg,
		prefix: prefix,
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *RedisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	result, err := r.client.Eval(
		ctx,
		tokenBucketScript,
		[]string{generateBucketKey(r.prefix, key)},
		r.cfg.Capacity,
		r.cfg.RatePerSecond,
		r.now().UnixMilli(),
		r.cfg.ttl().Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to eval token bucket: %w", err)
	}
	return result == 1, nil
}
