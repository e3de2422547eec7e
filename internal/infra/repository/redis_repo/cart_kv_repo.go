package redis_repo

import (
	"context"
	"errors"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/redis/go-redis/v9"
)

// CartKVRepo 購物車的 redis 儲存，每次寫入都會刷新 TTL
type CartKVRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartKVRepo(client *redis.Client, ttl time.Duration) *CartKVRepo {
	if client == nil {
		panic("cart kv repo client is nil")
	}
	return &CartKVRepo{client: client, ttl: ttl}
}

func (r *CartKVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *CartKVRepo) Set(ctx context.Context, key string, value string) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *CartKVRepo) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

var _ cart.KV = (*CartKVRepo)(nil)
