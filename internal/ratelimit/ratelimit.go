package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidConfig = errors.New("invalid rate limit config")

// Limiter 以 key 為單位的限流器
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Capacity      int
	RatePerSecond float64 // tokens/秒
}

func (c Config) Validate() error {
	if c.Capacity < 1 {
		return errors.Join(ErrInvalidConfig, errors.New("capacity must be at least 1"))
	}
	if c.RatePerSecond <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("rate per second must be positive"))
	}
	return nil
}

// ttl 桶補滿所需時間，補滿後的 key 可以直接丟掉
func (c Config) ttl() time.Duration {
	full := time.Duration(float64(c.Capacity) / c.RatePerSecond * float64(time.Second))
	return full + time.Second
}

func GetDefaultConfig() Config {
	return Config{
		Capacity:      5,
		RatePerSecond: 1,
	}
}
