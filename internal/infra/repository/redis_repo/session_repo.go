package redis_repo

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRepo token -> identity
// 結構:
//
//	session:<token>: {
//		uid: "w-1",
//		role: "wholesaler",
//	}
type SessionRepo struct {
	client *redis.Client
}

func NewSessionRepo(client *redis.Client) *SessionRepo {
	if client == nil {
		panic("session repo client is nil")
	}
	return &SessionRepo{client: client}
}

// Issue 建立新的 session token，ttl <= 0 表示不過期
func (r *SessionRepo) Issue(ctx context.Context, identity auth.Identity, ttl time.Duration) (string, error) {
	if _, err := auth.ParseRole(string(identity.Role)); err != nil {
		return "", err
	}
	token := uuid.NewString()
	key := generateSessionKey(token)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "uid", identity.UID, "role", string(identity.Role))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (r *SessionRepo) Resolve(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.ErrUnauthenticated
	}
	h, err := r.client.HGetAll(ctx, generateSessionKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 || h["uid"] == "" {
		return nil, auth.ErrUnauthenticated
	}
	role, err := auth.ParseRole(h["role"])
	if err != nil {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.Identity{UID: h["uid"], Role: role}, nil
}

func (r *SessionRepo) Revoke(ctx context.Context, token string) error {
	return r.client.Del(ctx, generateSessionKey(token)).Err()
}

var _ auth.Provider = (*SessionRepo)(nil)
