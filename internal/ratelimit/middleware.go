package ratelimit

import (
	"net/http"

	"github.com/rs/zerolog"
)

// KeyFunc 從 request 取出限流 key，回傳空字串表示不限流
type KeyFunc func(r *http.Request) string

// NewMiddleware 限流中間件
// limiter 出錯時放行，只記 log
func NewMiddleware(limiter Limiter, keyFn KeyFunc, reject http.HandlerFunc, logger *zerolog.Logger) func(http.Handler) http.Handler {
	if limiter == nil || keyFn == nil || reject == nil {
		panic("rate limit middleware missing dependency")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if logger != nil {
					logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, request allowed")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
