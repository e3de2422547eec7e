package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/rs/zerolog"
)

// 解析 bearer token 並把 identity 放進 context
// token 缺少或無效都不會中斷，由 AuthMiddleware 決定是否需要登入
func AuthPayloadMiddleware(provider auth.Provider, logger *zerolog.Logger) func(http.Handler) http.Handler {
	if provider == nil {
		panic("auth provider is nil")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := provider.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) && logger != nil {
					logger.Warn().Err(err).Str("request_id", util.GetRequestIDFromContext(r.Context())).Msg("failed to resolve token")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(util.WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(string(constants.AuthorizationHeaderKey))
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return "", false
	}
	if strings.ToLower(fields[0]) != string(constants.AuthorizationTypeBearer) {
		return "", false
	}
	return fields[1], true
}

// AuthMiddleware 需要登入且角色符合
func AuthMiddleware(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := util.GetIdentityFromContext(r.Context())
			if identity == nil {
				response.ErrorJSON(w, http.StatusUnauthorized, "unauthenticated", nil)
				return
			}
			if identity.Role != role {
				response.ErrorJSON(w, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
