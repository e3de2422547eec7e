package util

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
)

func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, constants.AuthorizationIdentity, identity)
}

// GetIdentityFromContext 沒有經過 auth middleware 回傳 nil
func GetIdentityFromContext(ctx context.Context) *auth.Identity {
	if v, ok := ctx.Value(constants.AuthorizationIdentity).(*auth.Identity); ok {
		return v
	}
	return nil
}

func GetRequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(constants.RequestIDKey).(string); ok {
		return v
	}
	return ""
}
