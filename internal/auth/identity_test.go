package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[string]Identity{
		"r-token": {UID: "r-1", Role: RoleRetailer},
	})
	p.Add("w-token", Identity{UID: "w-1", Role: RoleWholesaler})

	id, err := p.Resolve(context.Background(), "r-token")
	require.NoError(t, err)
	require.True(t, id.IsRetailer())

	id, err = p.Resolve(context.Background(), "w-token")
	require.NoError(t, err)
	require.True(t, id.IsWholesaler())
	require.Equal(t, "w-1", id.UID)

	_, err = p.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = p.Resolve(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("wholesaler")
	require.NoError(t, err)
	require.Equal(t, RoleWholesaler, r)

	_, err = ParseRole("admin")
	require.ErrorIs(t, err, ErrInvalidRole)
}
