package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithRetry(t *testing.T) {
	errDomain := errors.New("domain failure")

	testCases := []struct {
		name      string
		failures  int
		final     error
		wantCalls int
		check     func(t *testing.T, err error)
	}{
		{
			name:      "commit first time",
			wantCalls: 1,
			check:     func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:      "conflict then commit",
			failures:  2,
			wantCalls: 3,
			check:     func(t *testing.T, err error) { require.NoError(t, err) },
		},
		{
			name:      "conflict exhausts attempts",
			failures:  10,
			wantCalls: 3,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrTxnConflict)
				require.True(t, IsConflict(err))
			},
		},
		{
			name:      "domain error aborts without retry",
			final:     errDomain,
			wantCalls: 1,
			check:     func(t *testing.T, err error) { require.ErrorIs(t, err, errDomain) },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := RunWithRetry(context.Background(), 3, func(ctx context.Context) error {
				calls++
				if calls <= tc.failures {
					return Conflict(errors.New("version changed"))
				}
				return tc.final
			})
			tc.check(t, err)
			require.Equal(t, tc.wantCalls, calls)
		})
	}
}

func TestRunWithRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWithRetry(ctx, 3, func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestUnavailableKeepsSentinel(t *testing.T) {
	err := Unavailable(errors.New("dial tcp: refused"))
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NoError(t, Unavailable(nil))
	require.Equal(t, err, Unavailable(err))
}
