package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerFanOut(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()

	s1, err := b.Subscribe(ctx, "p-1")
	require.NoError(t, err)
	s2, err := b.Subscribe(ctx, "p-1")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "p-2")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "p-1"))

	for _, s := range []Subscription{s1, s2} {
		select {
		case <-s.C():
		case <-time.After(time.Second):
			t.Fatal("expected notification")
		}
	}

	select {
	case <-other.C():
		t.Fatal("unexpected notification for other product")
	default:
	}
}

func TestMemoryBrokerCoalesces(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	s, err := b.Subscribe(ctx, "p-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(ctx, "p-1"))
	}
	<-s.C()
	select {
	case <-s.C():
		t.Fatal("notifications should coalesce")
	default:
	}
}

func TestMemoryBrokerClose(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBroker()
	s, err := b.Subscribe(ctx, "p-1")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, ok := <-s.C()
	require.False(t, ok)
	require.NoError(t, s.Close())

	s2, err := b.Subscribe(ctx, "p-1")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, ok = <-s2.C()
	require.False(t, ok)

	require.ErrorIs(t, b.Publish(ctx, "p-1"), ErrBrokerClosed)
	_, err = b.Subscribe(ctx, "p-1")
	require.ErrorIs(t, err, ErrBrokerClosed)
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "catalog:product:p-1:variants", Channel("p-1"))
}
