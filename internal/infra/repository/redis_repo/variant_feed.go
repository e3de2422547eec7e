package redis_repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/feed"
	"github.com/redis/go-redis/v9"
)

const variantChangedPayload = "changed"

// VariantFeed 以 redis pub/sub 廣播 variant 變動，多個 instance 共用
type VariantFeed struct {
	client *redis.Client
}

func NewVariantFeed(client *redis.Client) *VariantFeed {
	if client == nil {
		panic("variant feed client is nil")
	}
	return &VariantFeed{client: client}
}

func (f *VariantFeed) Publish(ctx context.Context, productID string) error {
	return f.client.Publish(ctx, feed.Channel(productID), variantChangedPayload).Err()
}

// Subscribe 等到 redis 確認訂閱後才回傳，之後的 Publish 不會遺失
func (f *VariantFeed) Subscribe(ctx context.Context, productID string) (feed.Subscription, error) {
	ps := f.client.Subscribe(ctx, feed.Channel(productID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", productID, err)
	}

	sub := &pubSubSubscription{
		ps:   ps,
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type pubSubSubscription struct {
	ps        *redis.PubSub
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *pubSubSubscription) forward() {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- struct{}{}:
			default:
			}
		}
	}
}

func (s *pubSubSubscription) C() <-chan struct{} {
	return s.ch
}

func (s *pubSubSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

var _ feed.Broker = (*VariantFeed)(nil)
