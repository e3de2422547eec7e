package feed

import (
	"context"
	"errors"
	"sync"
)

var ErrBrokerClosed = errors.New("broker closed")

// Broker variant 變動通知
// 通知不帶內容，收到後由訂閱者重新讀取 variants
type Broker interface {
	Publish(ctx context.Context, productID string) error
	Subscribe(ctx context.Context, productID string) (Subscription, error)
}

// Subscription C() 在 Close 後會被關閉
// 連續的通知可能合併成一次
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

// Channel redis pub/sub 使用的 channel 名稱
func Channel(productID string) string {
	return "catalog:product:" + productID + ":variants"
}

type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, productID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[productID] {
		sub.notify()
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, productID string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}
	sub := &memorySubscription{
		broker:    b,
		productID: productID,
		ch:        make(chan struct{}, 1),
	}
	if b.subs[productID] == nil {
		b.subs[productID] = make(map[*memorySubscription]struct{})
	}
	b.subs[productID][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.closeLocked()
		}
	}
	b.subs = make(map[string]map[*memorySubscription]struct{})
	return nil
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[sub.productID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subs, sub.productID)
		}
	}
	sub.closeLocked()
}

type memorySubscription struct {
	broker    *MemoryBroker
	productID string
	ch        chan struct{}
	closed    bool
}

// notify 呼叫端需持有 broker.mu
func (s *memorySubscription) notify() {
	if s.closed {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *memorySubscription) C() <-chan struct{} {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.broker.remove(s)
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
