package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
)

// Store in-process document store
// 每個 variant 都是帶 version 的 document，交易在 commit 時比對讀取過的 version
type Store struct {
	mu          sync.RWMutex
	products    map[string]*model.Product
	variants    map[string][]*model.Variant // productID -> 依建立順序
	orders      map[string]*model.Order
	maxAttempts int
	now         func() time.Time

	// 測試用，commit 驗證前呼叫
	beforeCommit func()
}

type Option func(*Store)

func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		s.maxAttempts = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		products:    make(map[string]*model.Product),
		variants:    make(map[string][]*model.Variant),
		orders:      make(map[string]*model.Order),
		maxAttempts: ledger.DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Close() error {
	return nil
}

// findVariant 呼叫端需持有鎖
func (s *Store) findVariant(productID, variantID string) *model.Variant {
	for _, v := range s.variants[productID] {
		if v.ID == variantID {
			return v
		}
	}
	return nil
}

func (s *Store) ReadVariant(ctx context.Context, productID, variantID string) (ledger.StockStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.findVariant(productID, variantID)
	if v == nil {
		return ledger.StockStatus{}, ledger.ErrVariantNotFound
	}
	return ledger.StockStatus{Stock: v.Stock, Status: v.Status}, nil
}

func (s *Store) WriteVariant(ctx context.Context, productID, variantID string, newStock int) (ledger.StockStatus, error) {
	if newStock < 0 {
		return ledger.StockStatus{}, ledger.ErrNegativeStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.findVariant(productID, variantID)
	if v == nil {
		return ledger.StockStatus{}, ledger.ErrVariantNotFound
	}
	v.SetStock(newStock)
	v.Version++
	v.UpdatedAt = s.now().UTC()
	return ledger.StockStatus{Stock: v.Stock, Status: v.Status}, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	p := *product
	s.products[p.ID] = &p
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, ledger.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[product.ID]
	if !ok {
		return ledger.ErrProductNotFound
	}
	product.CreatedAt = p.CreatedAt
	product.UpdatedAt = s.now().UTC()
	cp := *product
	s.products[product.ID] = &cp
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return ledger.ErrProductNotFound
	}
	delete(s.products, productID)
	delete(s.variants, productID)
	return nil
}

func (s *Store) ListProductsByOwner(ctx context.Context, ownerID string) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []model.Product
	for _, p := range s.products {
		if p.OwnerID == ownerID {
			res = append(res, *p)
		}
	}
	sortNewestFirst(res)
	return res, nil
}

func (s *Store) ListRecentProducts(ctx context.Context, limit int) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		res = append(res, *p)
	}
	sortNewestFirst(res)
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant *model.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[variant.ProductID]; !ok {
		return ledger.ErrProductNotFound
	}
	now := s.now().UTC()
	variant.SetStock(variant.Stock)
	variant.Version = 0
	variant.CreatedAt = now
	variant.UpdatedAt = now
	v := *variant
	s.variants[v.ProductID] = append(s.variants[v.ProductID], &v)
	return nil
}

func (s *Store) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyVariants(productID), nil
}

func (s *Store) copyVariants(productID string) []model.Variant {
	docs := s.variants[productID]
	res := make([]model.Variant, 0, len(docs))
	for _, v := range docs {
		res = append(res, *v)
	}
	return res
}

func (s *Store) DeleteVariant(ctx context.Context, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.variants[productID]
	for i, v := range docs {
		if v.ID == variantID {
			s.variants[productID] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return ledger.ErrVariantNotFound
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, ledger.ErrOrderNotFound
	}
	cp := *o
	cp.LineItems = append([]model.CartLineItem(nil), o.LineItems...)
	return &cp, nil
}

func (s *Store) ListOrdersByWholesaler(ctx context.Context, wholesalerID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []model.Order
	for _, o := range s.orders {
		if o.WholesalerID == wholesalerID {
			cp := *o
			cp.LineItems = append([]model.CartLineItem(nil), o.LineItems...)
			res = append(res, cp)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func sortNewestFirst(products []model.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID < products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}

var _ ledger.Store = (*Store)(nil)
