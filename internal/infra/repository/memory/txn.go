package memory

import (
	"context"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
)

type variantRef struct {
	productID string
	variantID string
}

// txn 讀取時記錄 version，寫入先暫存，commit 時一次套用
// seen 是 ListVariants 掃過的 version，只有被寫入或 GetVariant 的 variant 才進 reads 驗證
type txn struct {
	store  *Store
	seen   map[variantRef]int64
	reads  map[variantRef]int64
	writes map[variantRef]int
	order  []variantRef
	orders []*model.Order
}

func newTxn(s *Store) *txn {
	return &txn{
		store:  s,
		seen:   make(map[variantRef]int64),
		reads:  make(map[variantRef]int64),
		writes: make(map[variantRef]int),
	}
}

func (t *txn) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	t.store.mu.RLock()
	variants := t.store.copyVariants(productID)
	t.store.mu.RUnlock()

	for i := range variants {
		t.track(&variants[i], false)
	}
	return variants, nil
}

func (t *txn) GetVariant(ctx context.Context, productID, variantID string) (*model.Variant, error) {
	t.store.mu.RLock()
	doc := t.store.findVariant(productID, variantID)
	var v model.Variant
	if doc != nil {
		v = *doc
	}
	t.store.mu.RUnlock()

	if doc == nil {
		return nil, ledger.ErrVariantNotFound
	}
	t.track(&v, true)
	return &v, nil
}

// track 記錄第一次讀到的 version，並讓交易看得到自己的寫入
func (t *txn) track(v *model.Variant, validate bool) {
	ref := variantRef{productID: v.ProductID, variantID: v.ID}
	if _, ok := t.seen[ref]; !ok {
		t.seen[ref] = v.Version
	}
	if _, ok := t.reads[ref]; validate && !ok {
		t.reads[ref] = t.seen[ref]
	}
	if stock, ok := t.writes[ref]; ok {
		v.SetStock(stock)
	}
}

func (t *txn) SetVariantStock(ctx context.Context, productID, variantID string, stock int) error {
	if stock < 0 {
		return ledger.ErrNegativeStock
	}
	ref := variantRef{productID: productID, variantID: variantID}
	if _, ok := t.reads[ref]; !ok {
		if version, listed := t.seen[ref]; listed {
			t.reads[ref] = version
		} else if _, err := t.GetVariant(ctx, productID, variantID); err != nil {
			// 沒讀過就寫入，先讀一次取得 version
			return err
		}
	}
	if _, ok := t.writes[ref]; !ok {
		t.order = append(t.order, ref)
	}
	t.writes[ref] = stock
	return nil
}

func (t *txn) CreateOrder(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		return fmt.Errorf("order id is required")
	}
	t.orders = append(t.orders, order)
	return nil
}

// commit 驗證 reads 的 version 沒有變動後套用寫入
func (t *txn) commit() error {
	s := t.store
	if s.beforeCommit != nil {
		s.beforeCommit()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, version := range t.reads {
		doc := s.findVariant(ref.productID, ref.variantID)
		if doc == nil {
			return ledger.Conflict(fmt.Errorf("variant %s removed", ref.variantID))
		}
		if doc.Version != version {
			return ledger.Conflict(fmt.Errorf("variant %s version %d != %d", ref.variantID, doc.Version, version))
		}
	}
	for _, o := range t.orders {
		if _, ok := s.orders[o.ID]; ok {
			return fmt.Errorf("order %s already exists", o.ID)
		}
	}

	now := s.now().UTC()
	for _, ref := range t.order {
		doc := s.findVariant(ref.productID, ref.variantID)
		doc.SetStock(t.writes[ref])
		doc.Version++
		doc.UpdatedAt = now
	}
	for _, o := range t.orders {
		o.CreatedAt = now
		o.UpdatedAt = now
		cp := *o
		cp.LineItems = append([]model.CartLineItem(nil), o.LineItems...)
		s.orders[o.ID] = &cp
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn ledger.TxFunc) error {
	return ledger.RunWithRetry(ctx, s.maxAttempts, func(ctx context.Context) error {
		t := newTxn(s)
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.commit()
	})
}
