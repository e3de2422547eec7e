package redis_repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// txn 寫入暫存到 commit 時用 MULTI/EXEC 送出
// ListVariants 只記下 version 不 WATCH，要寫入或 GetVariant 的 key 才 WATCH 並比對 version
type txn struct {
	store   *Store
	tx      *redis.Tx
	watched map[string]struct{}
	seen    map[string]int64
	writes  map[string]int
	order   []string
	orders  []*model.Order
}

func newTxn(s *Store, tx *redis.Tx) *txn {
	return &txn{
		store:   s,
		tx:      tx,
		watched: make(map[string]struct{}),
		seen:    make(map[string]int64),
		writes:  make(map[string]int),
	}
}

func (t *txn) watch(ctx context.Context, keys ...string) error {
	var pending []string
	for _, k := range keys {
		if _, ok := t.watched[k]; !ok {
			pending = append(pending, k)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if err := t.tx.Watch(ctx, pending...).Err(); err != nil {
		return ledger.Unavailable(err)
	}
	for _, k := range pending {
		t.watched[k] = struct{}{}
	}
	return nil
}

func (t *txn) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	variants, err := listVariants(ctx, t.tx, productID)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		key := generateVariantKey(productID, variants[i].ID)
		if _, ok := t.seen[key]; !ok {
			t.seen[key] = variants[i].Version
		}
		t.overlay(&variants[i])
	}
	return variants, nil
}

// GetVariant WATCH 之後重新讀取，version 與先前掃到的不同 => 衝突重跑
func (t *txn) GetVariant(ctx context.Context, productID, variantID string) (*model.Variant, error) {
	key := generateVariantKey(productID, variantID)
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	h, err := t.tx.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, ledger.Unavailable(err)
	}
	v, ok, err := variantFromHash(h)
	if err != nil {
		return nil, err
	}

	version, listed := t.seen[key]
	if !ok {
		if listed {
			return nil, ledger.Conflict(fmt.Errorf("variant %s removed", variantID))
		}
		return nil, ledger.ErrVariantNotFound
	}
	if listed && version != v.Version {
		return nil, ledger.Conflict(fmt.Errorf("variant %s version %d != %d", variantID, v.Version, version))
	}
	t.seen[key] = v.Version
	t.overlay(&v)
	return &v, nil
}

// overlay 讓交易看得到自己尚未 commit 的寫入
func (t *txn) overlay(v *model.Variant) {
	if stock, ok := t.writes[generateVariantKey(v.ProductID, v.ID)]; ok {
		v.SetStock(stock)
	}
}

func (t *txn) SetVariantStock(ctx context.Context, productID, variantID string, stock int) error {
	if stock < 0 {
		return ledger.ErrNegativeStock
	}
	key := generateVariantKey(productID, variantID)
	if _, ok := t.watched[key]; !ok {
		if _, err := t.GetVariant(ctx, productID, variantID); err != nil {
			return err
		}
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = stock
	return nil
}

func (t *txn) CreateOrder(ctx context.Context, order *model.Order) error {
	if order.ID == "" {
		return errors.New("order id is required")
	}
	t.orders = append(t.orders, order)
	return nil
}

func (t *txn) commit(ctx context.Context) error {
	now := t.store.now().UTC()
	payloads := make([][]byte, len(t.orders))
	for i, o := range t.orders {
		o.CreatedAt = now
		o.UpdatedAt = now
		b, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode order %s: %w", o.ID, err)
		}
		payloads[i] = b
	}

	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range t.order {
			st := ledger.StockStatusOf(t.writes[key])
			pipe.HSet(ctx, key,
				"stock", st.Stock,
				"status", string(st.Status),
				"updated_at", now.Format(time.RFC3339Nano),
			)
			pipe.HIncrBy(ctx, key, "version", 1)
		}
		for i, o := range t.orders {
			pipe.SetNX(ctx, generateOrderKey(o.ID), payloads[i], 0)
			pipe.ZAdd(ctx, generateWholesalerOrdersKey(o.WholesalerID), redis.Z{Score: float64(now.UnixNano()), Member: o.ID})
		}
		return nil
	})
	return mapExecError(err)
}
