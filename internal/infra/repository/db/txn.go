package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"gorm.io/gorm"
)

type variantRef struct {
	productID string
	variantID string
}

// txn 讀取時記錄 version，commit 時以 version 條件更新
type txn struct {
	store  *Store
	tx     *gorm.DB
	reads  map[variantRef]int64
	writes map[variantRef]int
	order  []variantRef
	orders []*model.Order
}

func newTxn(s *Store, tx *gorm.DB) *txn {
	return &txn{
		store:  s,
		tx:     tx,
		reads:  make(map[variantRef]int64),
		writes: make(map[variantRef]int),
	}
}

func (t *txn) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	variants, err := listVariants(ctx, t.tx, productID)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		t.track(&variants[i])
	}
	return variants, nil
}

func (t *txn) GetVariant(ctx context.Context, productID, variantID string) (*model.Variant, error) {
	var v model.Variant
	err := t.tx.WithContext(ctx).
		Where("product_id = ? AND id = ?", productID, variantID).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrVariantNotFound
		}
		return nil, mapDBError(err)
	}
	t.track(&v)
	return &v, nil
}

func (t *txn) track(v *model.Variant) {
	ref := variantRef{productID: v.ProductID, variantID: v.ID}
	if _, ok := t.reads[ref]; !ok {
		t.reads[ref] = v.Version
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
		if _, err := t.GetVariant(ctx, productID, variantID); err != nil {
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
		return errors.New("order id is required")
	}
	t.orders = append(t.orders, order)
	return nil
}

// commit 任何一筆 version 不符 => 衝突，整個交易 rollback
func (t *txn) commit(ctx context.Context) error {
	now := t.store.timestamp()
	for _, ref := range t.order {
		st := ledger.StockStatusOf(t.writes[ref])
		res := t.tx.WithContext(ctx).
			Model(&model.Variant{}).
			Where("product_id = ? AND id = ? AND version = ?", ref.productID, ref.variantID, t.reads[ref]).
			Updates(map[string]interface{}{
				"stock":      st.Stock,
				"status":     st.Status,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return mapDBError(res.Error)
		}
		if res.RowsAffected == 0 {
			return ledger.Conflict(fmt.Errorf("variant %s version %d changed", ref.variantID, t.reads[ref]))
		}
	}

	for _, o := range t.orders {
		o.CreatedAt = now
		o.UpdatedAt = now
		if err := t.tx.WithContext(ctx).Create(o).Error; err != nil {
			return mapDBError(err)
		}
	}
	return nil
}
