package db

import (
	"context"
	"errors"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"gorm.io/gorm"
)

// Store postgres document store
// variants 以 version 欄位做 compare-and-swap
type Store struct {
	db          *DbDao
	maxAttempts int
	now         func() time.Time
}

func NewStore(db *DbDao, maxAttempts int) *Store {
	if db == nil {
		panic("db store dao is nil")
	}
	return &Store{db: db, maxAttempts: maxAttempts, now: time.Now}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	// postgres timestamp 精度為微秒
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) RunTransaction(ctx context.Context, fn ledger.TxFunc) error {
	return ledger.RunWithRetry(ctx, s.maxAttempts, func(ctx context.Context) error {
		var fnErr error
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			t := newTxn(s, tx)
			if fnErr = fn(ctx, t); fnErr != nil {
				return fnErr
			}
			return t.commit(ctx)
		})
		if err == nil || (fnErr != nil && errors.Is(err, fnErr)) {
			return err
		}
		if ledger.IsConflict(err) || errors.Is(err, ledger.ErrStoreUnavailable) {
			return err
		}
		return mapDBError(err)
	})
}

func (s *Store) ReadVariant(ctx context.Context, productID, variantID string) (ledger.StockStatus, error) {
	var v model.Variant
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND id = ?", productID, variantID).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.StockStatus{}, ledger.ErrVariantNotFound
		}
		return ledger.StockStatus{}, mapDBError(err)
	}
	return ledger.StockStatus{Stock: v.Stock, Status: v.Status}, nil
}

// WriteVariant 單一 UPDATE，本身就是原子操作
func (s *Store) WriteVariant(ctx context.Context, productID, variantID string, newStock int) (ledger.StockStatus, error) {
	if newStock < 0 {
		return ledger.StockStatus{}, ledger.ErrNegativeStock
	}
	st := ledger.StockStatusOf(newStock)
	res := s.db.WithContext(ctx).
		Model(&model.Variant{}).
		Where("product_id = ? AND id = ?", productID, variantID).
		Updates(map[string]interface{}{
			"stock":      st.Stock,
			"status":     st.Status,
			"version":    gorm.Expr("version + 1"),
			"updated_at": s.timestamp(),
		})
	if res.Error != nil {
		return ledger.StockStatus{}, mapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.StockStatus{}, ledger.ErrVariantNotFound
	}
	return st, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *model.Product) error {
	now := s.timestamp()
	product.CreatedAt = now
	product.UpdatedAt = now
	return mapDBError(s.db.WithContext(ctx).Create(product).Error)
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	err := s.db.WithContext(ctx).Where("id = ?", productID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrProductNotFound
		}
		return nil, mapDBError(err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	product.UpdatedAt = s.timestamp()
	res := s.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":       product.Name,
			"price":      product.Price,
			"category":   product.Category,
			"image_url":  product.ImageURL,
			"updated_at": product.UpdatedAt,
		})
	if res.Error != nil {
		return mapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrProductNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&model.Variant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", productID).Delete(&model.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrProductNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ledger.ErrProductNotFound) {
		return mapDBError(err)
	}
	return err
}

func (s *Store) ListProductsByOwner(ctx context.Context, ownerID string) ([]model.Product, error) {
	var products []model.Product
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id").
		Find(&products).Error
	if err != nil {
		return nil, mapDBError(err)
	}
	return products, nil
}

func (s *Store) ListRecentProducts(ctx context.Context, limit int) ([]model.Product, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var products []model.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, mapDBError(err)
	}
	return products, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant *model.Variant) error {
	if _, err := s.GetProduct(ctx, variant.ProductID); err != nil {
		return err
	}
	now := s.timestamp()
	variant.SetStock(variant.Stock)
	variant.Version = 0
	variant.CreatedAt = now
	variant.UpdatedAt = now
	return mapDBError(s.db.WithContext(ctx).Create(variant).Error)
}

func (s *Store) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	return listVariants(ctx, s.db.DB, productID)
}

// listVariants 依建立順序
func listVariants(ctx context.Context, db *gorm.DB, productID string) ([]model.Variant, error) {
	variants := []model.Variant{}
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at, id").
		Find(&variants).Error
	if err != nil {
		return nil, mapDBError(err)
	}
	return variants, nil
}

func (s *Store) DeleteVariant(ctx context.Context, productID, variantID string) error {
	res := s.db.WithContext(ctx).
		Where("product_id = ? AND id = ?", productID, variantID).
		Delete(&model.Variant{})
	if res.Error != nil {
		return mapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrVariantNotFound
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, mapDBError(err)
	}
	return &o, nil
}

func (s *Store) ListOrdersByWholesaler(ctx context.Context, wholesalerID string) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Where("wholesaler_id = ?", wholesalerID).
		Order("created_at DESC, id").
		Find(&orders).Error
	if err != nil {
		return nil, mapDBError(err)
	}
	return orders, nil
}

var _ ledger.Store = (*Store)(nil)
