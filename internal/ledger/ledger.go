package ledger

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

type LedgerError error

var (
	ErrProductNotFound  LedgerError = errors.New("product not found")
	ErrVariantNotFound  LedgerError = errors.New("variant not found")
	ErrOrderNotFound    LedgerError = errors.New("order not found")
	ErrNegativeStock    LedgerError = errors.New("stock cannot be negative")
	ErrTxnConflict      LedgerError = errors.New("transaction conflict")
	ErrStoreUnavailable LedgerError = errors.New("store unavailable")
)

// DefaultMaxAttempts 衝突時重跑交易的次數上限
const DefaultMaxAttempts = 5

// StockStatus 單一 variant 的庫存狀態
type StockStatus struct {
	Stock  int                 `json:"stock"`
	Status model.VariantStatus `json:"status"`
}

func StockStatusOf(stock int) StockStatus {
	return StockStatus{Stock: stock, Status: model.StatusOf(stock)}
}

// Txn 交易內可用的操作
// 所有寫入在 commit 前對其他交易不可見
type Txn interface {
	// ListVariants 依建立順序回傳
	ListVariants(ctx context.Context, productID string) ([]model.Variant, error)
	GetVariant(ctx context.Context, productID, variantID string) (*model.Variant, error)
	// SetVariantStock 寫入庫存並重新計算 status
	SetVariantStock(ctx context.Context, productID, variantID string, stock int) error
	// CreateOrder 由 store 指派 CreatedAt
	CreateOrder(ctx context.Context, order *model.Order) error
}

type TxFunc func(ctx context.Context, tx Txn) error

// TxRunner 執行 all-or-nothing 交易
// fn 回傳錯誤 => 立即 rollback 不重試
// 偵測到衝突 => 重跑 fn，超過上限回傳 ErrTxnConflict
type TxRunner interface {
	RunTransaction(ctx context.Context, fn TxFunc) error
}

// Ledger 交易以外的單筆讀寫，給 admin 修改庫存使用
type Ledger interface {
	ReadVariant(ctx context.Context, productID, variantID string) (StockStatus, error)
	WriteVariant(ctx context.Context, productID, variantID string, newStock int) (StockStatus, error)
}

// CatalogRepository 商品目錄
type CatalogRepository interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	UpdateProduct(ctx context.Context, product *model.Product) error
	// DeleteProduct 連同 variants 一起刪除
	DeleteProduct(ctx context.Context, productID string) error
	// ListProductsByOwner 依 CreatedAt 新到舊
	ListProductsByOwner(ctx context.Context, ownerID string) ([]model.Product, error)
	ListRecentProducts(ctx context.Context, limit int) ([]model.Product, error)
	CreateVariant(ctx context.Context, variant *model.Variant) error
	ListVariants(ctx context.Context, productID string) ([]model.Variant, error)
	DeleteVariant(ctx context.Context, productID, variantID string) error
}

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	// ListOrdersByWholesaler 依 CreatedAt 新到舊
	ListOrdersByWholesaler(ctx context.Context, wholesalerID string) ([]model.Order, error)
}

// Store 統一的 document store 介面
type Store interface {
	TxRunner
	Ledger
	CatalogRepository
	OrderRepository
	Close() error
}
