package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
)

// OrderService 訂單唯讀，建立只能透過 CheckoutService
type OrderService struct {
	repo ledger.OrderRepository
}

func NewOrderService(repo ledger.OrderRepository) *OrderService {
	if repo == nil {
		panic("order service repo is nil")
	}
	return &OrderService{repo: repo}
}

// GetOrder 只有訂單所屬的 wholesaler 可以讀取
func (s *OrderService) GetOrder(ctx context.Context, viewer auth.Identity, orderID string) (*model.Order, error) {
	if !viewer.IsWholesaler() {
		return nil, ErrForbidden
	}
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.WholesalerID != viewer.UID {
		// 不透露訂單是否存在
		return nil, ledger.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) ListOrders(ctx context.Context, viewer auth.Identity) ([]model.Order, error) {
	if !viewer.IsWholesaler() {
		return nil, ErrForbidden
	}
	return s.repo.ListOrdersByWholesaler(ctx, viewer.UID)
}
