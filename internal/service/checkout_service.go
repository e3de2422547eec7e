package service

import (
	"context"
	"errors"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/feed"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderEventPublisher 訂單建立後的通知，失敗不影響訂單
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *model.Order) error
}

type CheckoutRequest struct {
	Retailer     auth.Identity
	WholesalerID string
	Customer     model.Customer
	Cart         *cart.Cart
}

type CheckoutService struct {
	txRunner  ledger.TxRunner
	calc      pricing.Calculator
	publisher OrderEventPublisher
	broker    feed.Broker
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
	newID     func() string
}

type CheckoutOption func(*CheckoutService)

func WithOrderPublisher(p OrderEventPublisher) CheckoutOption {
	return func(s *CheckoutService) {
		s.publisher = p
	}
}

func WithFeedBroker(b feed.Broker) CheckoutOption {
	return func(s *CheckoutService) {
		s.broker = b
	}
}

func WithMetrics(m *metrics.Metrics) CheckoutOption {
	return func(s *CheckoutService) {
		s.metrics = m
	}
}

func WithOrderIDGenerator(fn func() string) CheckoutOption {
	return func(s *CheckoutService) {
		s.newID = fn
	}
}

func NewCheckoutService(txRunner ledger.TxRunner, calc pricing.Calculator, logger *zerolog.Logger, opts ...CheckoutOption) *CheckoutService {
	if txRunner == nil {
		panic("checkout service tx runner is nil")
	}
	if logger == nil {
		panic("checkout service logger is nil")
	}
	s := &CheckoutService{
		txRunner: txRunner,
		calc:     calc,
		logger:   logger,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reservation 同一個 variant 的所有品項共用剩餘庫存
type reservation struct {
	productID string
	variantID string
	remaining int
}

/*
PlaceOrder 以單一交易扣除購物車所有品項的庫存並建立訂單
全部成功才 commit，任何一個品項失敗整筆交易不生效，購物車保留

錯誤:
  - *ValidationError: 購物車為空、客戶資料缺漏，不會呼叫 store
  - *VariantNotFoundError: 品項的 (color, size) 已不存在
  - *InsufficientStockError: 庫存不足
  - *TransactionConflictError: 重試後仍然衝突
  - *StoreUnavailableError: 其他 store 錯誤
*/
func (s *CheckoutService) PlaceOrder(ctx context.Context, req CheckoutRequest) (*model.Order, error) {
	start := time.Now()

	customer, err := s.validate(req)
	if err != nil {
		s.metrics.ObserveCheckout(checkoutResult(err), start)
		return nil, err
	}

	items := req.Cart.Snapshot()
	summary := s.calc.Summarize(items)
	orderID := s.newID()

	var placed *model.Order
	err = s.txRunner.RunTransaction(ctx, func(ctx context.Context, tx ledger.Txn) error {
		placed = nil
		lines := make([]model.CartLineItem, len(items))
		copy(lines, items)

		balances := make(map[string]*reservation, len(lines))
		var touched []*reservation
		for i := range lines {
			item := &lines[i]
			variants, err := tx.ListVariants(ctx, item.ProductID)
			if err != nil {
				return err
			}
			v, ok := model.FindVariant(variants, item.Color, item.Size)
			if !ok {
				return &VariantNotFoundError{Item: item.DisplayName()}
			}

			r, ok := balances[v.ID]
			if !ok {
				r = &reservation{productID: v.ProductID, variantID: v.ID, remaining: v.Stock}
				balances[v.ID] = r
				touched = append(touched, r)
			}
			if r.remaining < item.Quantity {
				return &InsufficientStockError{Item: item.DisplayName(), Requested: item.Quantity, Available: r.remaining}
			}
			r.remaining -= item.Quantity
			item.VariantID = v.ID
		}

		for _, r := range touched {
			if err := tx.SetVariantStock(ctx, r.productID, r.variantID, r.remaining); err != nil {
				return err
			}
		}

		order := &model.Order{
			ID:           orderID,
			WholesalerID: req.WholesalerID,
			RetailerID:   req.Retailer.UID,
			Customer:     customer,
			LineItems:    lines,
			Subtotal:     summary.Subtotal,
			Tax:          summary.Tax,
			Shipping:     summary.Shipping,
			Total:        summary.Total,
			TotalDisplay: summary.Display(),
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		err = mapCheckoutError(err)
		s.metrics.ObserveCheckout(checkoutResult(err), start)
		s.logger.Warn().
			Err(err).
			Str("order_id", orderID).
			Str("wholesaler_id", req.WholesalerID).
			Str("retailer_id", req.Retailer.UID).
			Msg("checkout failed")
		return nil, err
	}

	s.metrics.ObserveCheckout(metrics.CheckoutResultSuccess, start)
	s.afterCommit(ctx, req.Cart, placed)
	return placed, nil
}

func (s *CheckoutService) validate(req CheckoutRequest) (model.Customer, error) {
	if req.Cart == nil || req.Cart.IsEmpty() {
		return model.Customer{}, &ValidationError{Fields: []string{"cart"}, Reason: "cart is empty"}
	}

	var fields []string
	if req.Retailer.UID == "" {
		fields = append(fields, "retailer")
	}
	if req.WholesalerID == "" {
		fields = append(fields, "wholesaler_id")
	}
	fields = append(fields, req.Customer.MissingFields()...)
	if len(fields) > 0 {
		return model.Customer{}, &ValidationError{Fields: fields}
	}
	if req.Retailer.Role != "" && !req.Retailer.IsRetailer() {
		return model.Customer{}, ErrForbidden
	}

	for _, item := range req.Cart.Items() {
		if item.WholesalerID != "" && item.WholesalerID != req.WholesalerID {
			return model.Customer{}, &ValidationError{
				Fields: []string{item.DisplayName()},
				Reason: "cart contains items from another wholesaler",
			}
		}
	}
	return req.Customer.Normalize(), nil
}

// afterCommit 訂單已經存在，這裡的錯誤只記錄不回傳
func (s *CheckoutService) afterCommit(ctx context.Context, c *cart.Cart, order *model.Order) {
	log := s.logger.With().Str("order_id", order.ID).Logger()

	if err := c.Clear(ctx); err != nil {
		log.Error().Err(err).Str("session_id", c.SessionID()).Msg("failed to clear cart after checkout")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			log.Error().Err(err).Msg("failed to publish order placed event")
		}
	}

	if s.broker != nil {
		seen := make(map[string]struct{}, len(order.LineItems))
		for _, item := range order.LineItems {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			if err := s.broker.Publish(ctx, item.ProductID); err != nil {
				log.Warn().Err(err).Str("product_id", item.ProductID).Msg("failed to publish variant change")
			}
		}
	}

	log.Info().
		Str("wholesaler_id", order.WholesalerID).
		Str("retailer_id", order.RetailerID).
		Str("total", order.TotalDisplay).
		Int("lines", len(order.LineItems)).
		Msg("order placed")
}

func mapCheckoutError(err error) error {
	var (
		validation   *ValidationError
		notFound     *VariantNotFoundError
		insufficient *InsufficientStockError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound), errors.As(err, &insufficient):
		return err
	case errors.Is(err, ledger.ErrTxnConflict):
		return &TransactionConflictError{Err: err}
	default:
		return &StoreUnavailableError{Err: err}
	}
}

func checkoutResult(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return metrics.CheckoutResultValidation
	case errors.Is(err, ErrForbidden):
		return metrics.CheckoutResultForbidden
	case errors.Is(err, ErrVariantNotFound):
		return metrics.CheckoutResultNotFound
	case errors.Is(err, ErrInsufficientStock):
		return metrics.CheckoutResultInsufficient
	case errors.Is(err, ErrTransactionConflict):
		return metrics.CheckoutResultConflict
	default:
		return metrics.CheckoutResultUnavailable
	}
}
