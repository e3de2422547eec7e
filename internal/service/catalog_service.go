package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/feed"
	"github.com/RoyceAzure/lab/storefront/internal/infra/blob"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const browseConcurrency = 8

type ProductInput struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func (in ProductInput) missingFields() []string {
	var fields []string
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, "name")
	}
	if !in.Price.IsPositive() {
		fields = append(fields, "price")
	}
	if strings.TrimSpace(in.Category) == "" {
		fields = append(fields, "category")
	}
	return fields
}

type VariantInput struct {
	Color string `json:"color"`
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

// Warning 不阻擋操作的提示
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const WarningDuplicateVariant = "duplicate_variant"

type CatalogService struct {
	repo    ledger.CatalogRepository
	ledger  ledger.Ledger
	blobs   blob.Store
	broker  feed.Broker
	metrics *metrics.Metrics
	logger  *zerolog.Logger
	newID   func() string
}

func NewCatalogService(repo ledger.CatalogRepository, l ledger.Ledger, blobs blob.Store, broker feed.Broker, m *metrics.Metrics, logger *zerolog.Logger) *CatalogService {
	if repo == nil || l == nil {
		panic("catalog service store is nil")
	}
	if blobs == nil {
		panic("catalog service blob store is nil")
	}
	if broker == nil {
		panic("catalog service broker is nil")
	}
	if logger == nil {
		panic("catalog service logger is nil")
	}
	return &CatalogService{
		repo:    repo,
		ledger:  l,
		blobs:   blobs,
		broker:  broker,
		metrics: m,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// ownedProduct 確認 product 存在且屬於 owner
func (s *CatalogService) ownedProduct(ctx context.Context, owner auth.Identity, productID string) (*model.Product, error) {
	if !owner.IsWholesaler() {
		return nil, ErrForbidden
	}
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != owner.UID {
		return nil, ErrForbidden
	}
	return p, nil
}

// CreateProduct 先上傳圖片再寫入商品
func (s *CatalogService) CreateProduct(ctx context.Context, owner auth.Identity, in ProductInput, filename string, image io.Reader) (*model.Product, error) {
	if !owner.IsWholesaler() {
		return nil, ErrForbidden
	}
	fields := in.missingFields()
	if image == nil || filename == "" {
		fields = append(fields, "image")
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	url, err := s.blobs.Upload(ctx, filename, image)
	if err != nil {
		if errors.Is(err, blob.ErrEmptyFile) {
			return nil, &ValidationError{Fields: []string{"image"}}
		}
		return nil, fmt.Errorf("upload product image: %w", err)
	}

	p := &model.Product{
		ID:       s.newID(),
		OwnerID:  owner.UID,
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Category: strings.TrimSpace(in.Category),
		ImageURL: url,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", p.ID).Str("owner_id", owner.UID).Msg("product created")
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, owner auth.Identity, productID string, in ProductInput) (*model.Product, error) {
	p, err := s.ownedProduct(ctx, owner, productID)
	if err != nil {
		return nil, err
	}
	if fields := in.missingFields(); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price
	p.Category = strings.TrimSpace(in.Category)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, owner auth.Identity, productID string) error {
	if _, err := s.ownedProduct(ctx, owner, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.notify(ctx, productID)
	return nil
}

// AddVariant (color, size) 重複時仍然寫入，回傳 warning
func (s *CatalogService) AddVariant(ctx context.Context, owner auth.Identity, productID string, in VariantInput) (*model.Variant, []Warning, error) {
	if _, err := s.ownedProduct(ctx, owner, productID); err != nil {
		return nil, nil, err
	}

	var fields []string
	if strings.TrimSpace(in.Color) == "" {
		fields = append(fields, "color")
	}
	if strings.TrimSpace(in.Size) == "" {
		fields = append(fields, "size")
	}
	if in.Stock < 0 {
		fields = append(fields, "stock")
	}
	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	existing, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	if dup, ok := model.FindVariant(existing, in.Color, in.Size); ok {
		warnings = append(warnings, Warning{
			Code:    WarningDuplicateVariant,
			Message: fmt.Sprintf("variant (%s, %s) already exists as %s; checkout uses the first match", dup.Color, dup.Size, dup.ID),
		})
	}

	v := &model.Variant{
		ID:        s.newID(),
		ProductID: productID,
		Color:     strings.TrimSpace(in.Color),
		Size:      strings.TrimSpace(in.Size),
	}
	v.SetStock(in.Stock)
	if err := s.repo.CreateVariant(ctx, v); err != nil {
		return nil, nil, err
	}
	if len(warnings) > 0 {
		s.logger.Warn().Str("product_id", productID).Str("color", v.Color).Str("size", v.Size).Msg("duplicate variant added")
	}
	s.notify(ctx, productID)
	return v, warnings, nil
}

// UpdateVariantStock admin 直接修改庫存，不經過結帳交易
func (s *CatalogService) UpdateVariantStock(ctx context.Context, owner auth.Identity, productID, variantID string, stock int) (ledger.StockStatus, error) {
	if _, err := s.ownedProduct(ctx, owner, productID); err != nil {
		return ledger.StockStatus{}, err
	}
	if stock < 0 {
		return ledger.StockStatus{}, &ValidationError{Fields: []string{"stock"}}
	}

	st, err := s.ledger.WriteVariant(ctx, productID, variantID, stock)
	if err != nil {
		return ledger.StockStatus{}, err
	}
	s.metrics.IncStockWrite()
	s.notify(ctx, productID)
	return st, nil
}

func (s *CatalogService) DeleteVariant(ctx context.Context, owner auth.Identity, productID, variantID string) error {
	if _, err := s.ownedProduct(ctx, owner, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteVariant(ctx, productID, variantID); err != nil {
		return err
	}
	s.notify(ctx, productID)
	return nil
}

func (s *CatalogService) ListProducts(ctx context.Context, ownerID string) ([]model.Product, error) {
	return s.repo.ListProductsByOwner(ctx, ownerID)
}

func (s *CatalogService) RecentProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = constants.DefaultRecentProductsLimit
	}
	return s.repo.ListRecentProducts(ctx, limit)
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

func (s *CatalogService) ListVariants(ctx context.Context, productID string) ([]model.Variant, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListVariants(ctx, productID)
}

// Browse 回傳 wholesaler 的所有商品與 variants
// variants 平行讀取，順序與商品列表相同
func (s *CatalogService) Browse(ctx context.Context, wholesalerID string) ([]model.ProductWithVariants, error) {
	products, err := s.repo.ListProductsByOwner(ctx, wholesalerID)
	if err != nil {
		return nil, err
	}

	res := make([]model.ProductWithVariants, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(browseConcurrency)
	for i := range products {
		i := i
		res[i].Product = products[i]
		g.Go(func() error {
			variants, err := s.repo.ListVariants(gctx, products[i].ID)
			if err != nil {
				return fmt.Errorf("list variants of %s: %w", products[i].ID, err)
			}
			res[i].Variants = variants
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *CatalogService) notify(ctx context.Context, productID string) {
	if err := s.broker.Publish(ctx, productID); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("failed to publish variant change")
	}
}

// VariantSubscription variants 的即時快照
// 先送出目前的快照，之後每次變動送出一次完整快照
// 結束後不能重新啟動
type VariantSubscription struct {
	ch        chan []model.Variant
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (vs *VariantSubscription) C() <-chan []model.Variant {
	return vs.ch
}

// Err 訂閱因錯誤結束時回傳原因
func (vs *VariantSubscription) Err() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.err
}

func (vs *VariantSubscription) Close() {
	vs.closeOnce.Do(func() {
		vs.cancel()
	})
	<-vs.done
}

func (vs *VariantSubscription) setErr(err error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	vs.err = err
}

func (s *CatalogService) WatchVariants(ctx context.Context, productID string) (*VariantSubscription, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.broker.Subscribe(ctx, productID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe variants of %s: %w", productID, err)
	}

	vs := &VariantSubscription{
		ch:     make(chan []model.Variant, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(vs.done)
		defer close(vs.ch)
		defer sub.Close()

		send := func() bool {
			variants, err := s.repo.ListVariants(ctx, productID)
			if err != nil {
				if ctx.Err() == nil {
					vs.setErr(err)
					s.logger.Warn().Err(err).Str("product_id", productID).Msg("variant subscription stopped")
				}
				return false
			}
			select {
			case vs.ch <- variants:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				if !send() {
					return
				}
			}
		}
	}()
	return vs, nil
}
