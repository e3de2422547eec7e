package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/pricing"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CartHandler 以 X-Session-ID 區分購物車
type CartHandler struct {
	kv      cart.KV
	catalog *service.CatalogService
	calc    pricing.Calculator
	logger  *zerolog.Logger
}

func NewCartHandler(kv cart.KV, catalog *service.CatalogService, calc pricing.Calculator, logger *zerolog.Logger) *CartHandler {
	if kv == nil {
		panic("cart kv cannot be nil")
	}
	if catalog == nil {
		panic("catalogService cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &CartHandler{kv: kv, catalog: catalog, calc: calc, logger: logger}
}

func (h *CartHandler) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	c, err := cart.Load(r.Context(), h.kv, r.Header.Get(constants.SessionIDHeader))
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return c, true
}

func (h *CartHandler) toDTO(c *cart.Cart) dto.CartDTO {
	summary := c.Summary(h.calc)
	items := c.Items()
	if items == nil {
		items = []model.CartLineItem{}
	}
	return dto.CartDTO{
		SessionID:    c.SessionID(),
		Items:        items,
		Count:        c.Count(),
		Summary:      summary,
		TotalDisplay: summary.Display(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	response.SuccessJSON(w, h.toDTO(c), "")
}

// AddItem 價格與圖片以目前的商品資料為準
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req dto.AddCartItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	variants, err := h.catalog.ListVariants(ctx, req.ProductID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	idx := -1
	for i := range variants {
		if variants[i].ID == req.VariantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeError(w, r, h.logger, fmt.Errorf("%w: %s", ledger.ErrVariantNotFound, req.VariantID))
		return
	}

	if _, err := c.Add(ctx, *product, variants[idx], req.Quantity); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, h.toDTO(c), "")
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateCartItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	key, err := lineKeyParam(r)
	if err != nil {
		badRequest(w, "invalid line key")
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	if err := c.UpdateQuantity(r.Context(), key, req.Delta); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, h.toDTO(c), "")
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, err := lineKeyParam(r)
	if err != nil {
		badRequest(w, "invalid line key")
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	if err := c.Remove(r.Context(), key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, h.toDTO(c), "")
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, h.toDTO(c), "")
}

// line key 含有 "|"，client 端會 escape
// chi 只有在 RawPath 存在時才用未解碼的 path 比對路由
func lineKeyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath == "" {
		return key, nil
	}
	return url.PathUnescape(key)
}
