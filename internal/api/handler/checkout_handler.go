package handler

import (
	"encoding/json"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type CheckoutHandler struct {
	kv       cart.KV
	checkout *service.CheckoutService
	logger   *zerolog.Logger
}

func NewCheckoutHandler(kv cart.KV, checkout *service.CheckoutService, logger *zerolog.Logger) *CheckoutHandler {
	if kv == nil {
		panic("cart kv cannot be nil")
	}
	if checkout == nil {
		panic("checkoutService cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &CheckoutHandler{kv: kv, checkout: checkout, logger: logger}
}

// Checkout 以目前 session 的購物車向 wholesaler 下單
// 失敗時購物車保留，成功後購物車清空
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity := util.GetIdentityFromContext(r.Context())
	if identity == nil {
		response.ErrorJSON(w, http.StatusUnauthorized, "unauthenticated", nil)
		return
	}

	var req dto.CheckoutDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := cart.Load(r.Context(), h.kv, r.Header.Get(constants.SessionIDHeader))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	order, err := h.checkout.PlaceOrder(r.Context(), service.CheckoutRequest{
		Retailer:     *identity,
		WholesalerID: chi.URLParam(r, "wid"),
		Customer:     req.Customer,
		Cart:         c,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.CreatedJSON(w, order, "order placed")
}
