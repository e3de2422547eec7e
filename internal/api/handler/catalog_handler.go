package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CatalogHandler retailer 瀏覽商品，不需要登入
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *zerolog.Logger
}

func NewCatalogHandler(catalog *service.CatalogService, logger *zerolog.Logger) *CatalogHandler {
	if catalog == nil {
		panic("catalogService cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Browse 某個 wholesaler 的商品與 variants
func (h *CatalogHandler) Browse(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Browse(r.Context(), chi.URLParam(r, "wid"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, products, "")
}

// Recent ?limit=n，預設 4
func (h *CatalogHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultRecentProductsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	products, err := h.catalog.RecentProducts(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, products, "")
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, product, "")
}

func (h *CatalogHandler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.catalog.ListVariants(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, variants, "")
}

/*
StreamVariants server-sent events

	event: variants
	data: [{...}, ...]

連線建立時送出一次目前快照，之後每次庫存異動送出完整快照
訂閱因錯誤結束時送出 event: error 後關閉
*/
func (h *CatalogHandler) StreamVariants(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.ErrorJSON(w, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	productID := chi.URLParam(r, "pid")
	sub, err := h.catalog.WatchVariants(r.Context(), productID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for variants := range sub.C() {
		b, err := json.Marshal(variants)
		if err != nil {
			h.logger.Error().Err(err).Str("product_id", productID).Msg("failed to encode variants")
			return
		}
		if _, err := fmt.Fprintf(w, "event: variants\ndata: %s\n\n", b); err != nil {
			return
		}
		flusher.Flush()
	}

	if err := sub.Err(); err != nil {
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", "variant stream stopped")
		flusher.Flush()
	}
}
