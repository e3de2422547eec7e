package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxUploadSize = 10 << 20

// AdminHandler wholesaler 後台，路由已經過 AuthMiddleware(wholesaler)
type AdminHandler struct {
	catalog *service.CatalogService
	orders  *service.OrderService
	logger  *zerolog.Logger
}

func NewAdminHandler(catalog *service.CatalogService, orders *service.OrderService, logger *zerolog.Logger) *AdminHandler {
	if catalog == nil {
		panic("catalogService cannot be nil")
	}
	if orders == nil {
		panic("orderService cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &AdminHandler{catalog: catalog, orders: orders, logger: logger}
}

func (h *AdminHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity := util.GetIdentityFromContext(r.Context())
	if identity == nil {
		response.ErrorJSON(w, http.StatusUnauthorized, "unauthenticated", nil)
		return auth.Identity{}, false
	}
	return *identity, true
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.identity(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOrders(r.Context(), viewer)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, orders, "")
}

func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.identity(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, order, "")
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(r.Context(), owner.UID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, products, "")
}

/*
CreateProduct multipart/form-data

	name, price, category: 文字欄位
	image: 圖片檔
*/
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	in := service.ProductInput{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
	}
	if raw := r.FormValue("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, h.logger, &service.ValidationError{Fields: []string{"price"}})
			return
		}
		in.Price = price
	}

	file, header, err := r.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		badRequest(w, "invalid image")
		return
	}
	var (
		filename string
		image    io.Reader
	)
	if file != nil {
		defer file.Close()
		filename = header.Filename
		image = file
	}

	product, err := h.catalog.CreateProduct(r.Context(), owner, in, filename, image)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.CreatedJSON(w, product, "product created")
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req dto.UpdateProductDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), owner, chi.URLParam(r, "pid"), req.ToInput())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, product, "product updated")
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(r.Context(), owner, chi.URLParam(r, "pid")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, nil, "product deleted")
}

// AddVariant 重複的 (color, size) 仍會新增，warnings 提示使用者
func (h *AdminHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req dto.AddVariantDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	variant, warnings, err := h.catalog.AddVariant(r.Context(), owner, chi.URLParam(r, "pid"), req.ToInput())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if warnings == nil {
		warnings = []service.Warning{}
	}
	response.CreatedJSON(w, dto.AddVariantResponse{Variant: variant, Warnings: warnings}, "variant created")
}

func (h *AdminHandler) UpdateVariantStock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req dto.UpdateStockDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stock == nil {
		writeError(w, r, h.logger, &service.ValidationError{Fields: []string{"stock"}})
		return
	}

	variantID := chi.URLParam(r, "vid")
	status, err := h.catalog.UpdateVariantStock(r.Context(), owner, chi.URLParam(r, "pid"), variantID, *req.Stock)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, dto.NewStockStatusDTO(variantID, status), "stock updated")
}

func (h *AdminHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteVariant(r.Context(), owner, chi.URLParam(r, "pid"), chi.URLParam(r, "vid")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.SuccessJSON(w, nil, "variant deleted")
}
