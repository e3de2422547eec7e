package router

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	m "github.com/RoyceAzure/lab/storefront/internal/api/middleware"
	"github.com/RoyceAzure/lab/storefront/internal/api/response"
	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/ratelimit"
	"github.com/RoyceAzure/lab/storefront/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Options struct {
	AuthProvider    auth.Provider
	CheckoutLimiter ratelimit.Limiter
	Metrics         *metrics.Metrics
	Logger          *zerolog.Logger
}

// 依 retailer 限流，沒有 identity 交給 AuthMiddleware 處理
func retailerKey(r *http.Request) string {
	if identity := util.GetIdentityFromContext(r.Context()); identity != nil {
		return identity.UID
	}
	return ""
}

func tooManyRequests(w http.ResponseWriter, r *http.Request) {
	response.ErrorJSON(w, http.StatusTooManyRequests, "Too many checkout attempts. Please wait a moment and try again.", nil)
}

func SetupRouter(server *api.Server, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// 全局中間件
	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.AuthPayloadMiddleware(opts.AuthProvider, opts.Logger))
	r.Use(m.LoggerMiddleware(opts.Logger, opts.Metrics))

	r.Get("/health", server.HealthHandler.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	retailerOnly := m.AuthMiddleware(auth.RoleRetailer)
	wholesalerOnly := m.AuthMiddleware(auth.RoleWholesaler)

	r.Route("/api/v1", func(r chi.Router) {
		// 商品瀏覽
		r.Get("/wholesalers/{wid}/products", server.CatalogHandler.Browse)
		r.Get("/products/recent", server.CatalogHandler.Recent)
		r.Route("/products/{pid}", func(r chi.Router) {
			r.Get("/", server.CatalogHandler.GetProduct)
			r.Get("/variants", server.CatalogHandler.ListVariants)
			r.Get("/variants/stream", server.CatalogHandler.StreamVariants)
		})

		// 購物車
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", server.CartHandler.GetCart)
			r.Delete("/", server.CartHandler.ClearCart)
			r.Post("/items", server.CartHandler.AddItem)
			r.Patch("/items/{key}", server.CartHandler.UpdateItem)
			r.Delete("/items/{key}", server.CartHandler.RemoveItem)
		})

		// 結帳
		r.Group(func(r chi.Router) {
			r.Use(retailerOnly)
			if opts.CheckoutLimiter != nil {
				r.Use(ratelimit.NewMiddleware(opts.CheckoutLimiter, retailerKey, tooManyRequests, opts.Logger))
			}
			r.Post("/wholesalers/{wid}/checkout", server.CheckoutHandler.Checkout)
		})

		// wholesaler 後台
		r.Route("/admin", func(r chi.Router) {
			r.Use(wholesalerOnly)
			r.Get("/orders", server.AdminHandler.ListOrders)
			r.Get("/orders/{id}", server.AdminHandler.GetOrder)
			r.Get("/products", server.AdminHandler.ListProducts)
			r.Post("/products", server.AdminHandler.CreateProduct)
			r.Put("/products/{pid}", server.AdminHandler.UpdateProduct)
			r.Delete("/products/{pid}", server.AdminHandler.DeleteProduct)
			r.Post("/products/{pid}/variants", server.AdminHandler.AddVariant)
			r.Patch("/products/{pid}/variants/{vid}", server.AdminHandler.UpdateVariantStock)
			r.Delete("/products/{pid}/variants/{vid}", server.AdminHandler.DeleteVariant)
		})
	})
	return r
}
