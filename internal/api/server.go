package api

import "github.com/RoyceAzure/lab/storefront/internal/api/handler"

type Server struct {
	CatalogHandler  *handler.CatalogHandler
	CartHandler     *handler.CartHandler
	CheckoutHandler *handler.CheckoutHandler
	AdminHandler    *handler.AdminHandler
	HealthHandler   *handler.HealthHandler
}

func NewServer(
	catalogHandler *handler.CatalogHandler,
	cartHandler *handler.CartHandler,
	checkoutHandler *handler.CheckoutHandler,
	adminHandler *handler.AdminHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	return &Server{
		CatalogHandler:  catalogHandler,
		CartHandler:     cartHandler,
		CheckoutHandler: checkoutHandler,
		AdminHandler:    adminHandler,
		HealthHandler:   healthHandler,
	}
}
