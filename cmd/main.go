package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/api/router"
	"github.com/RoyceAzure/lab/storefront/internal/appcontext"
	"github.com/RoyceAzure/lab/storefront/internal/config"
)

func main() {
	app, err := appcontext.NewApplicationContext(config.GetConfig())
	if err != nil {
		log.Fatal(err)
		return
	}
	logger := app.Logger

	// 初始化 handler
	server := api.NewServer(
		handler.NewCatalogHandler(app.CatalogService, logger),
		handler.NewCartHandler(app.CartKV, app.CatalogService, app.Calculator, logger),
		handler.NewCheckoutHandler(app.CartKV, app.CheckoutService, logger),
		handler.NewAdminHandler(app.CatalogService, app.OrderService, logger),
		handler.NewHealthHandler(app.HealthChecks()),
	)

	// 設置路由
	r := router.SetupRouter(server, router.Options{
		AuthProvider:    app.AuthProvider,
		CheckoutLimiter: app.CheckoutLimiter,
		Metrics:         app.Metrics,
		Logger:          logger,
	})

	// 關閉時取消所有 request ctx，SSE 連線才會結束
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", app.Cf.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	srv.RegisterOnShutdown(cancelBase)

	// 設置訊號監聽
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutDownCompleted := make(chan struct{}, 1)
	go func() {
		<-sigChan
		logger.Info().Msg("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Printf("application shutdown error: %v", err)
		}

		shutDownCompleted <- struct{}{}
	}()

	logger.Info().Str("addr", srv.Addr).Str("store", app.Cf.StoreDriver).Msg("server starting")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
	<-shutDownCompleted
	log.Printf("closed completed")
}
