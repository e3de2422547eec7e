package appcontext

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/feed"
	"github.com/RoyceAzure/lab/storefront/internal/infra/blob"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memory"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/ratelimit"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		ServiceName:           "storefront-test",
		LogLevel:              "error",
		Env:                   "production",
		StoreDriver:           "memory",
		AuthDriver:            "static",
		AuthStaticTokens:      "t1:r-1:retailer,t2:w-1:wholesaler",
		CloudinaryPreset:      "preset",
		TaxRate:               "0.085",
		ShippingFee:           "2000",
		CurrencySymbol:        "₦",
		TxnMaxAttempts:        5,
		CartTTL:               time.Hour,
		CheckoutRateCapacity:  5,
		CheckoutRatePerSecond: 1,
	}
}

func TestMemoryApplicationContext(t *testing.T) {
	app, err := NewApplicationContext(baseConfig())
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	require.IsType(t, &memory.Store{}, app.Store)
	require.IsType(t, &cart.MemoryKV{}, app.CartKV)
	require.IsType(t, &feed.MemoryBroker{}, app.Broker)
	require.IsType(t, &blob.MemoryStore{}, app.Blobs)
	require.IsType(t, &ratelimit.TokenBucket{}, app.CheckoutLimiter)
	require.Nil(t, app.RedisClient)
	require.Nil(t, app.OrderProducer)
	require.NotNil(t, app.CatalogService)
	require.NotNil(t, app.CheckoutService)
	require.NotNil(t, app.OrderService)
	require.Empty(t, app.HealthChecks())

	identity, err := app.AuthProvider.Resolve(context.Background(), "t2")
	require.NoError(t, err)
	require.Equal(t, auth.Identity{UID: "w-1", Role: auth.RoleWholesaler}, *identity)
}

func TestRedisApplicationContext(t *testing.T) {
	mr := miniredis.RunT(t)
	cf := baseConfig()
	cf.StoreDriver = "redis"
	cf.AuthDriver = "redis"
	cf.RedisAddr = mr.Addr()
	cf.CloudinaryCloud = "demo"

	app, err := NewApplicationContext(cf)
	require.NoError(t, err)

	require.IsType(t, &redis_repo.Store{}, app.Store)
	require.IsType(t, &redis_repo.CartKVRepo{}, app.CartKV)
	require.IsType(t, &redis_repo.VariantFeed{}, app.Broker)
	require.IsType(t, &redis_repo.SessionRepo{}, app.AuthProvider)
	require.IsType(t, &ratelimit.RedisTokenBucket{}, app.CheckoutLimiter)
	require.IsType(t, &blob.CloudinaryStore{}, app.Blobs)

	checks := app.HealthChecks()
	require.Contains(t, checks, "redis")
	require.NoError(t, checks["redis"](context.Background()))

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestApplicationContextErrors(t *testing.T) {
	cf := baseConfig()
	cf.AuthStaticTokens = "t1:r-1:admin"
	_, err := NewApplicationContext(cf)
	require.ErrorIs(t, err, auth.ErrInvalidRole)

	cf = baseConfig()
	cf.LogKafkaTopic = "logs"
	_, err = NewApplicationContext(cf)
	require.Error(t, err)

	cf = baseConfig()
	cf.StoreDriver = "redis"
	cf.RedisAddr = "127.0.0.1:1"
	_, err = NewApplicationContext(cf)
	require.Error(t, err)

	cf = baseConfig()
	cf.StoreDriver = "mongo"
	_, err = NewApplicationContext(cf)
	require.Error(t, err)
}

func TestSeedCatalogOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := "products:\n  - id: p-1\n    owner_id: w-1\n    name: Shirt\n    price: \"10\"\n    variants:\n      - {color: red, size: M, stock: 3}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cf := baseConfig()
	cf.SeedFile = path
	app, err := NewApplicationContext(cf)
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	products, err := app.CatalogService.Browse(context.Background(), "w-1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Len(t, products[0].Variants, 1)
	require.Equal(t, 3, products[0].Variants[0].Stock)
}
