package appcontext

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/auth"
	"github.com/RoyceAzure/lab/storefront/internal/cart"
	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/feed"
	"github.com/RoyceAzure/lab/storefront/internal/infra/blob"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memory"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/ledger"
	"github.com/RoyceAzure/lab/storefront/internal/logger"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/pricing"
	"github.com/RoyceAzure/lab/storefront/internal/ratelimit"
	"github.com/RoyceAzure/lab/storefront/internal/seed"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const memoryBlobBaseURL = "memory://images"

type closer struct {
	name string
	fn   func() error
}

type ApplicationContext struct {
	Cf              *config.Config
	Logger          *zerolog.Logger
	Metrics         *metrics.Metrics
	RedisClient     *redis.Client
	DbDao           *db.DbDao
	Store           ledger.Store
	CartKV          cart.KV
	Broker          feed.Broker
	AuthProvider    auth.Provider
	Blobs           blob.Store
	OrderProducer   *producer.OrderProducer
	CheckoutLimiter ratelimit.Limiter
	Calculator      pricing.Calculator
	CatalogService  *service.CatalogService
	CheckoutService *service.CheckoutService
	OrderService    *service.OrderService

	closers []closer
}

func NewApplicationContext(cf *config.Config) (*ApplicationContext, error) {
	if cf == nil {
		return nil, errors.New("config is nil")
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}

	app := ApplicationContext{
		Cf: cf,
	}
	if err := app.Init(); err != nil {
		// 已經建立的連線要釋放
		app.Shutdown(context.Background())
		return nil, err
	}
	return &app, nil
}

func (app *ApplicationContext) Init() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"logger", app.setUpLogger},
		{"metrics", app.setUpMetrics},
		{"redis client", app.setUpRedisClient},
		{"store", app.setUpStore},
		{"seed catalog", app.seedCatalog},
		{"cart kv", app.setUpCartKV},
		{"feed broker", app.setUpBroker},
		{"auth provider", app.setUpAuthProvider},
		{"blob store", app.setUpBlobStore},
		{"order producer", app.setUpOrderProducer},
		{"checkout limiter", app.setUpCheckoutLimiter},
		{"services", app.setUpServices},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("setup %s: %w", step.name, err)
		}
		if app.Logger != nil {
			app.Logger.Debug().Str("step", step.name).Msg("finish setup")
		}
	}
	return nil
}

func (app *ApplicationContext) addCloser(name string, fn func() error) {
	app.closers = append(app.closers, closer{name: name, fn: fn})
}

// needsRedis redis store 或 redis session 才建立連線
func (app *ApplicationContext) needsRedis() bool {
	return app.Cf.StoreDriver == string(constants.StoreDriverRedis) ||
		app.Cf.AuthDriver == string(constants.AuthDriverRedis)
}

func (app *ApplicationContext) setUpLogger() error {
	var extra []io.Writer
	if topic := app.Cf.LogKafkaTopic; topic != "" {
		brokers := app.Cf.KafkaBrokerList()
		if len(brokers) == 0 {
			return errors.New("LOG_KAFKA_TOPIC requires KAFKA_BROKERS")
		}
		kw := logger.NewKafkaWriter(brokers, topic)
		extra = append(extra, kw)
		app.addCloser("kafka log writer", kw.Close)
	}

	app.Logger = logger.New(logger.Options{
		ServiceName: app.Cf.ServiceName,
		Level:       app.Cf.LogLevel,
		Console:     app.Cf.IsDebug(),
		Extra:       extra,
	})
	return nil
}

func (app *ApplicationContext) setUpMetrics() error {
	app.Metrics = metrics.New()
	return nil
}

func (app *ApplicationContext) setUpRedisClient() error {
	if !app.needsRedis() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     app.Cf.RedisAddr,
		Password: app.Cf.RedisPassword,
		DB:       app.Cf.RedisDB,
	})
	app.addCloser("redis client", client.Close)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", app.Cf.RedisAddr, err)
	}
	app.RedisClient = client
	return nil
}

func (app *ApplicationContext) setUpStore() error {
	switch constants.StoreDriver(app.Cf.StoreDriver) {
	case constants.StoreDriverRedis:
		app.Store = redis_repo.NewStore(app.RedisClient, app.Cf.TxnMaxAttempts)
	case constants.StoreDriverPostgres:
		conn, err := db.GetDbConn(app.Cf.PostgresDSN())
		if err != nil {
			return err
		}
		app.DbDao = db.NewDbDao(conn)
		app.addCloser("postgres", app.DbDao.Close)
		if err := app.DbDao.InitMigrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		app.Store = db.NewStore(app.DbDao, app.Cf.TxnMaxAttempts)
	default:
		app.Store = memory.NewStore(memory.WithMaxAttempts(app.Cf.TxnMaxAttempts))
	}
	app.Logger.Info().Str("driver", app.Cf.StoreDriver).Msg("store ready")
	return nil
}

// seedCatalog SEED_FILE 有設定時寫入初始商品
func (app *ApplicationContext) seedCatalog() error {
	if app.Cf.SeedFile == "" {
		return nil
	}
	c, err := seed.Load(app.Cf.SeedFile)
	if err != nil {
		return err
	}
	n, err := seed.Apply(context.Background(), app.Store, c)
	if err != nil {
		return err
	}
	app.Logger.Info().Str("file", app.Cf.SeedFile).Int("created", n).Msg("catalog seeded")
	return nil
}

func (app *ApplicationContext) setUpCartKV() error {
	if app.RedisClient != nil {
		app.CartKV = redis_repo.NewCartKVRepo(app.RedisClient, app.Cf.CartTTL)
		return nil
	}
	app.CartKV = cart.NewMemoryKV()
	return nil
}

func (app *ApplicationContext) setUpBroker() error {
	if app.RedisClient != nil {
		app.Broker = redis_repo.NewVariantFeed(app.RedisClient)
		return nil
	}
	b := feed.NewMemoryBroker()
	app.addCloser("feed broker", b.Close)
	app.Broker = b
	return nil
}

func (app *ApplicationContext) setUpAuthProvider() error {
	if app.Cf.AuthDriver == string(constants.AuthDriverRedis) {
		app.AuthProvider = redis_repo.NewSessionRepo(app.RedisClient)
		return nil
	}

	tokens, err := app.Cf.StaticTokenList()
	if err != nil {
		return err
	}
	identities := make(map[string]auth.Identity, len(tokens))
	for _, t := range tokens {
		role, err := auth.ParseRole(t.Role)
		if err != nil {
			return fmt.Errorf("static token for %s: %w", t.UID, err)
		}
		identities[t.Token] = auth.Identity{UID: t.UID, Role: role}
	}
	if len(identities) == 0 {
		app.Logger.Warn().Msg("no AUTH_STATIC_TOKENS configured, every protected route will return 401")
	}
	app.AuthProvider = auth.NewStaticProvider(identities)
	return nil
}

func (app *ApplicationContext) setUpBlobStore() error {
	if app.Cf.CloudinaryCloud == "" {
		app.Logger.Warn().Msg("CLOUDINARY_CLOUD not set, product images are kept in memory")
		app.Blobs = blob.NewMemoryStore(memoryBlobBaseURL)
		return nil
	}
	app.Blobs = blob.NewCloudinaryStore(app.Cf.CloudinaryCloud, app.Cf.CloudinaryPreset)
	return nil
}

func (app *ApplicationContext) setUpOrderProducer() error {
	brokers := app.Cf.KafkaBrokerList()
	if len(brokers) == 0 {
		return nil
	}
	w, err := producer.NewKafkaWriter(producer.Config{
		Brokers: brokers,
		Topic:   app.Cf.KafkaOrderTopic,
	}, app.Logger)
	if err != nil {
		return err
	}
	app.OrderProducer = producer.NewOrderProducer(w, 0)
	app.addCloser("order producer", app.OrderProducer.Close)
	return nil
}

func (app *ApplicationContext) setUpCheckoutLimiter() error {
	cfg := ratelimit.Config{
		Capacity:      app.Cf.CheckoutRateCapacity,
		RatePerSecond: app.Cf.CheckoutRatePerSecond,
	}
	if cfg.Capacity <= 0 {
		// 關閉限流
		return nil
	}
	if app.RedisClient != nil {
		l, err := ratelimit.NewRedisTokenBucket(app.RedisClient, "checkout", cfg)
		if err != nil {
			return err
		}
		app.CheckoutLimiter = l
		return nil
	}
	l, err := ratelimit.NewTokenBucket(cfg)
	if err != nil {
		return err
	}
	app.CheckoutLimiter = l
	return nil
}

func (app *ApplicationContext) setUpServices() error {
	taxRate, err := decimal.NewFromString(app.Cf.TaxRate)
	if err != nil {
		return err
	}
	shipping, err := decimal.NewFromString(app.Cf.ShippingFee)
	if err != nil {
		return err
	}
	app.Calculator = pricing.NewCalculator(taxRate, shipping, app.Cf.CurrencySymbol)

	opts := []service.CheckoutOption{
		service.WithFeedBroker(app.Broker),
		service.WithMetrics(app.Metrics),
	}
	if app.OrderProducer != nil {
		opts = append(opts, service.WithOrderPublisher(app.OrderProducer))
	}

	app.CatalogService = service.NewCatalogService(app.Store, app.Store, app.Blobs, app.Broker, app.Metrics, app.Logger)
	app.CheckoutService = service.NewCheckoutService(app.Store, app.Calculator, app.Logger, opts...)
	app.OrderService = service.NewOrderService(app.Store)
	return nil
}

// HealthChecks /health 使用
func (app *ApplicationContext) HealthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{}
	if app.RedisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.RedisClient.Ping(ctx).Err()
		}
	}
	if app.DbDao != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := app.DbDao.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return checks
}

// Shutdown 依建立的反向順序關閉
func (app *ApplicationContext) Shutdown(ctx context.Context) error {
	// store 的連線由 closers 負責關閉
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		c := app.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
