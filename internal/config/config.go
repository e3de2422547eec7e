package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	viper "github.com/spf13/viper"
)

/*
init : 設置 viper watch 與 onConfigChange
read : 一般讀取，需要讀寫鎖
*/
var configSingleton *ConfigSingleton
var muonce sync.Once

const configPathEnv = "STOREFRONT_CONFIG"

type ConfigSingleton struct {
	Config *Config
	mu     sync.RWMutex
}

type Config struct {
	ServiceName           string        `mapstructure:"SERVICE_NAME"`
	ServerPort            string        `mapstructure:"SERVER_PORT"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	Env                   string        `mapstructure:"ENV"`
	StoreDriver           string        `mapstructure:"STORE_DRIVER"`
	DbName                string        `mapstructure:"POSTGRES_DB"`
	DbHost                string        `mapstructure:"POSTGRES_HOST"`
	DbPort                string        `mapstructure:"POSTGRES_PORT"`
	DbUser                string        `mapstructure:"POSTGRES_USER"`
	DbPas                 string        `mapstructure:"POSTGRES_PASSWORD"`
	RedisAddr             string        `mapstructure:"REDIS_ADDR"`
	RedisPassword         string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB               int           `mapstructure:"REDIS_DB"`
	KafkaBrokers          string        `mapstructure:"KAFKA_BROKERS"`
	KafkaOrderTopic       string        `mapstructure:"KAFKA_ORDER_TOPIC"`
	LogKafkaTopic         string        `mapstructure:"LOG_KAFKA_TOPIC"`
	CloudinaryCloud       string        `mapstructure:"CLOUDINARY_CLOUD"`
	CloudinaryPreset      string        `mapstructure:"CLOUDINARY_PRESET"`
	AuthDriver            string        `mapstructure:"AUTH_DRIVER"`
	AuthStaticTokens      string        `mapstructure:"AUTH_STATIC_TOKENS"`
	TaxRate               string        `mapstructure:"TAX_RATE"`
	ShippingFee           string        `mapstructure:"SHIPPING_FEE"`
	CurrencySymbol        string        `mapstructure:"CURRENCY_SYMBOL"`
	TxnMaxAttempts        int           `mapstructure:"TXN_MAX_ATTEMPTS"`
	CartTTL               time.Duration `mapstructure:"CART_TTL"`
	CheckoutRateCapacity  int           `mapstructure:"CHECKOUT_RATE_CAPACITY"`
	CheckoutRatePerSecond float64       `mapstructure:"CHECKOUT_RATE_PER_SECOND"`
	SeedFile              string        `mapstructure:"SEED_FILE"`
}

func GetConfig() *Config {
	initConfig()
	configSingleton.mu.RLock()
	defer configSingleton.mu.RUnlock()
	return configSingleton.Config
}

func initConfig() {
	if configSingleton == nil {
		muonce.Do(func() {
			configSingleton = &ConfigSingleton{}
			cf, err := LoadConfig(configPath())
			if err != nil {
				log.Fatalf("error read config: %v", err)
			}
			configSingleton.Config = cf

			if viper.ConfigFileUsed() == "" {
				return
			}
			viper.WatchConfig()
			viper.OnConfigChange(func(e fsnotify.Event) {
				cf, err := LoadConfig(e.Name)
				if err != nil {
					log.Printf("failed to reload config file: %v", err)
					return
				}
				configSingleton.mu.Lock()
				configSingleton.Config = cf
				configSingleton.mu.Unlock()
			})
		})
	}
}

func configPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	return "./.env"
}

func setDefaults() {
	viper.SetDefault("SERVICE_NAME", "storefront")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENV", string(constants.Dev))
	viper.SetDefault("STORE_DRIVER", string(constants.StoreDriverMemory))
	viper.SetDefault("POSTGRES_DB", "storefront")
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_ORDER_TOPIC", "storefront.orders")
	viper.SetDefault("LOG_KAFKA_TOPIC", "")
	viper.SetDefault("CLOUDINARY_CLOUD", "")
	viper.SetDefault("CLOUDINARY_PRESET", "unsigned_ecommerce")
	viper.SetDefault("AUTH_DRIVER", "static")
	viper.SetDefault("AUTH_STATIC_TOKENS", "")
	viper.SetDefault("TAX_RATE", "0.085")
	viper.SetDefault("SHIPPING_FEE", "2000")
	viper.SetDefault("CURRENCY_SYMBOL", "₦")
	viper.SetDefault("TXN_MAX_ATTEMPTS", 5)
	viper.SetDefault("CART_TTL", "168h")
	viper.SetDefault("CHECKOUT_RATE_CAPACITY", 5)
	viper.SetDefault("CHECKOUT_RATE_PER_SECOND", 1.0)
	viper.SetDefault("SEED_FILE", "")
}

/*
單純回傳錯誤，由外部決定要不要 Fatal
設定檔不存在時只使用預設值與環境變數
*/
func LoadConfig(path string) (*Config, error) {
	setDefaults()
	viper.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			viper.SetConfigFile(path)
			viper.SetConfigType("env")
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	cf := &Config{}
	if err := viper.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	return cf, nil
}

func (c *Config) Validate() error {
	if !constants.IsValidStoreDriver(c.StoreDriver) {
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}
	if !constants.IsValidAuthDriver(c.AuthDriver) {
		return fmt.Errorf("invalid AUTH_DRIVER %q", c.AuthDriver)
	}
	if _, err := decimal.NewFromString(c.TaxRate); err != nil {
		return fmt.Errorf("invalid TAX_RATE %q: %w", c.TaxRate, err)
	}
	if _, err := decimal.NewFromString(c.ShippingFee); err != nil {
		return fmt.Errorf("invalid SHIPPING_FEE %q: %w", c.ShippingFee, err)
	}
	if c.TxnMaxAttempts <= 0 {
		return fmt.Errorf("TXN_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) IsDebug() bool {
	return c.Env == string(constants.Debug) || c.Env == string(constants.Dev)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DbHost, c.DbPort, c.DbUser, c.DbPas, c.DbName)
}

func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// StaticToken AUTH_STATIC_TOKENS 格式 token:uid:role，以逗號分隔
type StaticToken struct {
	Token string
	UID   string
	Role  string
}

func (c *Config) StaticTokenList() ([]StaticToken, error) {
	var res []StaticToken
	for _, entry := range splitList(c.AuthStaticTokens) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid AUTH_STATIC_TOKENS entry %q", entry)
		}
		res = append(res, StaticToken{Token: parts[0], UID: parts[1], Role: parts[2]})
	}
	return res, nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			res = append(res, p)
		}
	}
	return res
}
