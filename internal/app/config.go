package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PROMO_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (PROMO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (PROMO_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	Pricing      PricingConfig
	CodeFilter   CodeFilterConfig
	Graceful     GracefulConfig
}

// RedisConfig locates the cart session store.
type RedisConfig struct {
	Addr     string        `default:"localhost:6379" usage:"Redis address (or REDIS_URL)"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	CartTTL  time.Duration `default:"168h" usage:"Idle lifetime of a stored cart" flag:"cart-ttl"`
}

// RateLimitConfig controls the sliding window rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"100" usage:"Max requests per window"`
	Window  time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Backend string        `default:"memory" usage:"Limiter state backend: memory or redis"`
}

// PricingConfig tunes the discount engine.
type PricingConfig struct {
	Grouping  string `default:"cart_order" usage:"Unit grouping for bundle discounts: cart_order, price_desc or price_asc"`
	Precision int32  `default:"2" usage:"Decimal places computed amounts are rounded to"`
}

// CodeFilterConfig controls the negative lookup filter in front of the
// coupon repository. Refresh bounds how long a newly ingested code can be
// reported as invalid.
type CodeFilterConfig struct {
	Enabled bool          `default:"true" usage:"Reject unknown coupon codes without a database lookup" flag:"code-filter"`
	Refresh time.Duration `default:"1m" usage:"Filter rebuild interval; codes created since the last rebuild are rejected until the next one" flag:"code-filter-refresh"`
	FPR     float64       `default:"0.001" usage:"Filter false positive rate" flag:"code-filter-fpr"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PROMO",
		Files:     []string{"config.yaml", "/etc/promo/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL, REDIS_URL and PORT
// to the application's PROMO_-prefixed configuration.
func (c *Config) applyPlatformDefaults() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("PROMO_REDIS_ADDR") == "" {
		opts, err := redis.ParseURL(v)
		if err != nil {
			return errors.Wrap(err, "parse REDIS_URL")
		}
		c.Redis.Addr = opts.Addr
		c.Redis.Password = opts.Password
		c.Redis.DB = opts.DB
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PROMO_DATABASE_URL or DATABASE_URL")
	}
	if _, err := discount.ParseGroupingPolicy(c.Pricing.Grouping); err != nil {
		return errors.Wrap(err, "pricing")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return errors.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.CodeFilter.Enabled && c.CodeFilter.Refresh <= 0 {
		return errors.New("code filter refresh interval must be positive")
	}
	return nil
}
