package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/zaver-checkout/internal/zaver"
	pkgconfig "github.com/utafrali/zaver-checkout/pkg/config"
	"github.com/utafrali/zaver-checkout/pkg/database"
	"github.com/utafrali/zaver-checkout/pkg/httpclient"
	"github.com/utafrali/zaver-checkout/pkg/tracing"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Config holds all configuration for the Zaver checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"ZAVER_CHECKOUT_HTTP_PORT" envDefault:"8012"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storefront the orders belong to. Redirect, callback and merchant
	// metadata URLs are derived from it.
	StorefrontURL string `env:"STOREFRONT_URL" envDefault:"http://localhost:3000"`
	// PaymentMethod is the prefix an order's payment method must carry for
	// the order-received redirect to reconcile it.
	PaymentMethod string `env:"ZAVER_PAYMENT_METHOD" envDefault:"zaver_checkout"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"ecommerce"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"ecommerce_secret"`
	PostgresDB       string `env:"ZAVER_CHECKOUT_DB_NAME" envDefault:"zaver_checkout_db"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`

	// Redis backs the Kafka consumer idempotency store. Empty disables it
	// in favour of an in-memory store.
	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass      string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`

	// Zaver API. An empty API key runs the in-memory mock provider.
	Zaver          zaver.Config
	HTTPClient     httpclient.Config               `envPrefix:"ZAVER_HTTP_"`
	CircuitBreaker httpclient.CircuitBreakerConfig `envPrefix:"ZAVER_BREAKER_"`

	// Staff JWT authentication
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"user-service"`

	// Rate limiting of the order-received redirect, per client IP
	RedirectRateLimitRPS   float64       `env:"REDIRECT_RATE_LIMIT_RPS" envDefault:"2"`
	RedirectRateLimitBurst int           `env:"REDIRECT_RATE_LIMIT_BURST" envDefault:"10"`
	RedirectRateLimitTTL   time.Duration `env:"REDIRECT_RATE_LIMIT_TTL" envDefault:"10m"`

	Tracing tracing.Config

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables, after loading any of
// envFiles that exist.
func Load(envFiles ...string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadDotenv(cfg, envFiles...); err != nil {
		return nil, fmt.Errorf("load zaver-checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	u, err := url.ParseRequestURI(c.StorefrontURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid STOREFRONT_URL %q", c.StorefrontURL)
	}
	if c.PaymentMethod == "" {
		return fmt.Errorf("ZAVER_PAYMENT_METHOD is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.Tracing.SampleRate)
	}
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
		}
		if c.Zaver.APIKey == "" {
			return fmt.Errorf("ZAVER_API_KEY is required in %s environment", c.Environment)
		}
	}
	return nil
}

// PostgresConfig returns the pool configuration for the order store.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
		MaxConns: c.PostgresMaxConns,
	}
}

// RedisConfig returns the Redis client configuration.
func (c *Config) RedisConfig() database.RedisConfig {
	return database.RedisConfig{
		Addr:        c.RedisAddr,
		Password:    c.RedisPass,
		DB:          c.RedisDB,
		DialTimeout: 5 * time.Second,
	}
}

// StorefrontBaseURL returns the storefront URL without a trailing slash.
func (c *Config) StorefrontBaseURL() string {
	return strings.TrimRight(c.StorefrontURL, "/")
}

// UseMockProvider reports whether the in-memory Zaver provider should be
// used instead of the live API.
func (c *Config) UseMockProvider() bool {
	return c.Zaver.APIKey == ""
}
