package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/zaver-checkout/internal/auth"
	"github.com/utafrali/zaver-checkout/internal/config"
	"github.com/utafrali/zaver-checkout/internal/domain"
	"github.com/utafrali/zaver-checkout/internal/event"
	handler "github.com/utafrali/zaver-checkout/internal/handler/http"
	"github.com/utafrali/zaver-checkout/internal/repository/postgres"
	"github.com/utafrali/zaver-checkout/internal/service"
	"github.com/utafrali/zaver-checkout/internal/zaver"
	zavermock "github.com/utafrali/zaver-checkout/internal/zaver/mock"
	"github.com/utafrali/zaver-checkout/migrations"
	"github.com/utafrali/zaver-checkout/pkg/database"
	"github.com/utafrali/zaver-checkout/pkg/health"
	"github.com/utafrali/zaver-checkout/pkg/httpclient"
	pkgkafka "github.com/utafrali/zaver-checkout/pkg/kafka"
	"github.com/utafrali/zaver-checkout/pkg/middleware"
	"github.com/utafrali/zaver-checkout/pkg/tracing"
)

// idempotencyPrefix namespaces consumed event ids in Redis.
const idempotencyPrefix = "zaver-checkout:events"

// App wires together all dependencies and runs the Zaver checkout service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	consumer       *pkgkafka.Consumer
	limiter        *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracingCfg := cfg.Tracing
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Idempotency store for consumed events. Redis is optional.
	var (
		redisClient *redis.Client
		store       pkgkafka.IdempotencyStore
	)
	if cfg.RedisAddr != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisConfig())
		if err != nil {
			logger.Warn("redis unavailable, using in-memory idempotency store",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		}
	}
	if redisClient != nil {
		store = pkgkafka.NewRedisIdempotencyStore(redisClient, idempotencyPrefix, cfg.IdempotencyTTL)
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	} else {
		store = pkgkafka.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	}

	// Zaver provider.
	provider := newProvider(cfg, logger)

	// Kafka producer. A nil event producer disables publishing.
	var (
		producer      *pkgkafka.Producer
		eventProducer *event.Producer
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	repo := postgres.NewOrderRepository(pool)
	urls := service.NewURLs(cfg.StorefrontBaseURL())
	if !urls.Secure() {
		logger.Warn("storefront URL is not https, provider callbacks are disabled",
			slog.String("storefront_url", urls.Home()),
		)
	}
	hooks := &service.Hooks{}
	hooks.OnPaymentEvent(func(ctx context.Context, o *domain.Order, ev *zaver.PaymentStatusResponse, allowRedirect bool) {
		logger.DebugContext(ctx, "zaver payment event",
			slog.String("order_id", o.ID),
			slog.String("payment_id", ev.PaymentID),
			slog.String("status", ev.PaymentStatus),
			slog.Bool("redirect", allowRedirect),
		)
	})
	hooks.OnRefundEvent(func(ctx context.Context, o *domain.Order, ev *zaver.RefundResponse) {
		logger.DebugContext(ctx, "zaver refund event",
			slog.String("order_id", o.ID),
			slog.String("zaver_refund_id", ev.RefundID),
			slog.String("status", ev.Status),
		)
	})

	orderService := service.NewOrderService(repo, logger)
	paymentService := service.NewPaymentService(repo, provider, urls, cfg.PaymentMethod, hooks, eventProducer, logger)
	refundService := service.NewRefundService(repo, provider, urls, hooks, eventProducer, logger)

	var consumer *pkgkafka.Consumer
	if cfg.KafkaEnabled {
		consumer = event.NewOrderCanceledConsumer(cfg.KafkaBrokers,
			event.NewConsumerHandler(paymentService, logger), store, producer.DLQ(), logger)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
	limiter := middleware.NewRateLimiter(cfg.RedirectRateLimitRPS, cfg.RedirectRateLimitBurst, cfg.RedirectRateLimitTTL, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Orders:          orderService,
		Payments:        paymentService,
		Refunds:         refundService,
		Provider:        provider,
		Health:          healthHandler,
		Validate:        jwtManager.Validate,
		RedirectLimiter: limiter,
		Logger:          logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		consumer:       consumer,
		limiter:        limiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newProvider returns the live Zaver client, or the in-memory provider when
// no API key is configured.
func newProvider(cfg *config.Config, logger *slog.Logger) zaver.Provider {
	if cfg.UseMockProvider() {
		logger.Warn("ZAVER_API_KEY not set, using in-memory Zaver provider")
		return zavermock.NewProvider(cfg.Zaver.CallbackToken)
	}

	cbCfg := cfg.CircuitBreaker
	if cbCfg.Name == "" {
		cbCfg.Name = "zaver-api"
	}
	cbClient := httpclient.NewCircuitBreakerClient(httpclient.New(cfg.HTTPClient), cbCfg, logger)
	logger.Info("zaver client initialized",
		slog.String("base_url", cfg.Zaver.URL()),
		slog.Bool("test_mode", cfg.Zaver.TestMode),
		slog.String("breaker", cbCfg.Name),
	)
	return zaver.NewClient(cfg.Zaver, cbClient, logger)
}

// Run starts the HTTP server and the event consumer and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.limiter.Cleanup(ctx)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				a.logger.Error("order.canceled consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests and callbacks)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
