package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/auth"
	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/order"
	"github.com/xenking/storefront-promotions/internal/domain/promotion"
	"github.com/xenking/storefront-promotions/internal/handler"
	"github.com/xenking/storefront-promotions/internal/storage/postgres"
	"github.com/xenking/storefront-promotions/internal/storage/redis"
	"github.com/xenking/storefront-promotions/pkg/health"
	"github.com/xenking/storefront-promotions/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis holds carts and, optionally, rate limiter state.
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	defer func() { _ = rdb.Close() }()

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	promotionRepo := postgres.NewPromotionRepository(pool)

	var couponRepo coupon.Repository = postgres.NewCouponRepository(pool)
	if cfg.CodeFilter.Enabled {
		filtered := coupon.NewFilteredRepository(couponRepo, cfg.CodeFilter.FPR)
		if err := filtered.Refresh(ctx); err != nil {
			return errors.Wrap(err, "build coupon filter")
		}
		go filtered.Run(ctx, cfg.CodeFilter.Refresh)
		couponRepo = filtered
	}

	// Domain services.
	grouping, err := discount.ParseGroupingPolicy(cfg.Pricing.Grouping)
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	engine := discount.New(
		discount.WithGrouping(grouping),
		discount.WithPrecision(cfg.Pricing.Precision),
	)

	ttl := cfg.Redis.CartTTL
	if ttl <= 0 {
		ttl = redis.DefaultCartTTL
	}
	cartService, err := cart.NewService(
		redis.NewCartStore(rdb, ttl),
		promotion.NewService(promotionRepo),
		coupon.NewRepoValidator(couponRepo),
		productRepo,
		engine,
		m.TracerProvider(),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create cart service")
	}
	orderService := order.NewService(productRepo, cartService, orderRepo)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.RedisCheck(rdb))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.AddLivenessCheck("engine", time.Second, health.EngineCheck(engine), health.WithThresholds(3, 1))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// API routes: authenticate first so the limiter can key by API key.
	var limiter httpmiddleware.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		limiter = httpmiddleware.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
	default:
		mem := httpmiddleware.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		mem.StartCleanup(ctx)
		limiter = mem
	}

	h := handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, productRepo, cartService, orderService)
	api := httpmiddleware.Wrap(h.Routes(),
		httpmiddleware.APIKey(auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))),
		httpmiddleware.RateLimitWith(limiter, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	root := httpmiddleware.Wrap(mux,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.LogRequests(),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(root, "promo-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
