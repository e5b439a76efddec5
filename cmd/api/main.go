package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"

	"github.com/nearexpiry/backend-nearexpiry/internal/auth"
	"github.com/nearexpiry/backend-nearexpiry/internal/buyer"
	"github.com/nearexpiry/backend-nearexpiry/internal/catalog"
	"github.com/nearexpiry/backend-nearexpiry/internal/common"
	"github.com/nearexpiry/backend-nearexpiry/internal/config"
	"github.com/nearexpiry/backend-nearexpiry/internal/events"
	"github.com/nearexpiry/backend-nearexpiry/internal/health"
	"github.com/nearexpiry/backend-nearexpiry/internal/obs"
	"github.com/nearexpiry/backend-nearexpiry/internal/order"
	"github.com/nearexpiry/backend-nearexpiry/internal/ratelimit"
	"github.com/nearexpiry/backend-nearexpiry/internal/seller"
	"github.com/nearexpiry/backend-nearexpiry/internal/shipment"
	"github.com/nearexpiry/backend-nearexpiry/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "nearexpiry")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "nearexpiry-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "nearexpiry-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{
		Store:     events.PGStore{Pool: pool},
		Enqueuer:  tasks.Enqueuer{Client: taskClient},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}

	authService, err := auth.NewService(auth.Config{
		Store:           auth.PGStore{Pool: pool},
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := auth.NewHandler(authService)
	authMiddleware := auth.Middleware{Service: authService}

	sellerService, err := seller.NewService(seller.ServiceConfig{
		Store:  seller.PGStore{Pool: pool},
		Events: bus,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise seller service")
	}
	sellerHandler := seller.NewHandler(sellerService)
	sellerAdmin := seller.NewAdminHandler(sellerService)

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalog.PGStore{Pool: pool},
		Sellers:      sellerService,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalogService)
	catalogSeller := catalog.NewSellerHandler(catalogService)

	orderService, err := order.NewService(order.ServiceConfig{
		Store:  order.PGStore{Pool: pool, Items: catalog.PGStore{Pool: pool}},
		Events: bus,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service")
	}
	orderHandler := order.NewHandler(orderService, cfg.CatalogDefaultLimit, cfg.CatalogMaxLimit)
	orderAdmin := order.NewAdminHandler(orderService)

	shipmentService, err := shipment.NewService(shipment.ServiceConfig{
		Store:  shipment.PGStore{Pool: pool},
		Events: bus,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise shipment service")
	}
	shipmentHandler := shipment.NewHandler(shipmentService)

	buyerHandler := buyer.Handler{Store: buyer.PGStore{Pool: pool}}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	authLimiter, err := ratelimit.New(redisClient, limiter.Rate{
		Period: cfg.AuthRateLimitWindow,
		Limit:  cfg.AuthRateLimitMax,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	authThrottle := ratelimit.Middleware{
		Limiter: authLimiter,
		OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.NewHandler(
		health.PoolChecker{Pool: pool, Redis: redisClient},
		envDurationMillis("HEALTH_READY_TIMEOUT_MS", 500),
	)
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/items", catalogHandler.Items)
		v.Get("/items/{id}", catalogHandler.ItemDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Use(authThrottle.Handle)
			a.Post("/register", authHandler.Register)
			a.Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Group(func(buyers chi.Router) {
			buyers.Use(authMiddleware.RequireRole(auth.RoleBuyer))
			buyers.With(idem.Middleware).Post("/orders", orderHandler.Create)
			buyers.Get("/orders", orderHandler.Mine)
			buyers.Post("/orders/{id}/cancel", orderHandler.Cancel)
			buyers.Get("/users/me/impact", buyerHandler.Impact)
		})

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.Get("/orders/{id}", orderHandler.Detail)
			authed.Get("/orders/{id}/shipment", shipmentHandler.ByOrder)
		})

		v.Route("/seller", func(s chi.Router) {
			s.Use(authMiddleware.RequireRole(auth.RoleSeller))
			s.Post("/verification", sellerHandler.Submit)
			s.Get("/verification", sellerHandler.Status)
			s.Get("/items", catalogSeller.Mine)
			s.Post("/items", catalogSeller.Create)
			s.Post("/items/bulk", catalogSeller.BulkCreate)
			s.Patch("/items/{id}", catalogSeller.Update)
			s.Delete("/items/{id}", catalogSeller.Delete)
		})

		v.Route("/shipments", func(p chi.Router) {
			p.Use(authMiddleware.RequireRole(auth.RolePartner))
			p.Get("/", shipmentHandler.Mine)
			p.Patch("/{id}/status", shipmentHandler.Advance)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			admin.Get("/verifications", sellerAdmin.Pending)
			admin.Post("/verifications/{id}/approve", sellerAdmin.Approve)
			admin.Post("/verifications/{id}/reject", sellerAdmin.Reject)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
			admin.Post("/shipments", shipmentHandler.Create)
			admin.Post("/shipments/{id}/assign", shipmentHandler.Assign)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-shutdownCtx.Done()
	graceCtx, graceCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer graceCancel()
	if err := srv.Shutdown(graceCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
