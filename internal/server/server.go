package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"textile-store/internal/config"
	"textile-store/internal/database"
	"textile-store/internal/mail"
	custommiddleware "textile-store/internal/middleware"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"
	"textile-store/internal/service"
	"textile-store/internal/storage"
	"textile-store/internal/token"
	"textile-store/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Dependencies are the external resources the server is built on. Redis is
// optional; without it rate limiting is off and realtime stays in-process.
type Dependencies struct {
	DB       database.Service
	Redis    *redis.Client
	Broker   realtime.Broker
	Storage  storage.Storage
	Mailer   mail.Mailer
	Currency transport.CurrencyResolver
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
	hub    *realtime.Hub
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := custommiddleware.NewMetrics(registry)

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(metrics.Handler)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	s := &Server{config: cfg, logger: logger, deps: deps}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	// Repositories
	db := deps.DB.DB()
	store := repository.NewStore(db)
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	loginLinkRepo := repository.NewLoginLinkRepository(db)

	// Services
	tokens := token.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute)
	notifier := realtime.NewNotifier(deps.Broker, logger)

	userService := service.NewUserService(userRepo, refreshTokenRepo, loginLinkRepo, tokens, deps.Mailer, service.AuthConfig{
		RefreshTTL:  time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
		LinkTTL:     time.Duration(cfg.JWT.LinkExpiry) * time.Minute,
		LinkBaseURL: cfg.Server.PublicURL,
	}, logger)
	catalogService := service.NewCatalogService(store, deps.Storage, notifier, logger)
	cartService := service.NewCartService(store, logger)
	discountService := service.NewDiscountService(store.Discounts(), notifier, logger)
	checkoutService := service.NewCheckoutService(store, discountService, notifier, service.CheckoutConfig{
		WhatsAppNumber: cfg.Checkout.WhatsAppNumber,
		StoreName:      cfg.Checkout.StoreName,
	}, registry, logger)
	orderService := service.NewOrderService(store, notifier, logger)
	reviewService := service.NewReviewService(store.Reviews(), store.Users(), notifier, logger)
	adminService := service.NewAdminService(store, notifier, logger)

	// Middleware shared by the handlers
	authMiddleware := custommiddleware.AuthMiddleware(tokens, logger)
	optionalAuth := custommiddleware.OptionalAuth(tokens, logger)
	rateLimit := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		rateLimit = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:auth",
		}, logger)
	}

	s.hub = realtime.NewHub(deps.Broker, logger, custommiddleware.OriginChecker(cfg.Server))

	// Routes
	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware, rateLimit)
	transport.NewCatalogHandler(catalogService, deps.Currency, logger).RegisterRoutes(router)
	transport.NewCartHandler(cartService, deps.Currency, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCheckoutHandler(checkoutService, cartService, deps.Currency, logger).RegisterRoutes(router, optionalAuth)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewReviewHandler(reviewService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCurrencyHandler(deps.Currency, logger).RegisterRoutes(router)
	transport.NewRealtimeHandler(deps.Broker, s.hub, registry, logger).RegisterRoutes(router, optionalAuth)
	transport.NewAdminHandler(transport.AdminServices{
		Catalog:   catalogService,
		Orders:    orderService,
		Reviews:   reviewService,
		Discounts: discountService,
		Users:     userService,
		Admin:     adminService,
	}, logger).RegisterRoutes(router, authMiddleware)

	// Request contexts derive from base so Shutdown can end open streams,
	// which it would otherwise wait on until its deadline.
	base, endStreams := context.WithCancel(context.Background())
	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(router, "storefront"),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
	s.RegisterOnShutdown(func() {
		endStreams()
		s.hub.Shutdown()
	})
	return s
}

// health reports the database and, when configured, Redis. Any dependency
// down turns the response into a 503.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok"}

	db := s.deps.DB.Health(r.Context())
	body["database"] = db
	if db["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	if s.deps.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = map[string]string{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			body["redis"] = map[string]string{"status": "up"}
		}
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	custommiddleware.RespondWithJSON(w, status, body)
}

// Close releases everything the server holds once it has stopped serving.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	s.hub.Shutdown()
	if err := s.deps.Broker.Close(); err != nil {
		s.logger.Error("Failed to close realtime broker", zap.Error(err))
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if err := s.deps.DB.Close(); err != nil {
		s.logger.Error("Failed to close database connection", zap.Error(err))
	}

	_ = s.logger.Sync()
	return nil
}
