// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"helpdesk-dashboard/internal/config"
	"helpdesk-dashboard/internal/db"
	"helpdesk-dashboard/internal/domain/permission"
	"helpdesk-dashboard/internal/domain/resource"
	"helpdesk-dashboard/internal/guard"
	authHandler "helpdesk-dashboard/internal/handlers/auth"
	dashboardHandler "helpdesk-dashboard/internal/handlers/dashboard"
	notifyHandler "helpdesk-dashboard/internal/handlers/notification"
	wsHandler "helpdesk-dashboard/internal/handlers/websocket"
	"helpdesk-dashboard/internal/middleware"
	"helpdesk-dashboard/internal/pkg/apiclient"
	"helpdesk-dashboard/internal/pkg/metrics"
	"helpdesk-dashboard/internal/pkg/querycache"
	"helpdesk-dashboard/internal/pkg/ratelimit"
	"helpdesk-dashboard/internal/pkg/tokenstore"
	"helpdesk-dashboard/internal/session"
	"helpdesk-dashboard/internal/websocket"
	wsHandlers "helpdesk-dashboard/internal/websocket/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg      config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	registry *prometheus.Registry
	hub      *websocket.Hub
	redis    *redis.Client
}

// NewServer wires the gateway. With REDIS_ADDR unset every shared cache
// lives in process memory.
func NewServer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	// ----- Metrics -----
	registry, m := metrics.NewRegistry()
	s.registry = registry

	// ----- Redis -----
	var (
		cache    querycache.Cache
		rotation apiclient.RotationCache
		limiter  ratelimit.LoginLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
			PoolSize: 10,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		s.redis = redisClient
		cache = querycache.NewRedis(redisClient, logger)
		rotation = apiclient.NewRedisRotation(redisClient)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
	} else {
		logger.Warn("REDIS_ADDR not set, using in-memory caches; refresh sharing is limited to this process")
		cache = querycache.NewMemory()
		rotation = apiclient.NewMemoryRotation()
		limiter = ratelimit.NewMemoryLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)
	}

	// ----- Route permissions -----
	rules := resource.DefaultRouteRules(DashboardBase)
	if cfg.RouteRulesFile != "" {
		loaded, err := config.LoadRouteRules(cfg.RouteRulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	table, err := permission.NewRouteTable(rules)
	if err != nil {
		return nil, fmt.Errorf("route rules: %w", err)
	}
	logger.Info("route rules ready",
		zap.String("file", cfg.RouteRulesFile),
		zap.Int("rules", len(table.Rules())),
	)

	// ----- Backend client -----
	backend := apiclient.NewBackend(apiclient.Config{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.APITimeout,
		Retries:        cfg.APIRetries,
		RefreshTimeout: cfg.RefreshTimeout,
		RotationGrace:  cfg.RotationGrace,
	}, nil, rotation, m, logger)

	// ----- WebSocket Hub -----
	s.hub = websocket.NewHub(logger, m)
	for _, h := range []websocket.MessageHandler{
		wsHandlers.NewNotificationHandler(s.hub),
		wsHandlers.NewPresenceHandler(s.hub),
	} {
		if err := s.hub.RegisterHandler(h); err != nil {
			return nil, fmt.Errorf("register websocket handler: %w", err)
		}
	}

	// ----- Handlers -----
	handlers := &Handlers{
		AuthHandler: authHandler.NewAuthHandler(authHandler.Config{
			SignInPath:  cfg.SignInPath,
			LandingPath: cfg.LandingPath,
		}, limiter, logger),
		DashboardHandler: dashboardHandler.NewResourceHandler(cache, cfg.QueryCacheTTL, logger),
		NotifHandler:     notifyHandler.NewNotificationHandler(s.hub, logger),
		WSHandler:        wsHandler.NewWebSocketHandler(s.hub, cfg.AllowedOrigins, logger),
		Guards: guard.New(guard.Config{
			SignInPath:    cfg.SignInPath,
			ForbiddenPath: cfg.ForbiddenPath,
			RetryAfter:    cfg.WaitRetryAfter,
		}, m),
		RouteTable: table,
		Session: middleware.Session(middleware.SessionConfig{
			Cookies: tokenstore.CookieConfig{
				Domain:     cfg.CookieDomain,
				Secure:     cfg.CookieSecure,
				AccessTTL:  cfg.AccessCookieTTL,
				RefreshTTL: cfg.RefreshCookieTTL,
			},
			Session: session.Config{
				SignInPath:    cfg.SignInPath,
				LogoutTimeout: cfg.LogoutTimeout,
			},
			Backend: backend,
			Cache:   cache,
			Metrics: m,
			Logger:  logger,
		}),
		Edge: middleware.EdgeGate(middleware.EdgeConfig{
			CookieName:        tokenstore.AccessCookie,
			PublicPaths:       []string{cfg.SignInPath},
			ProtectedPrefixes: []string{DashboardBase},
			SignInPath:        cfg.SignInPath,
			LandingPath:       cfg.LandingPath,
		}, m),
		Metrics:       metrics.Handler(registry),
		SignInPath:    cfg.SignInPath,
		ForbiddenPath: cfg.ForbiddenPath,
	}

	// ----- Router -----
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(cfg.AllowedOrigins),
	)
	SetupRouter(s.engine, handlers)

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled and then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard gateway listening",
			zap.String("addr", s.cfg.HTTPAddr),
			zap.String("api", s.cfg.APIBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dashboard gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Sockets are hijacked and not drained by Shutdown; stop the hub first.
	stopHub()
	err := srv.Shutdown(shutdownCtx)
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			s.logger.Warn("failed to close redis", zap.Error(cerr))
		}
	}
	return err
}
