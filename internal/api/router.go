package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/forkful/marketplace/internal/api/handler"
	"github.com/forkful/marketplace/internal/api/middleware"
	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
	"github.com/forkful/marketplace/internal/infrastructure/http/handlers"

	_ "github.com/forkful/marketplace/docs"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	AuthService    ports.AuthService
	AccountService ports.AccountService
	Readiness      map[string]handlers.Check
	Log            zerolog.Logger

	// BasePath prefixes every API route, e.g. "/api".
	BasePath string
	// RateLimit is the per-IP request rate on the unauthenticated auth
	// routes. Zero disables the limiter.
	RateLimit float64
	// Registry receives the HTTP metrics. Defaults to the global registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(metricsMiddleware(deps.Registry))

	// --- Ops (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", metricsHandler(deps.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	accountHandler := handler.NewAccountHandler(deps.AccountService)
	authenticated := middleware.Auth(deps.AuthService, deps.Log)
	adminOnly := middleware.RequireRole(domain.RoleAdmin, deps.Log)

	api := e.Group(deps.BasePath)

	// --- Session routes ---
	public := api.Group("")
	if deps.RateLimit > 0 {
		public.Use(rateLimiter(deps.RateLimit))
	}
	public.POST("/signup", authHandler.SignUp)
	public.POST("/signin", authHandler.SignIn)
	public.POST("/refresh", authHandler.Refresh)

	api.POST("/logout", authHandler.Logout, authenticated)

	// --- Account routes ---
	accounts := api.Group("/accounts", authenticated)
	accounts.GET("/self", accountHandler.Self)
	accounts.PUT("/self", accountHandler.UpdateSelf)
	accounts.GET("/:id", accountHandler.Get, adminOnly)
	accounts.PUT("/:id", accountHandler.Update, adminOnly)

	return e
}

// requestLogger emits one zerolog event per request. Headers are not
// logged, so tokens in Authorization or Cookie never reach the logs.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

func rateLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps) * 2
	if burst < 1 {
		burst = 1
	}
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

func metricsMiddleware(reg *prometheus.Registry) echo.MiddlewareFunc {
	cfg := echoprometheus.MiddlewareConfig{Subsystem: "marketplace"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return echoprometheus.NewMiddlewareWithConfig(cfg)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}
