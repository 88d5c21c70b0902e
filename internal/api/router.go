package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/fishsupply/supply-system/docs"
	"github.com/fishsupply/supply-system/internal/api/handler"
	"github.com/fishsupply/supply-system/internal/api/middleware"
	"github.com/fishsupply/supply-system/internal/core/domain"
	"github.com/fishsupply/supply-system/internal/core/ports"
)

// Resource pairs a URL segment under /api with the service managing it.
type Resource struct {
	Path    string
	Service ports.ResourceService
}

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	DB        *mongo.Database
	Redis     *redis.Client // nil when claims are disabled
	Auth      ports.AuthService
	Resources []Resource
	// JWTSecret enables bearer auth on /api when non-empty.
	JWTSecret string
	Logger    zerolog.Logger
	// Registry receives the HTTP metrics; nil means the global registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(requestLogger(deps.Logger))
	promMW, promHandler := prometheusConfig(deps.Registry)
	e.Use(echoprometheus.NewMiddlewareWithConfig(promMW))

	// --- Operational endpoints (no auth required) ---
	if deps.DB != nil {
		health := handler.NewHealthHandler(deps.DB, deps.Redis)
		e.GET("/health", health.Liveness)
		e.GET("/health/ready", health.Readiness)
	}
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(promHandler))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	if deps.Auth != nil {
		authHandler := handler.NewAuthHandler(deps.Auth)
		e.POST("/auth/register", authHandler.Register)
		e.POST("/auth/login", authHandler.Login)
	}

	// --- Resource routes ---
	g := e.Group("/api")
	canDelete := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if deps.JWTSecret != "" {
		g.Use(middleware.Auth(deps.JWTSecret))
		canDelete = middleware.RBAC(domain.PermDelete)
	}
	for _, r := range deps.Resources {
		mountResource(g, r, canDelete)
	}

	return e
}

func mountResource(g *echo.Group, r Resource, canDelete echo.MiddlewareFunc) {
	h := handler.NewResourceHandler(r.Service)
	rg := g.Group("/" + r.Path)
	rg.GET("", h.List)
	rg.GET("/", h.List)
	rg.GET("/export", h.Export)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.POST("/", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete, canDelete)
}

func prometheusConfig(reg *prometheus.Registry) (echoprometheus.MiddlewareConfig, echoprometheus.HandlerConfig) {
	mw := echoprometheus.MiddlewareConfig{
		Subsystem: "fish_supply",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}
	var h echoprometheus.HandlerConfig
	if reg != nil {
		mw.Registerer = reg
		h.Gatherer = reg
	}
	return mw, h
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
