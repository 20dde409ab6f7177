// Package router builds the echo instance and registers every route with its
// middleware chain.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/wetwo-backend/internal/config"
	"github.com/iliyamo/wetwo-backend/internal/handler"
	"github.com/iliyamo/wetwo-backend/internal/metrics"
	"github.com/iliyamo/wetwo-backend/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Auth         *handler.AuthHandler
	Profile      *handler.ProfileHandler
	Mood         *handler.MoodHandler
	Memory       *handler.MemoryHandler
	Partnership  *handler.PartnershipHandler
	LoveMessage  *handler.LoveMessageHandler
	Notification *handler.NotificationHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	Logger     *slog.Logger
	Authn      middleware.Authenticator
	Metrics    *metrics.Collector
	Gatherer   prometheus.Gatherer // nil disables GET /metrics
	Limits     config.RateLimits
	Redis      *redis.Client // nil selects in-memory rate limiting
	CORSOrigin string
	BodyLimit  string
}

// New returns a configured echo instance with all routes registered.
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(opts.Logger)
	e.Validator = handler.NewValidator()

	bodyLimit := opts.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "10M"
	}
	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(requestLogger(opts.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{origin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(opts.Metrics.Middleware())

	e.GET("/health", handler.Health)
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(opts.Gatherer)))
	}

	registerAuth(e, h.Auth, opts)
	registerProtected(e, h, opts)
	return e
}

// registerAuth mounts the public sign-in endpoints behind the auth bucket.
func registerAuth(e *echo.Echo, a *handler.AuthHandler, opts Options) {
	g := e.Group("/auth", middleware.NewTokenBucket("auth", opts.Limits.Auth, opts.Redis, opts.Metrics))
	g.POST("/signup", a.Signup)
	g.POST("/signin", a.Signin)
	g.POST("/apple", a.Apple)
	g.POST("/logout", a.Logout)
}

// registerProtected mounts every route that requires a session. Mutating
// routes also take a token from the write bucket; list routes addressed by
// ?user_id= only serve the caller.
func registerProtected(e *echo.Echo, h Handlers, opts Options) {
	authed := middleware.RequireAuth(opts.Authn, opts.Metrics)
	write := middleware.NewTokenBucket("write", opts.Limits.Write, opts.Redis, opts.Metrics)
	self := middleware.RequireSelfQuery("user_id")

	me := e.Group("/me", authed)
	me.GET("", h.Auth.Me)
	me.GET("/profile", h.Profile.Get)
	me.PUT("/profile", h.Profile.Update, write)

	moods := e.Group("/mood-entries", authed)
	moods.GET("", h.Mood.List)
	moods.GET("/today", h.Mood.Today)
	moods.POST("", h.Mood.Create, write)
	moods.PUT("/:id", h.Mood.Update, write)

	memories := e.Group("/memories", authed)
	memories.GET("", h.Memory.List, self)
	memories.POST("", h.Memory.Create, write)
	memories.PUT("/:id", h.Memory.Update, write)
	memories.DELETE("/:id", h.Memory.Delete, write)

	partnerships := e.Group("/partnerships", authed)
	partnerships.GET("", h.Partnership.List, self)
	partnerships.POST("/code", h.Partnership.CreateCode, write)
	partnerships.POST("", h.Partnership.Join, write)

	messages := e.Group("/love-messages", authed)
	messages.GET("", h.LoveMessage.List, self)
	messages.POST("", h.LoveMessage.Create, write)

	notifications := e.Group("/notifications", authed)
	notifications.GET("", h.Notification.List, self)
	notifications.PUT("/:id/read", h.Notification.MarkRead, write)
}

// requestLogger writes one slog record per request. Errors are rendered by
// the error handler first so the logged status is the one sent.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("user_id", middleware.UserID(c)),
			)
			return nil
		},
	})
}
