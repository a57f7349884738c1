package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	echoapi "go.pilab.hu/codegrant/api/echo"
	"go.pilab.hu/codegrant/config"
	applog "go.pilab.hu/codegrant/log"
)

// NewHTTPServer creates and configures the Echo HTTP server around the
// OAuth2 API.
func NewHTTPServer(cfg *config.ServerConfig, appLogger applog.Logger, oauthAPI *echoapi.OAuth2API) *http.Server {
	router := echo.New()
	router.HideBanner = true
	router.HidePort = true

	router.Use(middleware.Recover())
	router.Use(middleware.RequestID())
	router.Use(otelecho.Middleware(cfg.OtelServiceName))
	router.Use(securityHeaders())
	router.Use(requestLogger(appLogger))

	oauthAPI.RegisterRoutes(router)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// securityHeaders adds common security headers to responses. Cache-Control
// no-store keeps token responses out of intermediary caches (RFC 6749,
// Section 5.1).
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			return next(c)
		}
	}
}

// requestLogger logs every request through the application logger, carrying
// method, path, status and latency. Trace IDs ride in through the logger's
// context handling.
func requestLogger(appLogger applog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := map[string]any{
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": c.Request().UserAgent(),
			}
			if err != nil {
				appLogger.Error(c.Request().Context(), "HTTP request failed", err, fields)
			} else {
				appLogger.Info(c.Request().Context(), "HTTP request", fields)
			}
			return nil
		}
	}
}
