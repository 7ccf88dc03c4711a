package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/snippet-vault/internal/config"
	"github.com/iliyamo/snippet-vault/internal/handler"
	"github.com/iliyamo/snippet-vault/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the auth endpoints and the protected group. The public
// credential endpoints live under /api/v1/auth and carry the rate limiter;
// everything under /api/v1 behind them requires a Bearer access token and
// gets entitlement state attached by the gate.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate middleware.EntitlementSource, rdb *redis.Client) {
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/api/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh only reissues the access token; the refresh token stays bound
	// to the session row until the next login or logout.
	g.POST("/refresh", a.Refresh)
	// Logout is deliberately outside the gate: it authenticates itself via
	// the refresh cookie and must succeed even with an expired access token.
	g.POST("/logout", a.Logout)

	auth := e.Group("/api/v1")
	auth.Use(middleware.JWTAuth(a.Cfg.JWTAccessSecret, gate))
	auth.GET("/me", a.Me)
	auth.GET("/sessions", a.ListSessions)
}
