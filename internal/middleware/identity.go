package middleware

// identity.go holds small helpers shared across middleware files.

import "github.com/labstack/echo/v4"

// currentUserID returns the verified user id stored by JWTAuth, or "anon"
// when the request has not been authenticated. Used by the rate limiter to
// build per-user bucket keys.
func currentUserID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(string); ok && v != "" {
		return v
	}
	return "anon"
}
