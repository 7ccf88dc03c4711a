package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequirePlan returns a middleware that restricts a route to users whose
// subscription plan is in the allowed set. It assumes JWTAuth has already
// run and stored the plan under CtxPlan; a missing or unknown plan is
// rejected with 403.
func RequirePlan(plans ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(plans))
	for _, p := range plans {
		allowed[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			plan, ok := c.Get(CtxPlan).(string)
			if !ok || !allowed[plan] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "plan upgrade required"})
			}
			return next(c)
		}
	}
}
