package middleware // middleware contains reusable request-interception layers

import (
	"context"  // context carries the request deadline into the entitlement lookup
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checking and trimming
	"time"     // timeout for the entitlement query

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware

	"github.com/iliyamo/snippet-vault/internal/model"
	"github.com/iliyamo/snippet-vault/internal/utils"
)

// EntitlementSource resolves a user's current subscription. Satisfied by
// *repository.SubscriptionRepo in production and by in-memory fakes in tests.
type EntitlementSource interface {
	GetByUserID(ctx context.Context, userID string) (model.Subscription, error)
}

// Context keys set by JWTAuth for downstream handlers.
const (
	CtxUserID       = "user_id"      // string: verified user id from the access token
	CtxSubscription = "subscription" // model.Subscription: entitlement at request time
	CtxPlan         = "plan"         // string: shorthand for subscription.Plan
)

// JWTAuth returns an Echo middleware that guards protected routes. It
// verifies the Bearer access token against the access secret, then resolves
// the user's subscription before the protected handler runs. The gate fails
// closed: a missing or unverifiable token is 401 with nothing attached to
// the context, and a failed entitlement lookup is 500 — a request is never
// let through with partial identity state.
func JWTAuth(accessSecret string, subs EntitlementSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing Bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Verification is pure and local, so expired, malformed and
			// forged tokens are all rejected before any I/O happens.
			uid, err := utils.ParseUserID(raw, accessSecret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}
			c.Set(CtxUserID, uid)

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			sub, err := subs.GetByUserID(ctx, uid)
			if err != nil {
				c.Logger().Errorf("entitlement lookup failed for user %s: %v", uid, err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
			}
			c.Set(CtxSubscription, sub)
			c.Set(CtxPlan, sub.Plan)
			return next(c)
		}
	}
}
