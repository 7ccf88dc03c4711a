package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/snippet-vault/internal/middleware"
	"github.com/iliyamo/snippet-vault/internal/model"
)

// Me returns the authenticated user's profile and entitlement. Identity and
// subscription come from the context the auth gate populated; only the
// profile fields need a store read.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(string)
	sub, _ := c.Get(middleware.CtxSubscription).(model.Subscription)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		c.Logger().Errorf("me: user lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":             u.ID,
			"email":          u.Email,
			"username":       u.Username,
			"firstName":      u.FirstName,
			"lastName":       u.LastName,
			"profilePicture": u.ProfilePictureURL,
			"emailVerified":  u.EmailVerified,
		},
		"subscription": echo.Map{
			"plan":   sub.Plan,
			"status": sub.Status,
			"endsAt": sub.EndsAt,
		},
		"error": nil,
	})
}

// sessionPart is the client-facing view of a device session. The stored
// refresh token is deliberately absent.
type sessionPart struct {
	DeviceID   string    `json:"deviceId"`
	UserAgent  string    `json:"userAgent"`
	IPAddress  string    `json:"ipAddress"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// ListSessions returns the caller's active device sessions, most recently
// used first, for device-management UIs.
func (h *AuthHandler) ListSessions(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserID).(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListActiveForUser(ctx, uid)
	if err != nil {
		c.Logger().Errorf("sessions: list failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	out := make([]sessionPart, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionPart{
			DeviceID:   s.DeviceID,
			UserAgent:  s.UserAgent,
			IPAddress:  s.IPAddress,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out, "error": nil})
}
