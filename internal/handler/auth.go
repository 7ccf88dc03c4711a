package handler

import (
	"context"      // context with cancellation for DB calls
	"database/sql" // sql.ErrNoRows sentinel
	"net/http"     // HTTP status codes and cookie primitives
	"strings"      // string normalization
	"time"         // timeouts for DB calls and cookie lifetimes

	"github.com/google/uuid"      // device id generation
	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/snippet-vault/internal/config"
	"github.com/iliyamo/snippet-vault/internal/model"
	"github.com/iliyamo/snippet-vault/internal/queue"
	"github.com/iliyamo/snippet-vault/internal/repository"
	"github.com/iliyamo/snippet-vault/internal/utils"
)

// Cookie names shared between login, refresh and logout. The refresh token
// rides in "jwt" and the device identifier in "device_id"; both are http-only
// so script can never read them.
const (
	refreshCookieName = "jwt"
	deviceCookieName  = "device_id"
)

// UserStore is the slice of the user repository the auth flows need.
type UserStore interface {
	Create(ctx context.Context, email, username, firstName, lastName, password string, cost int) (string, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// SessionStore is the slice of the session repository the auth flows need.
// Implementations must make UpsertActive atomic for a given (user, device)
// key; the handlers rely on that to survive concurrent logins.
type SessionStore interface {
	UpsertActive(ctx context.Context, userID, deviceID, refreshToken, userAgent, ipAddress string) error
	FindActive(ctx context.Context, userID, deviceID, refreshToken string) (model.Session, error)
	TouchLastUsed(ctx context.Context, userID, deviceID string) error
	Revoke(ctx context.Context, userID, deviceID string) error
	ListActiveForUser(ctx context.Context, userID string) ([]model.Session, error)
}

// EntitlementStore resolves subscription state for response hydration.
type EntitlementStore interface {
	GetByUserID(ctx context.Context, userID string) (model.Subscription, error)
}

// PublishFunc delivers an auth event to the message broker. May be nil when
// no broker is configured; publishing is always best effort.
type PublishFunc func(ctx context.Context, routingKey string, event any) error

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Subs     EntitlementStore
	Events   PublishFunc
}

func NewAuthHandler(cfg config.Config, u UserStore, s SessionStore, e EntitlementStore, pub PublishFunc) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s, Subs: e, Events: pub}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	Email            string `json:"email"`
	Username         string `json:"username"`
	ProfilePicture   string `json:"profilePicture"`
	SubscriptionPlan string `json:"subscriptionPlan"`
}

// Register: validate the password policy, create the user plus their default
// free subscription, and report conflicts per field. Registration does not
// itself create a session; the client logs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, username and password are required"})
	}
	if reason := utils.TestPassword(req.Password); reason != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": reason})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Username, req.FirstName, req.LastName, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		switch err {
		case repository.ErrEmailExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "Email already registered"})
		case repository.ErrUsernameExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "Username taken"})
		}
		c.Logger().Errorf("register: create user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	h.publish(queue.UserRegisteredKey, queue.UserRegisteredEvent{
		UserID:       uid,
		Email:        req.Email,
		Username:     req.Username,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"error": nil})
}

// Login: verify credentials, issue the dual tokens and rotate-or-create the
// device session. An unknown email and a wrong password are deliberately
// indistinguishable to the caller so accounts cannot be enumerated.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
		}
		c.Logger().Errorf("login: user lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTAccessSecret, u.ID, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.JWTRefreshSecret, u.ID, h.Cfg.RefreshTTLHours)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	// Reuse the client's device id when the long-lived cookie is present so
	// the same browser keeps rotating one session row; otherwise mint one.
	deviceID := ""
	if ck, err := c.Cookie(deviceCookieName); err == nil && ck.Value != "" {
		deviceID = ck.Value
	} else {
		deviceID = uuid.NewString()
	}

	if err := h.Sessions.UpsertActive(ctx, u.ID, deviceID, refresh.Token, c.Request().UserAgent(), c.RealIP()); err != nil {
		c.Logger().Errorf("login: session upsert failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	c.SetCookie(h.refreshCookie(refresh.Token, time.Duration(h.Cfg.RefreshTTLHours)*time.Hour))
	c.SetCookie(h.deviceCookie(deviceID, time.Duration(h.Cfg.DeviceTTLDays)*24*time.Hour))

	return c.JSON(http.StatusOK, echo.Map{"accessToken": access.Token, "error": nil})
}

// Refresh: revalidate the refresh cookie against the stored device session
// and mint a new access token. The refresh token itself is not rotated here;
// it stays bound to the session row until the next login or logout.
func (h *AuthHandler) Refresh(c echo.Context) error {
	refreshTok, err := c.Cookie(refreshCookieName)
	if err != nil || refreshTok.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "No refresh token cookie"})
	}
	deviceCk, err := c.Cookie(deviceCookieName)
	if err != nil || deviceCk.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "No device_id cookie"})
	}

	// A token that fails signature or expiry checks is a forgery or long
	// dead: 403, as opposed to the 401 of a merely revoked session.
	uid, err := utils.ParseUserID(refreshTok.Value, h.Cfg.JWTRefreshSecret)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, err = h.Sessions.FindActive(ctx, uid, deviceCk.Value, refreshTok.Value)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or revoked session"})
		}
		c.Logger().Errorf("refresh: session lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		c.Logger().Errorf("refresh: user lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	// A user without a subscription row hydrates as free; a store failure
	// is a real error.
	plan := model.PlanFree
	sub, err := h.Subs.GetByUserID(ctx, uid)
	if err == nil {
		plan = sub.Plan
	} else if err != sql.ErrNoRows {
		c.Logger().Errorf("refresh: subscription lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTAccessSecret, uid, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server error"})
	}
	if err := h.Sessions.TouchLastUsed(ctx, uid, deviceCk.Value); err != nil {
		c.Logger().Warnf("refresh: touch last_used failed: %v", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": access.Token,
		"user": userPart{
			Email:            u.Email,
			Username:         u.Username,
			ProfilePicture:   u.ProfilePictureURL,
			SubscriptionPlan: plan,
		},
		"error": nil,
	})
}

// Logout: revoke the device session and clear both cookies. Best effort by
// design — a caller without session cookies has nothing to revoke and gets
// an empty 204 rather than an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	refreshTok, err := c.Cookie(refreshCookieName)
	if err != nil || refreshTok.Value == "" {
		return c.NoContent(http.StatusNoContent)
	}
	uid, err := utils.ParseUserID(refreshTok.Value, h.Cfg.JWTRefreshSecret)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Invalid refresh token"})
	}
	deviceCk, err := c.Cookie(deviceCookieName)
	if err != nil || deviceCk.Value == "" {
		return c.NoContent(http.StatusNoContent)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Revoke(ctx, uid, deviceCk.Value); err != nil {
		c.Logger().Errorf("logout: revoke failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to revoke session"})
	}

	h.publish(queue.SessionRevokedKey, queue.SessionRevokedEvent{
		UserID:    uid,
		DeviceID:  deviceCk.Value,
		RevokedAt: time.Now().UTC().Format(time.RFC3339),
	})

	c.SetCookie(h.clearCookie(h.refreshCookie("", 0)))
	c.SetCookie(h.clearCookie(h.deviceCookie("", 0)))
	return c.JSON(http.StatusOK, echo.Map{"error": nil})
}

// ----- cookie helpers -----

// refreshCookie builds the http-only refresh token cookie. SameSite=None so
// the SPA frontend on another origin can send it; Secure is mandatory with
// that setting.
func (h *AuthHandler) refreshCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// deviceCookie builds the long-lived device identifier cookie.
func (h *AuthHandler) deviceCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     deviceCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// clearCookie turns a cookie into a removal instruction.
func (h *AuthHandler) clearCookie(ck *http.Cookie) *http.Cookie {
	ck.Value = ""
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	return ck
}

// publish fires an auth event without blocking the request path. The event
// is sent on a detached context so it survives the response being written.
func (h *AuthHandler) publish(key string, event any) {
	if h.Events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Events(ctx, key, event)
	}()
}
