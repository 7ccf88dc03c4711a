package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/snippet-vault/internal/config"
	"github.com/iliyamo/snippet-vault/internal/model"
	"github.com/iliyamo/snippet-vault/internal/repository"
	"github.com/iliyamo/snippet-vault/internal/utils"
)

// ----- in-memory store fakes -----

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]model.User
	byEmail map[string]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]model.User{}, byEmail: map[string]model.User{}}
}

func (m *memUsers) Create(ctx context.Context, email, username, firstName, lastName, password string, cost int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return "", repository.ErrEmailExists
	}
	for _, u := range m.byID {
		if u.Username == username {
			return "", repository.ErrUsernameExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return u.ID, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return u, nil
}

// memSessions mirrors the SQL store's semantics: rotate the single active
// row per (user, device) in place, revoke terminally, never delete.
type memSessions struct {
	mu   sync.Mutex
	rows []*model.Session
}

func (m *memSessions) UpsertActive(ctx context.Context, userID, deviceID, refreshToken, userAgent, ipAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.DeviceID == deviceID && !s.Revoked {
			s.RefreshToken = refreshToken
			s.UserAgent = userAgent
			s.IPAddress = ipAddress
			s.LastUsedAt = time.Now().UTC()
			return nil
		}
	}
	m.rows = append(m.rows, &model.Session{
		ID:           uint64(len(m.rows) + 1),
		UserID:       userID,
		DeviceID:     deviceID,
		RefreshToken: refreshToken,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		CreatedAt:    time.Now().UTC(),
		LastUsedAt:   time.Now().UTC(),
	})
	return nil
}

func (m *memSessions) FindActive(ctx context.Context, userID, deviceID, refreshToken string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.DeviceID == deviceID && s.RefreshToken == refreshToken && !s.Revoked {
			return *s, nil
		}
	}
	return model.Session{}, sql.ErrNoRows
}

func (m *memSessions) TouchLastUsed(ctx context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.DeviceID == deviceID && !s.Revoked {
			s.LastUsedAt = time.Now().UTC()
		}
	}
	return nil
}

func (m *memSessions) Revoke(ctx context.Context, userID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.DeviceID == deviceID {
			s.Revoked = true
		}
	}
	return nil
}

func (m *memSessions) ListActiveForUser(ctx context.Context, userID string) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.rows {
		if s.UserID == userID && !s.Revoked {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessions) activeCount(userID, deviceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.rows {
		if s.UserID == userID && s.DeviceID == deviceID && !s.Revoked {
			n++
		}
	}
	return n
}

type memSubs struct {
	mu sync.Mutex
	m  map[string]model.Subscription
}

func (s *memSubs) GetByUserID(ctx context.Context, userID string) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.m[userID]
	if !ok {
		return model.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

// ----- harness -----

const (
	accessSecret  = "test-access-secret"
	refreshSecret = "test-refresh-secret"
)

func testConfig() config.Config {
	return config.Config{
		Env:              "test",
		JWTAccessSecret:  accessSecret,
		JWTRefreshSecret: refreshSecret,
		AccessTTLMin:     15,
		RefreshTTLHours:  24,
		DeviceTTLDays:    365,
		BcryptCost:       4, // minimum cost keeps tests fast
	}
}

func newTestHandler(t *testing.T) (*AuthHandler, *memUsers, *memSessions, *memSubs) {
	t.Helper()
	users := newMemUsers()
	sessions := &memSessions{}
	subs := &memSubs{m: map[string]model.Subscription{}}
	return NewAuthHandler(testConfig(), users, sessions, subs, nil), users, sessions, subs
}

// seedUser registers a user directly through the store and gives them a free
// subscription, returning the user id.
func seedUser(t *testing.T, users *memUsers, subs *memSubs, email, username, password string) string {
	t.Helper()
	id, err := users.Create(context.Background(), email, username, "", "", password, 4)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	subs.mu.Lock()
	subs.m[id] = model.Subscription{UserID: id, Plan: model.PlanFree, Status: model.SubStatusActive}
	subs.mu.Unlock()
	return id
}

func doRequest(t *testing.T, h echo.HandlerFunc, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

// login drives the Login handler and returns the access token plus the two
// session cookies.
func login(t *testing.T, h *AuthHandler, email, password string, deviceCookie *http.Cookie) (string, *http.Cookie, *http.Cookie) {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	var rec *httptest.ResponseRecorder
	if deviceCookie != nil {
		rec = doRequest(t, h.Login, body, deviceCookie)
	} else {
		rec = doRequest(t, h.Login, body)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	access, _ := decodeBody(t, rec)["accessToken"].(string)
	if access == "" {
		t.Fatal("login response missing accessToken")
	}
	jwtCk := cookieByName(rec, "jwt")
	devCk := cookieByName(rec, "device_id")
	if jwtCk == nil || devCk == nil {
		t.Fatal("login must set jwt and device_id cookies")
	}
	return access, jwtCk, devCk
}

// ----- register -----

func TestRegisterPasswordPolicy(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := doRequest(t, h.Register, `{"email":"a@b.c","username":"ab","password":"Abcdefgh"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Password must include at least one number" {
		t.Errorf("error = %v, want the missing-number reason", got)
	}
}

func TestRegisterDuplicateEmailAndUsername(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := doRequest(t, h.Register, `{"email":"dup@example.com","username":"first","password":"Abcdef12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rec.Code)
	}

	rec = doRequest(t, h.Register, `{"email":"dup@example.com","username":"second","password":"Abcdef12"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Email already registered" {
		t.Errorf("error = %v, want Email already registered", got)
	}

	rec = doRequest(t, h.Register, `{"email":"other@example.com","username":"first","password":"Abcdef12"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username status = %d, want 409", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Username taken" {
		t.Errorf("error = %v, want Username taken", got)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.Register, `{"email":"a@b.c"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// ----- login -----

func TestLoginIssuesTokensAndCookies(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	access, jwtCk, devCk := login(t, h, "kim@example.com", "Abcdef12", nil)

	// Access token: verifies against the access secret, subject is the user,
	// expiry roughly 15 minutes out.
	got, err := utils.ParseUserID(access, accessSecret)
	if err != nil || got != uid {
		t.Errorf("access token subject = %q err=%v, want %q", got, err, uid)
	}
	if _, err := utils.ParseUserID(access, refreshSecret); err == nil {
		t.Error("access token must not verify against the refresh secret")
	}

	// Refresh cookie: http-only JWT bound to the refresh secret, ~24h.
	if !jwtCk.HttpOnly || !jwtCk.Secure {
		t.Error("refresh cookie must be http-only and secure")
	}
	if got, err := utils.ParseUserID(jwtCk.Value, refreshSecret); err != nil || got != uid {
		t.Errorf("refresh token subject = %q err=%v, want %q", got, err, uid)
	}
	if jwtCk.MaxAge < 23*3600 || jwtCk.MaxAge > 25*3600 {
		t.Errorf("refresh cookie MaxAge = %d, want ~24h", jwtCk.MaxAge)
	}
	if devCk.Value == "" {
		t.Error("device cookie must carry a generated device id")
	}
	if devCk.MaxAge < 364*24*3600 {
		t.Errorf("device cookie MaxAge = %d, want ~365d", devCk.MaxAge)
	}
}

func TestLoginBadCredentialsIndistinguishable(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	unknown := doRequest(t, h.Login, `{"email":"nobody@example.com","password":"Abcdef12"}`)
	wrongPw := doRequest(t, h.Login, `{"email":"kim@example.com","password":"Wrong123"}`)

	if unknown.Code != http.StatusUnauthorized || wrongPw.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d/%d, want 401/401", unknown.Code, wrongPw.Code)
	}
	// Anti-enumeration: the two failures must be byte-identical.
	if unknown.Body.String() != wrongPw.Body.String() {
		t.Errorf("unknown-email body %q differs from wrong-password body %q",
			unknown.Body.String(), wrongPw.Body.String())
	}
}

// ----- refresh -----

func TestLoginThenRefresh(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	access, jwtCk, devCk := login(t, h, "kim@example.com", "Abcdef12", nil)

	// iat has second resolution; wait so the refreshed token differs.
	time.Sleep(1100 * time.Millisecond)

	rec := doRequest(t, h.Refresh, "", jwtCk, devCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	newAccess, _ := body["accessToken"].(string)
	if newAccess == "" || newAccess == access {
		t.Error("refresh must return a new, distinct access token")
	}
	if got, err := utils.ParseUserID(newAccess, accessSecret); err != nil || got != uid {
		t.Errorf("refreshed token subject = %q err=%v, want %q", got, err, uid)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "kim" || user["subscriptionPlan"] != model.PlanFree {
		t.Errorf("refresh user summary = %v", user)
	}
}

func TestRefreshMissingCookies(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	if rec := doRequest(t, h.Refresh, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no cookies: status = %d, want 401", rec.Code)
	}
	jwtOnly := &http.Cookie{Name: "jwt", Value: "whatever"}
	if rec := doRequest(t, h.Refresh, "", jwtOnly); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing device cookie: status = %d, want 401", rec.Code)
	}
}

func TestRefreshForgedTokenForbidden(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	// A token signed with the access secret must be rejected outright even
	// though its claims are plausible.
	forged, err := utils.NewRefreshToken(accessSecret, uid, 24)
	if err != nil {
		t.Fatal(err)
	}
	rec := doRequest(t, h.Refresh, "",
		&http.Cookie{Name: "jwt", Value: forged.Token},
		&http.Cookie{Name: "device_id", Value: "dev-1"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRefreshAfterLogoutUnauthorized(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	_, jwtCk, devCk := login(t, h, "kim@example.com", "Abcdef12", nil)

	rec := doRequest(t, h.Logout, "", jwtCk, devCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}

	// Revocation is permanent: the stale cookies can never refresh again.
	rec = doRequest(t, h.Refresh, "", jwtCk, devCk)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", rec.Code)
	}
}

// ----- logout -----

func TestLogoutWithoutCookiesIsNoop(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	if rec := doRequest(t, h.Logout, ""); rec.Code != http.StatusNoContent {
		t.Errorf("no cookies: status = %d, want 204", rec.Code)
	}

	// With a refresh cookie but no device cookie there is still nothing to
	// revoke; the decoded token just identifies the caller.
	tok, _ := utils.NewRefreshToken(refreshSecret, "some-user", 24)
	rec := doRequest(t, h.Logout, "", &http.Cookie{Name: "jwt", Value: tok.Token})
	if rec.Code != http.StatusNoContent {
		t.Errorf("no device cookie: status = %d, want 204", rec.Code)
	}
}

func TestLogoutInvalidRefreshForbidden(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rec := doRequest(t, h.Logout, "", &http.Cookie{Name: "jwt", Value: "not-a-jwt"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	h, users, _, subs := newTestHandler(t)
	seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")
	_, jwtCk, devCk := login(t, h, "kim@example.com", "Abcdef12", nil)

	rec := doRequest(t, h.Logout, "", jwtCk, devCk)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	for _, name := range []string{"jwt", "device_id"} {
		ck := cookieByName(rec, name)
		if ck == nil {
			t.Fatalf("logout must reset the %s cookie", name)
		}
		if ck.Value != "" || ck.MaxAge >= 0 {
			t.Errorf("%s cookie not cleared: value=%q maxage=%d", name, ck.Value, ck.MaxAge)
		}
	}
}

// ----- session lifecycle -----

func TestTwoDevicesAreIndependent(t *testing.T) {
	h, users, sessions, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	_, jwtA, devA := login(t, h, "kim@example.com", "Abcdef12", nil)
	_, jwtB, devB := login(t, h, "kim@example.com", "Abcdef12",
		&http.Cookie{Name: "device_id", Value: "device-b"})

	if devA.Value == devB.Value {
		t.Fatal("expected two distinct device ids")
	}
	if got, _ := sessions.ListActiveForUser(context.Background(), uid); len(got) != 2 {
		t.Fatalf("active sessions = %d, want 2", len(got))
	}

	// Logging out device A leaves device B's session refreshable.
	if rec := doRequest(t, h.Logout, "", jwtA, devA); rec.Code != http.StatusOK {
		t.Fatalf("logout A status = %d", rec.Code)
	}
	if rec := doRequest(t, h.Refresh, "", jwtB, devB); rec.Code != http.StatusOK {
		t.Errorf("device B refresh status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, h.Refresh, "", jwtA, devA); rec.Code != http.StatusUnauthorized {
		t.Errorf("device A refresh status = %d, want 401", rec.Code)
	}
}

func TestSameDeviceLoginRotatesSession(t *testing.T) {
	h, users, sessions, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	_, jwtOld, devCk := login(t, h, "kim@example.com", "Abcdef12", nil)
	time.Sleep(1100 * time.Millisecond) // force a distinct refresh token
	_, jwtNew, _ := login(t, h, "kim@example.com", "Abcdef12",
		&http.Cookie{Name: "device_id", Value: devCk.Value})

	if jwtOld.Value == jwtNew.Value {
		t.Fatal("second login should rotate the refresh token")
	}
	if n := sessions.activeCount(uid, devCk.Value); n != 1 {
		t.Fatalf("active rows for device = %d, want exactly 1", n)
	}

	// The rotated-out token is permanently unusable; the new one works.
	if rec := doRequest(t, h.Refresh, "", jwtOld, devCk); rec.Code != http.StatusUnauthorized {
		t.Errorf("stale refresh status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, h.Refresh, "", jwtNew, devCk); rec.Code != http.StatusOK {
		t.Errorf("current refresh status = %d, want 200", rec.Code)
	}
}

func TestConcurrentSameDeviceLogins(t *testing.T) {
	h, users, sessions, subs := newTestHandler(t)
	uid := seedUser(t, users, subs, "kim@example.com", "kim", "Abcdef12")

	const n = 8
	e := echo.New()
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/",
				strings.NewReader(`{"email":"kim@example.com","password":"Abcdef12"}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.AddCookie(&http.Cookie{Name: "device_id", Value: "shared-device"})
			rec := httptest.NewRecorder()
			if err := h.Login(e.NewContext(req, rec)); err != nil || rec.Code != http.StatusOK {
				t.Errorf("concurrent login %d: err=%v status=%d", i, err, rec.Code)
				return
			}
			if ck := cookieByName(rec, "jwt"); ck != nil {
				tokens[i] = ck.Value
			}
		}(i)
	}
	wg.Wait()

	// Exactly one active row survives, holding one of the issued tokens.
	if got := sessions.activeCount(uid, "shared-device"); got != 1 {
		t.Fatalf("active rows = %d, want 1", got)
	}
	stored, err := sessions.ListActiveForUser(context.Background(), uid)
	if err != nil || len(stored) != 1 {
		t.Fatalf("list active: %v (%d rows)", err, len(stored))
	}
	found := false
	for _, tok := range tokens {
		if tok == stored[0].RefreshToken {
			found = true
			break
		}
	}
	if !found {
		t.Error("stored refresh token does not match any issued token")
	}
}
