package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUsers struct {
	mu     sync.Mutex
	users  map[string]*AdminUser
	logins int
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*AdminUser{}}
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Create(_ context.Context, user *AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrUserExists
		}
	}
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) TouchLogin(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins++
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func (m *memSessions) Store(_ context.Context, id string, data map[string]string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return d, nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memSessions) Extend(context.Context, string, time.Duration) error { return nil }

type memThrottle struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *memThrottle) Attempts(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[strings.ToLower(key)], nil
}

func (m *memThrottle) Fail(_ context.Context, key string, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[strings.ToLower(key)]++
	return m.counts[strings.ToLower(key)], nil
}

func (m *memThrottle) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, strings.ToLower(key))
	return nil
}

type testAuth struct {
	users    *memUsers
	sessions *memSessions
	service  *Service
	jwt      *JWTService
}

func newTestAuth(t *testing.T) *testAuth {
	t.Helper()
	ta := &testAuth{
		users:    newMemUsers(),
		sessions: &memSessions{data: map[string]map[string]string{}},
		jwt:      NewJWTService("test-secret", 15*time.Minute, 7*24*time.Hour),
	}
	throttle := &memThrottle{counts: map[string]int{}}
	ta.service = NewService(ta.users, ta.sessions, throttle, ta.jwt, zap.NewNop(), ServiceOptions{
		AdminEmail:  "owner@altessa.com",
		MaxAttempts: 3,
		Window:      time.Minute,
	})

	_, err := ta.service.CreateAdmin(context.Background(), " Admin@Altessa.com ", "correct-horse", "Admin")
	require.NoError(t, err)
	return ta
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name   string
		claims *Claims
		admin  string
		want   bool
	}{
		{"nil claims", nil, "a@b.co", false},
		{"admin role", &Claims{Role: RoleAdmin}, "", true},
		{"configured email", &Claims{Role: "editor", Email: "Owner@Altessa.com"}, " owner@altessa.com", true},
		{"other email", &Claims{Role: "editor", Email: "x@altessa.com"}, "owner@altessa.com", false},
		{"no admin email configured", &Claims{Role: "editor", Email: ""}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAdmin(tt.claims, tt.admin))
		})
	}
}

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWTService("secret", time.Minute, time.Hour)
	user := &AdminUser{ID: "u1", Email: "a@altessa.com", Role: RoleAdmin}

	access, refresh, err := j.GenerateTokenPair(user)
	require.NoError(t, err)

	claims, err := j.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@altessa.com", claims.Email)
	assert.Equal(t, TokenAccess, claims.Type)

	_, _, err = j.RefreshAccessToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken, "access tokens cannot refresh")

	newAccess, rc, err := j.RefreshAccessToken(refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, rc.ID)
	assert.NotEmpty(t, newAccess)

	_, err = NewJWTService("other", time.Minute, time.Hour).ValidateToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	j := NewJWTService("secret", -time.Minute, time.Hour)
	access, _, err := j.GenerateTokenPair(&AdminUser{ID: "u1"})
	require.NoError(t, err)

	_, err = j.ValidateToken(access)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestCreateAdminValidation(t *testing.T) {
	users := newMemUsers()
	ctx := context.Background()

	_, err := CreateAdmin(ctx, users, "not-an-email", "long-enough", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = CreateAdmin(ctx, users, "a@altessa.com", "short", "")
	assert.ErrorIs(t, err, ErrWeakPassword)

	user, err := CreateAdmin(ctx, users, "a@altessa.com", "long-enough", " Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, RoleAdmin, user.Role)
	assert.NotEqual(t, "long-enough", user.PasswordHash)

	_, err = CreateAdmin(ctx, users, "A@altessa.com", "long-enough", "")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginRefreshLogout(t *testing.T) {
	ta := newTestAuth(t)
	ctx := context.Background()

	pair, user, err := ta.service.Login(ctx, "admin@altessa.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "admin@altessa.com", user.Email)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Len(t, ta.sessions.data, 1)
	assert.Equal(t, 1, ta.users.logins)

	refreshed, err := ta.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	require.NoError(t, ta.service.Logout(ctx, pair.RefreshToken))
	assert.Empty(t, ta.sessions.data)

	_, err = ta.service.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, ta.service.Logout(ctx, "garbage"))
}

func TestLoginThrottle(t *testing.T) {
	ta := newTestAuth(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := ta.service.Login(ctx, "admin@altessa.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, _, err := ta.service.Login(ctx, "ADMIN@altessa.com", "correct-horse")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	_, _, err = ta.service.Login(ctx, "nobody@altessa.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown users look like wrong passwords")
}

func newTestApp(ta *testAuth) *fiber.App {
	h := NewAuthHandler(ta.service, zap.NewNop())
	app := fiber.New()
	app.Post("/auth/login", h.Login)
	app.Post("/auth/refresh", h.RefreshToken)
	app.Post("/auth/logout", h.Logout)
	app.Get("/auth/me", AuthMiddleware(ta.jwt), h.Me)

	admin := app.Group("/admin", AuthMiddleware(ta.jwt), RequireAdmin("owner@altessa.com"))
	admin.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	return app
}

func send(t *testing.T, app *fiber.App, method, target, body, token string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestHandlersFlow(t *testing.T) {
	ta := newTestAuth(t)
	app := newTestApp(ta)

	status, _ := send(t, app, http.MethodPost, "/auth/login", `{"email":"admin@altessa.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = send(t, app, http.MethodPost, "/auth/login", `{"email":"admin@altessa.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := send(t, app, http.MethodPost, "/auth/login", `{"email":"admin@altessa.com","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, status)
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	status, body = send(t, app, http.MethodGet, "/auth/me", "", access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_admin"])
	assert.Equal(t, "admin@altessa.com", body["user"].(map[string]interface{})["email"])

	status, _ = send(t, app, http.MethodGet, "/admin/ping", "", access)
	assert.Equal(t, http.StatusOK, status)

	status, _ = send(t, app, http.MethodGet, "/admin/ping", "", refresh)
	assert.Equal(t, http.StatusUnauthorized, status, "refresh tokens are not access tokens")

	status, _ = send(t, app, http.MethodGet, "/admin/ping", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = send(t, app, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access_token"])

	status, _ = send(t, app, http.MethodPost, "/auth/logout", `{"refresh_token":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = send(t, app, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireAdminForbidsNonAdmins(t *testing.T) {
	ta := newTestAuth(t)
	app := newTestApp(ta)

	access, _, err := ta.jwt.GenerateTokenPair(&AdminUser{ID: "u2", Email: "editor@altessa.com", Role: "editor"})
	require.NoError(t, err)
	status, _ := send(t, app, http.MethodGet, "/admin/ping", "", access)
	assert.Equal(t, http.StatusForbidden, status)

	access, _, err = ta.jwt.GenerateTokenPair(&AdminUser{ID: "u3", Email: "Owner@altessa.com", Role: "editor"})
	require.NoError(t, err)
	status, _ = send(t, app, http.MethodGet, "/admin/ping", "", access)
	assert.Equal(t, http.StatusOK, status, "the configured admin email is always an admin")
}
