package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/service"
	"github.com/spec-kit/auth-gateway/internal/store"
)

// fakeIdP serves the token endpoint with an unsigned JWT access token so
// the callback can derive an identity from its claims.
func fakeIdP(t *testing.T) *httptest.Server {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":                "subject-1",
		"email":              "user@example.com",
		"name":               "Test User",
		"preferred_username": "testuser",
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": "R1",
			"token_type":    "Bearer",
			"expires_in":    300,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newAuthApp(t *testing.T, env string) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	idpServer := fakeIdP(t)
	oauthCfg := config.OAuthConfig{
		ServerURL:   idpServer.URL,
		Realm:       "test",
		ClientID:    "gateway",
		RedirectURL: "http://localhost:8080/auth/callback",
		Scopes:      []string{"openid"},
	}
	sessionCfg := config.SessionConfig{CookieName: "s", LifetimeMinutes: 60}

	credStore := store.NewMemoryStore(time.Hour)
	refresher := idp.NewOAuthRefresher(oauthCfg, zap.NewNop())
	sessions := service.NewSessionService(service.SessionDependencies{
		Store:     credStore,
		Refresher: refresher,
		Logger:    zap.NewNop(),
	})
	sessionMiddleware := auth.NewSessionMiddleware(sessionCfg)
	handler := NewAuthHandler(sessions, refresher, sessionMiddleware, env, zap.NewNop())

	app := fiber.New()
	app.Use(sessionMiddleware.Handle)
	app.Get("/auth/login", handler.Login)
	app.Get("/auth/callback", handler.Callback)
	app.Get("/auth/logout", handler.Logout)
	app.Post("/auth/logout", handler.Logout)
	app.Get("/auth/session", handler.Session)
	app.Get("/auth/debug/session", handler.DebugSession)
	return app, credStore
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestLoginRedirectsToIdentityProvider(t *testing.T) {
	app, _ := newAuthApp(t, "development")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/login", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Contains(t, location.Path, "/realms/test/protocol/openid-connect/auth")
	assert.Equal(t, "gateway", location.Query().Get("client_id"))

	state := cookieValue(resp, "auth_state")
	require.NotEmpty(t, state)
	assert.Equal(t, state, location.Query().Get("state"))
}

func TestCallbackEstablishesSession(t *testing.T) {
	app, credStore := newAuthApp(t, "development")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: "auth_state", Value: "st-1"})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	sessionID := cookieValue(resp, "s")
	require.NotEmpty(t, sessionID)

	entry, ok := credStore.Get(req.Context(), sessionID)
	require.True(t, ok)
	assert.Equal(t, "subject-1", entry.User.SubjectID)
	assert.Equal(t, "testuser", entry.User.Username)
	assert.Equal(t, "R1", entry.Tokens.RefreshToken)
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	app, _ := newAuthApp(t, "development")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state=evil", nil)
	req.AddCookie(&http.Cookie{Name: "auth_state", Value: "st-1"})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/?error=invalid_state", resp.Header.Get("Location"))
	assert.Empty(t, cookieValue(resp, "s"))
}

func TestCallbackWithoutCode(t *testing.T) {
	app, _ := newAuthApp(t, "development")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/callback", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/?error=no_code", resp.Header.Get("Location"))
}

func TestSessionEndpoint(t *testing.T) {
	app, credStore := newAuthApp(t, "development")

	// Establish a session through the callback first.
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: "auth_state", Value: "st-1"})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()
	sessionID := cookieValue(resp, "s")
	require.NotEmpty(t, sessionID)

	sessionReq := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sessionReq.AddCookie(&http.Cookie{Name: "s", Value: sessionID})
	sessionResp, err := app.Test(sessionReq, 5000)
	require.NoError(t, err)
	defer sessionResp.Body.Close()

	require.Equal(t, http.StatusOK, sessionResp.StatusCode)
	body, _ := io.ReadAll(sessionResp.Body)
	var payload struct {
		Data struct {
			Authenticated bool `json:"authenticated"`
			User          struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.True(t, payload.Data.Authenticated)
	assert.Equal(t, "subject-1", payload.Data.User.ID)
	assert.Equal(t, "testuser", payload.Data.User.Username)

	_, ok := credStore.Get(sessionReq.Context(), sessionID)
	assert.True(t, ok)
}

func TestSessionEndpointUnauthenticated(t *testing.T) {
	app, _ := newAuthApp(t, "development")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/session", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"data":{"authenticated":false}}`, string(body))
}

func TestLogoutRemovesSession(t *testing.T) {
	app, credStore := newAuthApp(t, "development")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=the-code&state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: "auth_state", Value: "st-1"})
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()
	sessionID := cookieValue(resp, "s")

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: "s", Value: sessionID})
	logoutResp, err := app.Test(logoutReq, 5000)
	require.NoError(t, err)
	defer logoutResp.Body.Close()

	require.Equal(t, http.StatusOK, logoutResp.StatusCode)
	_, ok := credStore.Get(logoutReq.Context(), sessionID)
	assert.False(t, ok)
}

func TestDebugSessionHiddenOutsideDevelopment(t *testing.T) {
	app, _ := newAuthApp(t, "production")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/debug/session", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
