package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/api/dto"
	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/service"
)

// AuthHandler exposes the login/logout/session endpoints around the broker.
type AuthHandler struct {
	sessions  *service.SessionService
	refresher *idp.OAuthRefresher
	cookies   *auth.SessionMiddleware
	env       string
	logger    *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *service.SessionService, refresher *idp.OAuthRefresher, cookies *auth.SessionMiddleware, env string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, refresher: refresher, cookies: cookies, env: env, logger: logger}
}

// Login handles GET /auth/login: redirect to the identity provider.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := auth.NewStateToken()
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "failed to start login")
	}
	h.cookies.SetStateCookie(c, state)
	return c.Redirect(h.refresher.AuthCodeURL(state), http.StatusFound)
}

// Callback handles GET /auth/callback: exchange the authorization code and
// establish the session.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Redirect("/?error=no_code", http.StatusFound)
	}

	state := c.Query("state")
	if expected := h.cookies.ConsumeStateCookie(c); expected == "" || state != expected {
		h.logger.Warn("state mismatch on callback")
		return c.Redirect("/?error=invalid_state", http.StatusFound)
	}

	sessionID, _, err := h.sessions.Login(c.UserContext(), code)
	if err != nil {
		h.logger.Warn("login failed", zap.Error(err))
		return c.Redirect("/?error=auth_failed", http.StatusFound)
	}

	h.cookies.SetSessionCookie(c, sessionID)
	return c.Redirect("/", http.StatusFound)
}

// Logout handles GET and POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sessionID, ok := auth.SessionIDFromContext(c); ok {
		h.sessions.Logout(c.UserContext(), sessionID)
	}
	h.cookies.ClearSessionCookie(c)

	if c.Method() == fiber.MethodGet {
		return c.Redirect("/", http.StatusFound)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": fiber.Map{"logged_out": true}})
}

// Session handles GET /auth/session: the caller's identity, if any.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	entry, ok := h.currentEntry(c)
	if !ok {
		return c.JSON(fiber.Map{"data": dto.SessionResponse{Authenticated: false}})
	}
	loggedInAt := entry.LoggedInAt
	return c.JSON(fiber.Map{"data": dto.SessionResponse{
		Authenticated: true,
		User:          userResponse(entry.User),
		LoggedInAt:    &loggedInAt,
	}})
}

// DebugSession handles GET /auth/debug/session, development env only.
func (h *AuthHandler) DebugSession(c *fiber.Ctx) error {
	if h.env != "development" {
		return fiber.NewError(http.StatusNotFound, "not found")
	}

	entry, ok := h.currentEntry(c)
	if !ok {
		return c.JSON(fiber.Map{"data": dto.DebugSessionResponse{Authenticated: false}})
	}

	resp := dto.DebugSessionResponse{
		Authenticated:   true,
		User:            userResponse(entry.User),
		HasAccessToken:  entry.Tokens.AccessToken != "",
		HasRefreshToken: entry.Tokens.RefreshToken != "",
	}
	if !entry.Tokens.ExpiresAt.IsZero() {
		expiresAt := entry.Tokens.ExpiresAt
		seconds := int64(time.Until(expiresAt).Seconds())
		resp.ExpiresAt = &expiresAt
		resp.ExpiresInSeconds = &seconds
	}
	return c.JSON(fiber.Map{"data": resp})
}

func (h *AuthHandler) currentEntry(c *fiber.Ctx) (domain.SessionEntry, bool) {
	sessionID, ok := auth.SessionIDFromContext(c)
	if !ok {
		return domain.SessionEntry{}, false
	}
	return h.sessions.Current(c.UserContext(), sessionID)
}

func userResponse(user domain.UserIdentity) *dto.UserResponse {
	return &dto.UserResponse{
		ID:       user.SubjectID,
		Email:    user.Email,
		Name:     user.DisplayName,
		Username: user.Username,
	}
}
