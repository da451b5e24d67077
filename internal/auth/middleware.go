package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/config"
)

const sessionIDKey = "session_id"

// stateCookieName carries the OAuth state between login redirect and callback.
const stateCookieName = "auth_state"

// SessionMiddleware resolves the caller's session identifier from the
// session cookie. It only resolves, never enforces: requests without a
// session continue unauthenticated and downstream layers decide what that
// means. The cookie value is treated as an opaque, already-issued
// identifier; whether an entry exists for it is the store's business.
type SessionMiddleware struct {
	cfg config.SessionConfig
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(cfg config.SessionConfig) *SessionMiddleware {
	return &SessionMiddleware{cfg: cfg}
}

// Handle extracts the session identifier into request locals.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	if sessionID := c.Cookies(m.cfg.CookieName); sessionID != "" {
		c.Locals(sessionIDKey, sessionID)
	}
	return c.Next()
}

// SessionIDFromContext retrieves the resolved session identifier.
func SessionIDFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(sessionIDKey)
	if val == nil {
		return "", false
	}
	sessionID, ok := val.(string)
	return sessionID, ok && sessionID != ""
}

// SetSessionCookie issues the session cookie after a successful login.
func (m *SessionMiddleware) SetSessionCookie(c *fiber.Ctx, sessionID string) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(m.cfg.Lifetime().Seconds()),
		Secure:   m.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie at logout.
func (m *SessionMiddleware) ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		Secure:   m.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SetStateCookie stores the OAuth state for the duration of the login flow.
func (m *SessionMiddleware) SetStateCookie(c *fiber.Ctx, state string) {
	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   300,
		Secure:   m.cfg.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ConsumeStateCookie reads and clears the OAuth state cookie.
func (m *SessionMiddleware) ConsumeStateCookie(c *fiber.Ctx) string {
	state := c.Cookies(stateCookieName)
	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return state
}
