package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/service"
)

// ProxyHandler forwards arbitrary API calls to the configured backend,
// attaching a bearer token when the broker can supply one. It contains no
// refresh logic of its own; the broker is its single credential source.
type ProxyHandler struct {
	broker  *service.TokenBroker
	base    string
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewProxyHandler constructs handler. baseURL is the backend API root.
func NewProxyHandler(broker *service.TokenBroker, baseURL string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *ProxyHandler {
	return &ProxyHandler{
		broker:  broker,
		base:    strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Forward handles ALL /api/proxy/* requests.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	target := h.base + "/" + strings.TrimLeft(c.Params("*"), "/")
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}

	// The session cookie and any caller-supplied Authorization header stop
	// here; the backend only ever sees credentials the broker issued.
	c.Request().Header.Del(fiber.HeaderCookie)
	c.Request().Header.Del(fiber.HeaderAuthorization)

	if sessionID, ok := auth.SessionIDFromContext(c); ok {
		if token, ok := h.broker.ValidAccessToken(c.UserContext(), sessionID); ok {
			c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
		// No token is not an error here: the request goes upstream
		// uncredentialed and the backend enforces its own access control.
	}

	if len(c.Body()) > 0 && len(c.Request().Header.ContentType()) == 0 {
		c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
	}

	if err := proxy.DoTimeout(c, target, h.timeout); err != nil {
		h.metrics.RecordError(c.Path(), c.Method(), "BACKEND_UNREACHABLE")
		h.logger.Warn("backend unreachable", zap.String("target", target), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "backend request failed"})
	}

	// Success and backend-reported failures alike relay verbatim.
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
