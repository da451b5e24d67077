package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/events"
)

// AuditService records auth lifecycle events for operators. Session
// identifiers are never logged in full; only a short prefix survives.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to auth events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventUserLoggedIn, a.handleEvent)
	a.dispatcher.Subscribe(events.EventUserLoggedOut, a.handleEvent)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleEvent)
	a.dispatcher.Subscribe(events.EventTokenRefreshFailed, a.handleEvent)
	a.dispatcher.Subscribe(events.EventSessionEvicted, a.handleEvent)
}

func (a *AuditService) handleEvent(ctx context.Context, event events.Event) error {
	a.logger.Info("auth event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("session", redactSessionID(event.SessionID)),
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	a.sendWebhookStub(ctx, event)
	return nil
}

func (a *AuditService) sendWebhookStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)))
}

func redactSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8] + "..."
}
