package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/store"
)

var errSessionGone = errors.New("session removed during refresh")

// TokenBroker hands out currently-valid access tokens for sessions,
// refreshing through the identity provider when the cached token is expired
// or expiring within the configured skew. It is the single writer of token
// material in the credential store after login.
type TokenBroker struct {
	store      store.CredentialStore
	refresher  idp.Refresher
	skew       time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	// group deduplicates concurrent refreshes per session identifier.
	// Identity providers rotate refresh tokens on use, so a second
	// in-flight refresh for the same session would log everyone out.
	group singleflight.Group

	now func() time.Time
}

// BrokerDependencies encapsulates collaborator requirements for the broker.
type BrokerDependencies struct {
	Store      store.CredentialStore
	Refresher  idp.Refresher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewTokenBroker builds the broker with the given expiry skew.
func NewTokenBroker(skew time.Duration, deps BrokerDependencies) *TokenBroker {
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &TokenBroker{
		store:      deps.Store,
		refresher:  deps.Refresher,
		skew:       skew,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// ValidAccessToken returns an access token usable against the backend for
// the given session, refreshing it first if needed. A false result means
// "no usable credentials": unknown session, unrecoverable token state, or a
// failed refresh. The caller forwards without credentials in that case and
// leaves the 401 decision to the backend.
func (b *TokenBroker) ValidAccessToken(ctx context.Context, sessionID string) (string, bool) {
	entry, ok := b.store.Get(ctx, sessionID)
	if !ok {
		return "", false
	}

	if entry.Tokens.AccessToken != "" && !entry.Tokens.ExpiresWithin(b.skew, b.now()) {
		return entry.Tokens.AccessToken, true
	}

	if entry.Tokens.RefreshToken == "" {
		// Unrecoverable: a session without a refresh token cannot be kept
		// half-alive. Evict it so the next request starts a clean login.
		b.store.Remove(ctx, sessionID)
		b.publish(ctx, events.EventSessionEvicted, sessionID, entry.User.SubjectID,
			events.SessionEvictedPayload{Reason: "missing refresh token"})
		return "", false
	}

	token, err, _ := b.group.Do(sessionID, func() (interface{}, error) {
		return b.refresh(ctx, sessionID)
	})
	if err != nil {
		return "", false
	}
	return token.(string), true
}

// refresh runs inside the singleflight group; concurrent callers for the
// same session wait here and share the result.
func (b *TokenBroker) refresh(ctx context.Context, sessionID string) (string, error) {
	// Re-read under the flight: an earlier flight may already have
	// refreshed, or the session may have been logged out meanwhile.
	entry, ok := b.store.Get(ctx, sessionID)
	if !ok {
		return "", errSessionGone
	}
	if entry.Tokens.AccessToken != "" && !entry.Tokens.ExpiresWithin(b.skew, b.now()) {
		return entry.Tokens.AccessToken, nil
	}
	if entry.Tokens.RefreshToken == "" {
		return "", idp.ErrRefreshFailed
	}

	// The refresh outlives the inbound request: waiters on this flight
	// still need the result if the first caller disconnects.
	refreshCtx := context.WithoutCancel(ctx)

	tokens, err := b.refresher.Refresh(refreshCtx, entry.Tokens.RefreshToken)
	if err != nil {
		b.metrics.RecordRefresh("failed")
		b.logger.Warn("token refresh failed", zap.String("session_id", sessionID), zap.Error(err))
		b.publish(refreshCtx, events.EventTokenRefreshFailed, sessionID, entry.User.SubjectID,
			events.RefreshFailedPayload{Reason: err.Error()})
		// The session stays; forcing a logout is the web layer's call.
		return "", err
	}

	if !b.store.UpdateTokens(refreshCtx, sessionID, *tokens) {
		// Logged out while the refresh was in flight. Do not resurrect.
		return "", errSessionGone
	}

	b.metrics.RecordRefresh("ok")
	b.publish(refreshCtx, events.EventTokenRefreshed, sessionID, entry.User.SubjectID,
		events.TokenRefreshedPayload{ExpiresAt: tokens.ExpiresAt})
	return tokens.AccessToken, nil
}

func (b *TokenBroker) publish(ctx context.Context, eventType events.EventType, sessionID, subject string, payload interface{}) {
	if b.dispatcher == nil {
		return
	}
	_ = b.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Subject:   subject,
		Timestamp: b.now(),
		Payload:   payload,
	})
}

// Skew returns the freshness margin applied to expiry checks.
func (b *TokenBroker) Skew() time.Duration {
	return b.skew
}
