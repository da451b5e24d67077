package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/store"
)

// SessionService coordinates login and logout flows: it owns the creation
// and destruction of session entries, while the broker owns their token
// material afterwards.
type SessionService struct {
	store      store.CredentialStore
	refresher  idp.Refresher
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// SessionDependencies encapsulates collaborator requirements.
type SessionDependencies struct {
	Store      store.CredentialStore
	Refresher  idp.Refresher
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewSessionService builds the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	return &SessionService{
		store:      deps.Store,
		refresher:  deps.Refresher,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Login exchanges an authorization code, derives the user identity from the
// issued access token, and stores the new session entry. Returns the fresh
// session identifier.
func (s *SessionService) Login(ctx context.Context, code string) (string, *domain.SessionEntry, error) {
	tokens, err := s.refresher.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, err
	}

	identity, err := idp.IdentityFromAccessToken(tokens.AccessToken)
	if err != nil {
		return "", nil, err
	}

	sessionID, err := auth.NewSessionID()
	if err != nil {
		return "", nil, err
	}

	entry := domain.SessionEntry{
		User:       identity,
		Tokens:     *tokens,
		LoggedInAt: s.now(),
	}
	if err := s.store.Put(ctx, sessionID, entry); err != nil {
		return "", nil, err
	}

	s.logger.Info("session created",
		zap.String("subject", identity.SubjectID),
		zap.String("username", identity.Username))
	s.publish(ctx, events.EventUserLoggedIn, sessionID, identity.SubjectID,
		events.LoggedInPayload{Email: identity.Email, Username: identity.Username})

	return sessionID, &entry, nil
}

// Logout removes the session entry. Unknown sessions are a no-op.
func (s *SessionService) Logout(ctx context.Context, sessionID string) {
	entry, ok := s.store.Get(ctx, sessionID)
	s.store.Remove(ctx, sessionID)
	if !ok {
		return
	}
	s.logger.Info("session removed", zap.String("subject", entry.User.SubjectID))
	s.publish(ctx, events.EventUserLoggedOut, sessionID, entry.User.SubjectID, nil)
}

// Current returns the session entry for the identifier, if any.
func (s *SessionService) Current(ctx context.Context, sessionID string) (domain.SessionEntry, bool) {
	return s.store.Get(ctx, sessionID)
}

func (s *SessionService) publish(ctx context.Context, eventType events.EventType, sessionID, subject string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Subject:   subject,
		Timestamp: s.now(),
		Payload:   payload,
	})
}
