package idp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
)

// ErrAuthFailed covers any failure of the authorization-code exchange.
var ErrAuthFailed = errors.New("authorization code exchange failed")

// ErrRefreshFailed covers any failure of the refresh-token grant. Transport
// errors and rejected refresh tokens are deliberately not distinguished;
// both mean the caller has to treat the session as unauthenticated.
var ErrRefreshFailed = errors.New("token refresh failed")

// Refresher talks to the identity provider's token endpoint. It holds no
// state and never touches the credential store.
type Refresher interface {
	ExchangeCode(ctx context.Context, code string) (*domain.TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error)
}

// OAuthRefresher implements Refresher against a standard OAuth2 token
// endpoint using the authorization-code and refresh-token grants.
type OAuthRefresher struct {
	oauth  oauth2.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewOAuthRefresher builds a refresher from the gateway's OAuth settings.
// Client credentials are sent form-encoded, the style Keycloak expects for
// confidential and public clients alike.
func NewOAuthRefresher(cfg config.OAuthConfig, logger *zap.Logger) *OAuthRefresher {
	return &OAuthRefresher{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL(),
				TokenURL:  cfg.TokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// AuthCodeURL returns the identity provider authorization URL for a login
// redirect carrying the given state.
func (r *OAuthRefresher) AuthCodeURL(state string) string {
	return r.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for the initial token pair.
func (r *OAuthRefresher) ExchangeCode(ctx context.Context, code string) (*domain.TokenRecord, error) {
	token, err := r.oauth.Exchange(ctx, code)
	if err != nil {
		r.logger.Warn("code exchange failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return r.record(token), nil
}

// Refresh trades a refresh token for a new token pair via the standard
// refresh-token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*domain.TokenRecord, error) {
	// Seeding a token source with only the refresh token forces the
	// refresh grant on the first Token call.
	source := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		r.logger.Warn("token refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return r.record(token), nil
}

// record maps an oauth2 token onto the domain record. oauth2 leaves Expiry
// zero when the provider reports no positive expires_in, which downstream
// means "refresh before use".
func (r *OAuthRefresher) record(token *oauth2.Token) *domain.TokenRecord {
	return &domain.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		IssuedAt:     r.now(),
	}
}
