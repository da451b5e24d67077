package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/idp"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/store"
)

type stubRefresher struct {
	mu     sync.Mutex
	calls  int
	delay  time.Duration
	result domain.TokenRecord
	err    error
}

func (s *stubRefresher) ExchangeCode(context.Context, string) (*domain.TokenRecord, error) {
	return nil, errors.New("not used")
}

func (s *stubRefresher) Refresh(_ context.Context, refreshToken string) (*domain.TokenRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	record := s.result
	return &record, nil
}

func (s *stubRefresher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newBroker(t *testing.T, refresher idp.Refresher) (*TokenBroker, *store.MemoryStore) {
	t.Helper()
	credStore := store.NewMemoryStore(time.Hour)
	broker := NewTokenBroker(30*time.Second, BrokerDependencies{
		Store:     credStore,
		Refresher: refresher,
		Logger:    zap.NewNop(),
		Metrics:   observability.NewMetrics(),
	})
	return broker, credStore
}

func seedSession(t *testing.T, credStore *store.MemoryStore, sessionID string, tokens domain.TokenRecord) {
	t.Helper()
	entry := domain.SessionEntry{
		User:       domain.UserIdentity{SubjectID: "subject-1", Username: "testuser"},
		Tokens:     tokens,
		LoggedInAt: time.Now(),
	}
	require.NoError(t, credStore.Put(context.Background(), sessionID, entry))
}

func TestValidAccessTokenFreshTokenSkipsRefresher(t *testing.T) {
	refresher := &stubRefresher{}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	token, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "A1", token)
	assert.Equal(t, 0, refresher.callCount())
}

func TestValidAccessTokenUnknownSession(t *testing.T) {
	refresher := &stubRefresher{}
	broker, _ := newBroker(t, refresher)

	_, ok := broker.ValidAccessToken(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, 0, refresher.callCount())
}

func TestValidAccessTokenExpiredTokenRefreshesAndStores(t *testing.T) {
	refresher := &stubRefresher{result: domain.TokenRecord{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    time.Now().Add(time.Hour),
		IssuedAt:     time.Now(),
	}}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Second),
	})

	token, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refresher.callCount())

	entry, found := credStore.Get(context.Background(), "s1")
	require.True(t, found)
	assert.Equal(t, "A2", entry.Tokens.AccessToken)
	assert.Equal(t, "R2", entry.Tokens.RefreshToken)
}

func TestValidAccessTokenZeroExpiryForcesRefresh(t *testing.T) {
	refresher := &stubRefresher{result: domain.TokenRecord{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
	})

	token, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refresher.callCount())
}

func TestValidAccessTokenExpiringWithinSkewRefreshes(t *testing.T) {
	refresher := &stubRefresher{result: domain.TokenRecord{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(10 * time.Second), // inside the 30s skew
	})

	token, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refresher.callCount())
}

func TestValidAccessTokenConcurrentCallersShareOneRefresh(t *testing.T) {
	refresher := &stubRefresher{
		delay: 100 * time.Millisecond,
		result: domain.TokenRecord{
			AccessToken:  "A2",
			RefreshToken: "R2",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Second),
	})

	const callers = 10
	tokens := make([]string, callers)
	oks := make([]bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], oks[i] = broker.ValidAccessToken(context.Background(), "s1")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.callCount())
	for i := 0; i < callers; i++ {
		assert.True(t, oks[i])
		assert.Equal(t, "A2", tokens[i])
	}
}

func TestValidAccessTokenMissingRefreshTokenEvicts(t *testing.T) {
	refresher := &stubRefresher{}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s2", domain.TokenRecord{
		AccessToken: "A1",
		// No refresh token: unrecoverable.
	})

	_, ok := broker.ValidAccessToken(context.Background(), "s2")
	assert.False(t, ok)
	assert.Equal(t, 0, refresher.callCount())

	_, found := credStore.Get(context.Background(), "s2")
	assert.False(t, found)
}

func TestValidAccessTokenRefreshFailureKeepsSession(t *testing.T) {
	refresher := &stubRefresher{err: idp.ErrRefreshFailed}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Second),
	})

	_, ok := broker.ValidAccessToken(context.Background(), "s1")
	assert.False(t, ok)
	assert.Equal(t, 1, refresher.callCount())

	// The broker does not force a logout on refresh failure.
	entry, found := credStore.Get(context.Background(), "s1")
	require.True(t, found)
	assert.Equal(t, "A1", entry.Tokens.AccessToken)
}

func TestValidAccessTokenLogoutDuringRefreshDoesNotResurrect(t *testing.T) {
	refresher := &stubRefresher{
		delay: 100 * time.Millisecond,
		result: domain.TokenRecord{
			AccessToken:  "A2",
			RefreshToken: "R2",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Second),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		broker.ValidAccessToken(context.Background(), "s1")
	}()

	// Log out while the refresh is in flight.
	time.Sleep(30 * time.Millisecond)
	credStore.Remove(context.Background(), "s1")
	<-done

	_, found := credStore.Get(context.Background(), "s1")
	assert.False(t, found)
}

func TestValidAccessTokenSecondCallUsesRefreshedToken(t *testing.T) {
	refresher := &stubRefresher{result: domain.TokenRecord{
		AccessToken:  "A2",
		RefreshToken: "R2",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	broker, credStore := newBroker(t, refresher)
	seedSession(t, credStore, "s1", domain.TokenRecord{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Second),
	})

	_, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)

	token, ok := broker.ValidAccessToken(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refresher.callCount())
}
