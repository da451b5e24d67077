package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps session entries in Redis, allowing the gateway to run
// with more than one replica behind a load balancer. Entries are stored as
// JSON under a session-lifetime TTL so Redis handles expiry itself.
type RedisStore struct {
	client   *redis.Client
	lifetime time.Duration
	logger   *zap.Logger
}

// NewRedisStore creates a Redis-backed credential store.
func NewRedisStore(client *redis.Client, lifetime time.Duration, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, lifetime: lifetime, logger: logger}
}

type sessionRecord struct {
	User         domain.UserIdentity `json:"user"`
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresAt    time.Time           `json:"expires_at,omitempty"`
	IssuedAt     time.Time           `json:"issued_at"`
	LoggedInAt   time.Time           `json:"logged_in_at"`
}

func toRecord(entry domain.SessionEntry) sessionRecord {
	return sessionRecord{
		User:         entry.User,
		AccessToken:  entry.Tokens.AccessToken,
		RefreshToken: entry.Tokens.RefreshToken,
		ExpiresAt:    entry.Tokens.ExpiresAt,
		IssuedAt:     entry.Tokens.IssuedAt,
		LoggedInAt:   entry.LoggedInAt,
	}
}

func (r sessionRecord) toEntry() domain.SessionEntry {
	return domain.SessionEntry{
		User: r.User,
		Tokens: domain.TokenRecord{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			ExpiresAt:    r.ExpiresAt,
			IssuedAt:     r.IssuedAt,
		},
		LoggedInAt: r.LoggedInAt,
	}
}

// Put inserts or fully replaces the entry for a session.
func (s *RedisStore) Put(ctx context.Context, sessionID string, entry domain.SessionEntry) error {
	payload, err := json.Marshal(toRecord(entry))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKeyPrefix+sessionID, payload, s.lifetime).Err()
}

// Get returns the entry for a session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (domain.SessionEntry, bool) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("redis session lookup failed", zap.Error(err))
		}
		return domain.SessionEntry{}, false
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		s.logger.Warn("corrupt session record, dropping", zap.String("session_id", sessionID), zap.Error(err))
		s.client.Del(ctx, sessionKeyPrefix+sessionID)
		return domain.SessionEntry{}, false
	}
	return record.toEntry(), true
}

// UpdateTokens replaces the token record of an existing session. The broker
// serializes refreshes per session, so read-modify-write is safe here.
func (s *RedisStore) UpdateTokens(ctx context.Context, sessionID string, tokens domain.TokenRecord) bool {
	entry, ok := s.Get(ctx, sessionID)
	if !ok {
		return false
	}
	entry.Tokens = tokens

	payload, err := json.Marshal(toRecord(entry))
	if err != nil {
		s.logger.Warn("failed to encode session record", zap.Error(err))
		return false
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, payload, redis.KeepTTL).Err(); err != nil {
		s.logger.Warn("failed to update session tokens", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes a session. Removing an unknown session is a no-op.
func (s *RedisStore) Remove(ctx context.Context, sessionID string) {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		s.logger.Warn("failed to remove session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// EvictExpired is a no-op for Redis; key TTLs handle session expiry.
func (s *RedisStore) EvictExpired(context.Context, time.Time) int {
	return 0
}
