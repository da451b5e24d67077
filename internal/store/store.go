package store

import (
	"context"
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// CredentialStore keeps session entries keyed by session identifier.
// Implementations must be safe for concurrent use; the broker is the only
// component that mutates token material after login.
type CredentialStore interface {
	// Put inserts or fully replaces the entry for a session.
	Put(ctx context.Context, sessionID string, entry domain.SessionEntry) error

	// Get returns the entry for a session. A false result means no such
	// session, which is a valid state rather than an error.
	Get(ctx context.Context, sessionID string) (domain.SessionEntry, bool)

	// UpdateTokens replaces the token record of an existing session.
	// Returns false when the session does not exist; a stale refresh must
	// never resurrect a removed session.
	UpdateTokens(ctx context.Context, sessionID string, tokens domain.TokenRecord) bool

	// Remove deletes a session. Removing an unknown session is a no-op.
	Remove(ctx context.Context, sessionID string)

	// EvictExpired removes sessions whose lifetime elapsed before now and
	// returns how many were evicted. Stores with native TTL may return 0.
	EvictExpired(ctx context.Context, now time.Time) int
}
