package store

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// MemoryStore is the default in-process credential store. A single RWMutex
// serializes mutations; nothing here touches the network or disk.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]domain.SessionEntry
	lifetime time.Duration
}

// NewMemoryStore creates an empty in-memory store. Sessions older than
// lifetime are removed by EvictExpired; a zero lifetime disables eviction.
func NewMemoryStore(lifetime time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]domain.SessionEntry),
		lifetime: lifetime,
	}
}

// Put inserts or fully replaces the entry for a session.
func (s *MemoryStore) Put(_ context.Context, sessionID string, entry domain.SessionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = entry
	return nil
}

// Get returns the entry for a session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (domain.SessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[sessionID]
	return entry, ok
}

// UpdateTokens replaces the token record of an existing session.
func (s *MemoryStore) UpdateTokens(_ context.Context, sessionID string, tokens domain.TokenRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sessionID]
	if !ok {
		return false
	}
	entry.Tokens = tokens
	s.entries[sessionID] = entry
	return true
}

// Remove deletes a session. Removing an unknown session is a no-op.
func (s *MemoryStore) Remove(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// EvictExpired removes sessions that outlived the configured lifetime.
func (s *MemoryStore) EvictExpired(_ context.Context, now time.Time) int {
	if s.lifetime <= 0 {
		return 0
	}
	cutoff := now.Add(-s.lifetime)

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, entry := range s.entries {
		if entry.LoggedInAt.Before(cutoff) {
			delete(s.entries, id)
			count++
		}
	}
	return count
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
