package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserLoggedIn       EventType = "user_logged_in"
	EventUserLoggedOut      EventType = "user_logged_out"
	EventTokenRefreshed     EventType = "token_refreshed"
	EventTokenRefreshFailed EventType = "token_refresh_failed"
	EventSessionEvicted     EventType = "session_evicted"
)

// Event represents an auth lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoggedInPayload payload.
type LoggedInPayload struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// TokenRefreshedPayload payload.
type TokenRefreshedPayload struct {
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// RefreshFailedPayload payload.
type RefreshFailedPayload struct {
	Reason string `json:"reason"`
}

// SessionEvictedPayload payload.
type SessionEvictedPayload struct {
	Reason string `json:"reason"`
}
