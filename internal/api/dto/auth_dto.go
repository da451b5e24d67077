package dto

import "time"

// UserResponse is the identity shape returned to the UI.
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// SessionResponse describes the caller's session state.
type SessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user,omitempty"`
	LoggedInAt    *time.Time    `json:"logged_in_at,omitempty"`
}

// DebugSessionResponse exposes token lifecycle details in development.
type DebugSessionResponse struct {
	Authenticated    bool          `json:"authenticated"`
	User             *UserResponse `json:"user,omitempty"`
	HasAccessToken   bool          `json:"has_access_token"`
	HasRefreshToken  bool          `json:"has_refresh_token"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	ExpiresInSeconds *int64        `json:"expires_in_seconds,omitempty"`
}
