package domain

import "time"

// TokenRecord holds the OAuth token pair cached for a session.
// A zero ExpiresAt means the identity provider reported no lifetime;
// such a token is treated as already expired and refreshed before use.
type TokenRecord struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	IssuedAt     time.Time
}

// ExpiresWithin reports whether the record expires within the given margin.
// Records without an expiry always report true.
func (t TokenRecord) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(margin).Before(t.ExpiresAt)
}

// UserIdentity captures the identity-provider claims recorded at login.
// It is derived once at issuance and never mutated afterwards.
type UserIdentity struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
}

// SessionEntry is the server-side state held for one authenticated session.
type SessionEntry struct {
	User       UserIdentity
	Tokens     TokenRecord
	LoggedInAt time.Time
}
