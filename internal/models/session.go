package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session represents an authenticated user's session as returned by the upstream auth API
type Session struct {
	ID           string          `json:"id"`
	Token        string          `json:"-"` // Never serialize to JSON
	RefreshToken string          `json:"-"` // Never serialize to JSON
	User         json.RawMessage `json:"user"`
	ExpiresAt    time.Time       `json:"expires_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SessionState represents the current state of a session
type SessionState string

const (
	SessionStateActive  SessionState = "active"
	SessionStateExpired SessionState = "expired"
)

// Validate checks if the session fields are valid
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}

	if s.Token == "" {
		return fmt.Errorf("token is required")
	}

	if len(s.User) > 0 && !json.Valid(s.User) {
		return fmt.Errorf("user must be valid JSON")
	}

	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}

	if s.ExpiresAt.Before(time.Now()) {
		return fmt.Errorf("expires_at must be a future timestamp")
	}

	return nil
}

// State returns the current state of the session
func (s *Session) State() SessionState {
	if !time.Now().Before(s.ExpiresAt) {
		return SessionStateExpired
	}
	return SessionStateActive
}

// IsActive returns true if the session is currently active
func (s *Session) IsActive() bool {
	return s.State() == SessionStateActive
}

// IsExpired returns true if the session has expired
func (s *Session) IsExpired() bool {
	return s.State() == SessionStateExpired
}

// UserLabel picks a human-readable name out of the opaque user object.
// Falls back to the session id when the user carries none of the usual fields.
func (s *Session) UserLabel() string {
	var fields map[string]any
	if err := json.Unmarshal(s.User, &fields); err == nil {
		for _, key := range []string{"name", "username", "email"} {
			if v, ok := fields[key].(string); ok && v != "" {
				return v
			}
		}
		if id, ok := fields["id"]; ok && id != nil {
			return fmt.Sprint(id)
		}
	}
	return s.ID
}
