package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionValidate(t *testing.T) {
	valid := func() *Session {
		return &Session{
			ID:        "abc",
			Token:     "t",
			User:      json.RawMessage(`{"id":1}`),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Session)
		wantErr bool
	}{
		{"valid", func(s *Session) {}, false},
		{"no user", func(s *Session) { s.User = nil }, false},
		{"missing id", func(s *Session) { s.ID = "" }, true},
		{"missing token", func(s *Session) { s.Token = "" }, true},
		{"invalid user json", func(s *Session) { s.User = json.RawMessage(`{`) }, true},
		{"zero expiry", func(s *Session) { s.ExpiresAt = time.Time{} }, true},
		{"past expiry", func(s *Session) { s.ExpiresAt = time.Now().Add(-time.Minute) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionState(t *testing.T) {
	active := &Session{ExpiresAt: time.Now().Add(time.Minute)}
	assert.True(t, active.IsActive())
	assert.False(t, active.IsExpired())

	expired := &Session{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.Equal(t, SessionStateExpired, expired.State())
	assert.True(t, expired.IsExpired())
}

func TestSessionJSONHidesTokens(t *testing.T) {
	data, err := json.Marshal(&Session{ID: "abc", Token: "secret-token", RefreshToken: "secret-refresh"})
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestUserLabel(t *testing.T) {
	tests := []struct {
		user string
		want string
	}{
		{`{"name":"Ana","email":"ana@example.com"}`, "Ana"},
		{`{"username":"ana"}`, "ana"},
		{`{"email":"ana@example.com"}`, "ana@example.com"},
		{`{"id":42}`, "42"},
		{`{"id":"u-1"}`, "u-1"},
		{`"not an object"`, "sess-1"},
		{``, "sess-1"},
	}

	for _, tt := range tests {
		s := &Session{ID: "sess-1", User: json.RawMessage(tt.user)}
		assert.Equal(t, tt.want, s.UserLabel(), "user %s", tt.user)
	}
}

func TestNotificationIsDestructive(t *testing.T) {
	assert.True(t, Notification{Variant: VariantDestructive}.IsDestructive())
	assert.False(t, Notification{Variant: VariantDefault}.IsDestructive())
	assert.False(t, Notification{}.IsDestructive())
}
