package models

import "encoding/json"

// Credentials is the body posted to the upstream login endpoint
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the upstream reply. Success bodies carry the token triple,
// failure bodies may carry a message. User is passed through untouched.
type LoginResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
	Message      string          `json:"message,omitempty"`
}
