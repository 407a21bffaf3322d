package authclient

import (
	"errors"
	"fmt"
)

// FallbackMessage is shown whenever no better description of a failure exists
const FallbackMessage = "Falha ao realizar login"

// Kind tags the cause of a failed login call
type Kind int

const (
	// KindTransport: the request never produced a response
	KindTransport Kind = iota + 1
	// KindStatus: the upstream answered with a non-2xx status
	KindStatus
	// KindDecode: the response body was not valid JSON
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a failed login call
type Error struct {
	Kind       Kind
	StatusCode int    // zero for transport failures
	Message    string // upstream "message" field, status failures only
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		if e.Message != "" {
			return fmt.Sprintf("login rejected with status %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("login rejected with status %d", e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("invalid login response (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("login request failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text safe to show in a notification.
// Only the upstream's own message is surfaced; everything else collapses to FallbackMessage.
func (e *Error) UserMessage() string {
	if e.Kind == KindStatus && e.Message != "" {
		return e.Message
	}
	return FallbackMessage
}

// KindOf returns the Kind of err, or 0 when err is not an *Error
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}
