package middleware

import (
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog/hlog"
)

// CSRFProtection creates a CSRF protection middleware using gorilla/csrf.
// When secure is false the request is marked as plaintext HTTP so the
// Origin/Referer scheme checks don't reject local development traffic.
func CSRFProtection(secret []byte, secure bool, fieldName string) func(http.Handler) http.Handler {
	if fieldName == "" {
		fieldName = "csrf_token"
	}

	csrfMiddleware := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.FieldName(fieldName),
		csrf.RequestHeader("X-CSRF-Token"), // For HTMX requests
		csrf.ErrorHandler(http.HandlerFunc(CSRFFailureHandler)),
	)

	return func(next http.Handler) http.Handler {
		protected := csrfMiddleware(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// CSRFExpiredMessage is shown to htmx requests that fail the CSRF check
const CSRFExpiredMessage = "Sua sessão expirou. Recarregue a página e tente novamente."

// CSRFFailureHandler provides HTMX-aware error handling for CSRF failures
func CSRFFailureHandler(w http.ResponseWriter, r *http.Request) {
	hlog.FromRequest(r).Warn().Err(csrf.FailureReason(r)).Msg("csrf validation failed")

	if IsHTMX(r) {
		writeHTMXToast(w, r, http.StatusForbidden, CSRFExpiredMessage)
		return
	}

	http.Error(w, "CSRF token validation failed. Please refresh the page and try again.", http.StatusForbidden)
}
