package middleware

import (
	"net/http"

	"github.com/shindakun/loginportal/internal/auth"
)

// RequireAuth is a middleware that requires authentication
// Redirects to loginPath if no valid session is found
func RequireAuth(sessionManager *auth.SessionManager, loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessionManager.GetSession(r)
			if err != nil || session == nil {
				// HTMX follows HX-Redirect client-side, a 303 would only swap the login page into the target
				if IsHTMX(r) {
					w.Header().Set("HX-Redirect", loginPath)
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}

			ctx := auth.SetSessionInContext(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsHTMX reports whether the request was issued by htmx
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
