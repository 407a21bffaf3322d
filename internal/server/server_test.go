package server

import (
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shindakun/loginportal/internal/auth"
	"github.com/shindakun/loginportal/internal/authclient"
	"github.com/shindakun/loginportal/internal/config"
	"github.com/shindakun/loginportal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"t","refreshToken":"r","user":{"id":1}}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Session.Secret = "test-secret-key-32-bytes-long!!!"
	cfg.Session.DBPath = filepath.Join(t.TempDir(), "sessions.db")
	cfg.Upstream.BaseURL = upstream.URL
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	db, err := storage.InitDB(cfg.Session.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sm := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, cfg.CookieSecure(), cfg.CookieSameSite(), db)

	srv, err := New(cfg, zerolog.Nop(), sm, authclient.New(cfg.LoginURL(), 0))
	require.NoError(t, err)

	return srv.Handler()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func loginForm(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestLoginFlowWithCSRF(t *testing.T) {
	h := newTestServer(t, nil)

	page := serve(h, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Equal(t, "no-store", page.Header().Get("Cache-Control"))

	match := csrfMeta.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2, "csrf meta tag missing")
	token := html.UnescapeString(match[1])

	t.Run("post without token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm("a@b.c", "pw").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range page.Result().Cookies() {
			req.AddCookie(c)
		}

		assert.Equal(t, http.StatusForbidden, serve(h, req).Code)
	})

	t.Run("htmx post without token gets a toast", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm("a@b.c", "pw").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		for _, c := range page.Result().Cookies() {
			req.AddCookie(c)
		}

		w := serve(h, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "#toaster", w.Header().Get("HX-Retarget"))
		assert.Contains(t, w.Body.String(), "toast-destructive")
	})

	t.Run("htmx post with token signs in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm("a@b.c", "pw").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("HX-Request", "true")
		req.Header.Set("X-CSRF-Token", token)
		for _, c := range page.Result().Cookies() {
			req.AddCookie(c)
		}

		w := serve(h, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `data-redirect="/dashboard"`)

		dash := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		for _, c := range w.Result().Cookies() {
			dash.AddCookie(c)
		}
		dw := serve(h, dash)
		assert.Equal(t, http.StatusOK, dw.Code)
		assert.Contains(t, dw.Body.String(), "Olá, 1")
	})
}

func TestRoutes(t *testing.T) {
	h := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Security.CSRFEnabled = false
	})

	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		location string
	}{
		{"landing", http.MethodGet, "/", http.StatusOK, ""},
		{"register page", http.MethodGet, "/register", http.StatusOK, ""},
		{"back link", http.MethodGet, "/login/home", http.StatusSeeOther, "/"},
		{"register link", http.MethodPost, "/login/register", http.StatusSeeOther, "/register"},
		{"dashboard requires auth", http.MethodGet, "/dashboard", http.StatusSeeOther, "/login"},
		{"logout", http.MethodGet, "/logout", http.StatusSeeOther, "/login"},
		{"static", http.MethodGet, "/static/css/app.css", http.StatusOK, ""},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, ""},
		{"unknown", http.MethodGet, "/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	h := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Security.CSRFEnabled = false
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm("a@b.c", "pw").Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "198.51.100.7:4000"
		return serve(h, req).Code
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(loginForm("a@b.c", "pw").Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.RemoteAddr = "198.51.100.7:4000"
	w := serve(h, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "#toaster", w.Header().Get("HX-Retarget"))
	assert.Contains(t, w.Body.String(), "Muitas tentativas")

	// the login page itself is not limited
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/login", nil)).Code)
}
