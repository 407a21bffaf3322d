package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shindakun/loginportal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func newManager(t *testing.T) *SessionManager {
	t.Helper()
	db, err := storage.InitDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return InitSessions(testSecret, 3600, false, http.SameSiteLaxMode, db)
}

// withCookies copies the Set-Cookie headers of rec onto a new request
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Subject:   "42",
	})
	s, err := token.SignedString([]byte("upstream-key"))
	require.NoError(t, err)
	return s
}

func TestSetAuthAndGetSession(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	session, err := sm.SetAuth(rec, req, "opaque-token", "refresh", json.RawMessage(`{"id":1}`))
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	got, err := sm.GetSession(withCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "opaque-token", got.Token)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.JSONEq(t, `{"id":1}`, string(got.User))
}

func TestSetAuthCapsExpiryAtTokenExp(t *testing.T) {
	sm := newManager(t)
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	rec := httptest.NewRecorder()
	session, err := sm.SetAuth(rec, httptest.NewRequest(http.MethodPost, "/login", nil), signedToken(t, exp), "", nil)
	require.NoError(t, err)
	assert.True(t, session.ExpiresAt.Equal(exp), "expected %v, got %v", exp, session.ExpiresAt)
}

func TestSetAuthRejectsExpiredToken(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	_, err := sm.SetAuth(rec, httptest.NewRequest(http.MethodPost, "/login", nil), signedToken(t, time.Now().Add(-time.Minute)), "", nil)
	assert.Error(t, err)
	assert.Empty(t, rec.Result().Cookies())
}

func TestSetAuthReplacesPreviousSession(t *testing.T) {
	sm := newManager(t)

	first := httptest.NewRecorder()
	old, err := sm.SetAuth(first, httptest.NewRequest(http.MethodPost, "/login", nil), "t1", "", nil)
	require.NoError(t, err)

	second := httptest.NewRecorder()
	req := withCookies(first)
	fresh, err := sm.SetAuth(second, req, "t2", "", nil)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)

	_, err = storage.GetSession(sm.db, old.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	got, err := sm.GetSession(withCookies(second))
	require.NoError(t, err)
	assert.Equal(t, "t2", got.Token)
}

func TestFailedSetAuthKeepsPreviousSession(t *testing.T) {
	sm := newManager(t)

	first := httptest.NewRecorder()
	old, err := sm.SetAuth(first, httptest.NewRequest(http.MethodPost, "/login", nil), "t1", "", nil)
	require.NoError(t, err)

	t.Run("expired token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := sm.SetAuth(rec, withCookies(first), signedToken(t, time.Now().Add(-time.Minute)), "", nil)
		require.Error(t, err)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("invalid user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := sm.SetAuth(rec, withCookies(first), "t2", "", json.RawMessage(`{`))
		require.Error(t, err)
	})

	got, err := sm.GetSession(withCookies(first))
	require.NoError(t, err)
	assert.Equal(t, old.ID, got.ID)
	assert.Equal(t, "t1", got.Token)
}

func TestSetAuthCookieMaxAgeRoundsUp(t *testing.T) {
	sm := newManager(t)
	exp := time.Now().Add(3 * time.Second).Truncate(time.Second)
	sm.now = func() time.Time { return exp.Add(-400 * time.Millisecond) }

	rec := httptest.NewRecorder()
	_, err := sm.SetAuth(rec, httptest.NewRequest(http.MethodPost, "/login", nil), signedToken(t, exp), "", nil)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 1, cookies[0].MaxAge)
}

func TestCookieMaxAge(t *testing.T) {
	assert.Equal(t, 1, cookieMaxAge(0))
	assert.Equal(t, 1, cookieMaxAge(300*time.Millisecond))
	assert.Equal(t, 2, cookieMaxAge(1500*time.Millisecond))
	assert.Equal(t, 3600, cookieMaxAge(time.Hour))
}

func TestGetSessionWithoutCookie(t *testing.T) {
	sm := newManager(t)

	_, err := sm.GetSession(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestGetSessionExpired(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	session, err := sm.SetAuth(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "t", "", nil)
	require.NoError(t, err)

	sm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = sm.GetSession(withCookies(rec))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = storage.GetSession(sm.db, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound, "expired session should be cleaned up")
}

func TestClearSession(t *testing.T) {
	sm := newManager(t)

	login := httptest.NewRecorder()
	session, err := sm.SetAuth(login, httptest.NewRequest(http.MethodPost, "/login", nil), "t", "", nil)
	require.NoError(t, err)

	logout := httptest.NewRecorder()
	require.NoError(t, sm.ClearSession(logout, withCookies(login)))

	_, err = storage.GetSession(sm.db, session.ID)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	cookies := logout.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0, "cookie should be expired")

	_, err = sm.GetSession(withCookies(login))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRequestStore(t *testing.T) {
	sm := newManager(t)
	rec := httptest.NewRecorder()
	rs := sm.ForRequest(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	assert.Nil(t, rs.Session())
	require.NoError(t, rs.SetAuth("t", "r", json.RawMessage(`{"id":7}`)))
	require.NotNil(t, rs.Session())

	got, err := sm.GetSession(withCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, rs.Session().ID, got.ID)
}

func TestStartCleanup(t *testing.T) {
	sm := newManager(t)
	rec := httptest.NewRecorder()
	session, err := sm.SetAuth(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "t", "", nil)
	require.NoError(t, err)

	sm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sm.StartCleanup(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := storage.GetSession(sm.db, session.ID)
		return err == storage.ErrSessionNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestSessionContext(t *testing.T) {
	_, ok := GetSessionFromContext(context.Background())
	assert.False(t, ok)
}

func TestTokenExpiry(t *testing.T) {
	_, ok := tokenExpiry("not-a-jwt")
	assert.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := tokenExpiry(signedToken(t, exp))
	assert.True(t, ok)
	assert.True(t, got.Equal(exp))
}
