package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"github.com/shindakun/loginportal/internal/metrics"
	"github.com/shindakun/loginportal/internal/models"
	"github.com/shindakun/loginportal/internal/storage"
)

const (
	sessionName         = "loginportal-session"
	sessionKeySessionID = "session_id"
)

// ErrNoSession is returned when the request carries no usable session
var ErrNoSession = errors.New("no session")

type contextKey struct{}

// SessionManager is the session container of the application. It is created
// once at startup and shared by every handler that needs auth state: the login
// screen writes it, protected pages read it, logout clears it.
type SessionManager struct {
	store  *sessions.CookieStore
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// InitSessions creates a new session manager with HTTP-only cookies.
// maxAge is in seconds and bounds both the cookie and the stored session.
func InitSessions(secret string, maxAge int, secure bool, sameSite http.SameSite, db *sql.DB) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true, // Prevent JavaScript access
		Secure:   secure,
		SameSite: sameSite,
	}

	return &SessionManager{
		store:  store,
		db:     db,
		maxAge: time.Duration(maxAge) * time.Second,
		now:    time.Now,
	}
}

// SetAuth stores the token triple of a successful login as a fresh session and
// points the cookie at it. The session the cookie referenced before is dropped
// only after the new one is stored; a failed call leaves it untouched.
func (sm *SessionManager) SetAuth(w http.ResponseWriter, r *http.Request, token, refreshToken string, user json.RawMessage) (*models.Session, error) {
	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil {
		// A cookie signed with an old secret is replaced rather than rejected
		log.Debug().Err(err).Msg("discarding unreadable session cookie")
	}

	oldID, _ := cookieSession.Values[sessionKeySessionID].(string)

	now := sm.now()
	expiresAt := now.Add(sm.maxAge)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expiresAt) {
		expiresAt = exp
	}

	session := &models.Session{
		ID:           uuid.New().String(),
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}

	if err := storage.SaveSession(sm.db, session); err != nil {
		return nil, err
	}

	cookieSession.Values[sessionKeySessionID] = session.ID
	cookieSession.Options.MaxAge = cookieMaxAge(expiresAt.Sub(now))
	if err := cookieSession.Save(r, w); err != nil {
		if delErr := storage.DeleteSession(sm.db, session.ID); delErr != nil {
			log.Warn().Err(delErr).Str("session_id", session.ID).Msg("failed to remove unsaved session")
		}
		return nil, fmt.Errorf("failed to save cookie session: %w", err)
	}

	// The previous session goes only once the new one is in place
	if oldID != "" && oldID != session.ID {
		if err := storage.DeleteSession(sm.db, oldID); err != nil {
			log.Warn().Err(err).Str("session_id", oldID).Msg("failed to delete replaced session")
		}
	}

	return session, nil
}

// cookieMaxAge rounds the remaining lifetime up to whole seconds. MaxAge 0 would
// turn the cookie into a browser-session cookie that outlives its row.
func cookieMaxAge(remaining time.Duration) int {
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// GetSession retrieves session data from cookie and database
func (sm *SessionManager) GetSession(r *http.Request) (*models.Session, error) {
	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie session: %w", err)
	}

	sessionID, ok := cookieSession.Values[sessionKeySessionID].(string)
	if !ok || sessionID == "" {
		return nil, ErrNoSession
	}

	session, err := storage.GetSession(sm.db, sessionID)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if !sm.now().Before(session.ExpiresAt) {
		if err := storage.DeleteSession(sm.db, session.ID); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to delete expired session")
		}
		metrics.SessionsCleared.Inc()
		return nil, ErrNoSession
	}

	return session, nil
}

// ClearSession removes session from cookie and database (logout)
func (sm *SessionManager) ClearSession(w http.ResponseWriter, r *http.Request) error {
	cookieSession, err := sm.store.Get(r, sessionName)
	if err != nil {
		// If we can't read the session, there is nothing to clear
		return nil
	}

	if sessionID, ok := cookieSession.Values[sessionKeySessionID].(string); ok && sessionID != "" {
		if err := storage.DeleteSession(sm.db, sessionID); err != nil {
			return err
		}
		metrics.SessionsCleared.Inc()
	}

	delete(cookieSession.Values, sessionKeySessionID)
	cookieSession.Options.MaxAge = -1
	if err := cookieSession.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear cookie session: %w", err)
	}

	return nil
}

// StartCleanup purges expired sessions every interval until ctx is done
func (sm *SessionManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := storage.DeleteExpiredSessions(sm.db, sm.now())
				if err != nil {
					log.Error().Err(err).Msg("session cleanup failed")
					continue
				}
				if removed > 0 {
					metrics.SessionsCleared.Add(float64(removed))
					log.Info().Int64("sessions", removed).Msg("purged expired sessions")
				}
			}
		}
	}()
}

// ForRequest binds the manager to one request/response pair so it can act as
// the store of a login form.
func (sm *SessionManager) ForRequest(w http.ResponseWriter, r *http.Request) *RequestStore {
	return &RequestStore{sm: sm, w: w, r: r}
}

// RequestStore writes a session through the response of a single request
type RequestStore struct {
	sm      *SessionManager
	w       http.ResponseWriter
	r       *http.Request
	session *models.Session
}

// SetAuth implements login.SessionStore
func (rs *RequestStore) SetAuth(token, refreshToken string, user json.RawMessage) error {
	session, err := rs.sm.SetAuth(rs.w, rs.r, token, refreshToken, user)
	if err != nil {
		return err
	}
	rs.session = session
	return nil
}

// Session returns the session written by SetAuth, nil before that
func (rs *RequestStore) Session() *models.Session {
	return rs.session
}

// GetSessionFromContext retrieves session from request context
func GetSessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(contextKey{}).(*models.Session)
	return session, ok
}

// SetSessionInContext stores session in request context
func SetSessionInContext(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, session)
}
