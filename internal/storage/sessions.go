package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shindakun/loginportal/internal/models"
)

// ErrSessionNotFound is returned when no row matches the requested session id
var ErrSessionNotFound = errors.New("session not found")

// SaveSession inserts or replaces a session row
func SaveSession(db *sql.DB, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	var user any
	if len(session.User) > 0 {
		user = string(session.User)
	}

	query := `
		INSERT INTO sessions (id, token, refresh_token, user_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			refresh_token = excluded.refresh_token,
			user_json = excluded.user_json,
			expires_at = excluded.expires_at
	`

	_, err := db.Exec(query,
		session.ID,
		session.Token,
		session.RefreshToken,
		user,
		session.ExpiresAt.Unix(),
		session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession loads a session by id
func GetSession(db *sql.DB, id string) (*models.Session, error) {
	var (
		session   models.Session
		user      sql.NullString
		expiresAt int64
		createdAt int64
	)

	query := `
		SELECT id, token, refresh_token, user_json, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`

	err := db.QueryRow(query, id).Scan(
		&session.ID,
		&session.Token,
		&session.RefreshToken,
		&user,
		&expiresAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}

	if user.Valid {
		session.User = []byte(user.String)
	}
	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)

	return &session, nil
}

// DeleteSession removes a session row. Deleting a missing id is not an error.
func DeleteSession(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session that expired at or before now
func DeleteExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// CountSessions returns the number of stored sessions
func CountSessions(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
