package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-rpc-api/internal/core"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// SessionRepo implements core.SessionRepository over Postgres.
type SessionRepo struct {
	DB *sql.DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

const sessionSelect = `
	SELECT s.id, s.user_id, u.username, s.token, u.is_admin, s.ip, s.user_agent, s.created_at, s.expires_at
	FROM sessions s
	JOIN users u ON u.id = s.user_id`

func scanSession(row rowScanner) (*domainauth.Session, error) {
	var s domainauth.Session
	err := row.Scan(&s.ID, &s.UserID, &s.Username, &s.Token, &s.IsAdmin,
		&s.Client.IP, &s.Client.UserAgent, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a session and returns its ID.
func (r *SessionRepo) Create(ctx context.Context, params core.CreateSessionParams) (string, error) {
	var id string
	err := Conn(ctx, r.DB).QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token, ip, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		params.UserID, params.Token, params.Client.IP, params.Client.UserAgent,
		params.CreatedAt, params.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// GetByToken returns the unexpired session for token. Sessions of deactivated users are not live.
func (r *SessionRepo) GetByToken(ctx context.Context, token string, now time.Time) (*domainauth.Session, error) {
	s, err := scanSession(Conn(ctx, r.DB).QueryRowContext(ctx,
		sessionSelect+` WHERE s.token = $1 AND s.expires_at > $2 AND u.active`, token, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return s, nil
}

// GetByID returns the session with id regardless of expiry.
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domainauth.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	s, err := scanSession(Conn(ctx, r.DB).QueryRowContext(ctx, sessionSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Extend moves the expiry forward to at. Concurrent renewals never move it backwards.
func (r *SessionRepo) Extend(ctx context.Context, id string, at time.Time) (time.Time, error) {
	var expires time.Time
	err := Conn(ctx, r.DB).QueryRowContext(ctx, `
		UPDATE sessions SET expires_at = GREATEST(expires_at, $2)
		WHERE id = $1
		RETURNING expires_at`, id, at).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrSessionNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("extend session: %w", err)
	}
	return expires, nil
}

// Delete removes the session with id.
func (r *SessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	n, err := execCount(ctx, Conn(ctx, r.DB), `DELETE FROM sessions WHERE id = $1`, id)
	return n > 0, err
}

// DeleteOthers removes every session of userID except exceptID. An empty exceptID
// removes all of them.
func (r *SessionRepo) DeleteOthers(ctx context.Context, userID, exceptID string) (int64, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	return execCount(ctx, Conn(ctx, r.DB),
		`DELETE FROM sessions WHERE user_id = $1 AND ($2::text = '' OR id::text <> $2::text)`, userID, exceptID)
}

// DeleteExpired removes up to limit sessions that expired at or before now.
// A non-positive limit removes all of them.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	return execCount(ctx, Conn(ctx, r.DB), `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
		)`, now, batchLimit(limit))
}

func execCount(ctx context.Context, conn DBTX, query string, args ...any) (int64, error) {
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func batchLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}
