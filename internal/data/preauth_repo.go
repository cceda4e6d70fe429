package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// PreAuthTokenRepo implements core.PreAuthTokenRepository over Postgres.
type PreAuthTokenRepo struct {
	DB *sql.DB
}

// NewPreAuthTokenRepo creates a new PreAuthTokenRepo.
func NewPreAuthTokenRepo(db *sql.DB) *PreAuthTokenRepo {
	return &PreAuthTokenRepo{DB: db}
}

// Issue stores tok as the only token of its client binding, replacing any
// token issued earlier. Concurrent issues for one binding leave exactly one row.
func (r *PreAuthTokenRepo) Issue(ctx context.Context, tok domainauth.PreAuthToken) error {
	_, err := Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO preauth_tokens (token, ip, user_agent, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ip, user_agent) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = now()`,
		tok.Token, tok.Client.IP, tok.Client.UserAgent, tok.ExpiresAt)
	if err != nil {
		return fmt.Errorf("issue pre-auth token: %w", err)
	}
	return nil
}

// GetLive returns the unexpired token issued to client.
func (r *PreAuthTokenRepo) GetLive(
	ctx context.Context,
	client domainauth.ClientBinding,
	now time.Time,
) (*domainauth.PreAuthToken, error) {
	tok := domainauth.PreAuthToken{Client: client}
	err := Conn(ctx, r.DB).QueryRowContext(ctx, `
		SELECT token, expires_at FROM preauth_tokens
		WHERE ip = $1 AND user_agent = $2 AND expires_at > $3`, client.IP, client.UserAgent, now).Scan(&tok.Token, &tok.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pre-auth token: %w", err)
	}
	return &tok, nil
}

// DeleteToken removes one token and reports how many rows went. A count of zero
// means another login consumed it first or a newer token replaced it.
func (r *PreAuthTokenRepo) DeleteToken(ctx context.Context, token string) (int64, error) {
	n, err := execCount(ctx, Conn(ctx, r.DB), `DELETE FROM preauth_tokens WHERE token = $1`, token)
	if err != nil {
		return 0, fmt.Errorf("delete pre-auth token: %w", err)
	}
	return n, nil
}

// DeleteExpired removes up to limit tokens that expired at or before now.
func (r *PreAuthTokenRepo) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	return execCount(ctx, Conn(ctx, r.DB), `
		DELETE FROM preauth_tokens WHERE token IN (
			SELECT token FROM preauth_tokens WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2
		)`, now, batchLimit(limit))
}
