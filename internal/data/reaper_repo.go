package data

import (
	"context"

	"github.com/target/mmk-rpc-api/internal/core"
)

// ReaperRepo adapts the session and pre-auth token repositories to core.ReaperRepository.
type ReaperRepo struct {
	Sessions *SessionRepo
	Tokens   *PreAuthTokenRepo
}

// DeleteExpiredSessions removes one batch of expired sessions.
func (r *ReaperRepo) DeleteExpiredSessions(ctx context.Context, params core.DeleteExpiredParams) (int64, error) {
	return r.Sessions.DeleteExpired(ctx, params.Now, params.BatchSize)
}

// DeleteExpiredPreAuthTokens removes one batch of expired pre-auth tokens.
func (r *ReaperRepo) DeleteExpiredPreAuthTokens(ctx context.Context, params core.DeleteExpiredParams) (int64, error) {
	return r.Tokens.DeleteExpired(ctx, params.Now, params.BatchSize)
}
