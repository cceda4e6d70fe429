package core

import (
	"context"
	"time"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, req domainauth.CreateUserRequest) (*domainauth.User, error)
	GetByID(ctx context.Context, id string) (*domainauth.User, error)
	GetByUsername(ctx context.Context, username string) (*domainauth.User, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	SetPasswordHash(ctx context.Context, id, hash string) (bool, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// CreateSessionParams groups parameters for SessionRepository.Create.
type CreateSessionParams struct {
	UserID    string
	Token     string
	Client    domainauth.ClientBinding
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository defines the interface for session data operations.
type SessionRepository interface {
	// Create inserts a session and returns its storage-assigned ID.
	Create(ctx context.Context, params CreateSessionParams) (string, error)
	// GetByToken returns the live session for token, joined with its user.
	GetByToken(ctx context.Context, token string, now time.Time) (*domainauth.Session, error)
	GetByID(ctx context.Context, id string) (*domainauth.Session, error)
	// Extend moves expiry to at unless it is already later, and returns the stored expiry.
	Extend(ctx context.Context, id string, at time.Time) (time.Time, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteOthers(ctx context.Context, userID, exceptID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// PreAuthTokenRepository defines the interface for pre-auth token data operations.
type PreAuthTokenRepository interface {
	// Issue stores tok, replacing the token of the same client binding.
	Issue(ctx context.Context, tok domainauth.PreAuthToken) error
	// GetLive returns the unexpired token for client.
	GetLive(ctx context.Context, client domainauth.ClientBinding, now time.Time) (*domainauth.PreAuthToken, error)
	// DeleteToken consumes one token. It returns the number of rows removed.
	DeleteToken(ctx context.Context, token string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// PermissionRepository defines the interface for permission grants and the hierarchy.
type PermissionRepository interface {
	// ListGranted returns the keys granted directly to userID.
	ListGranted(ctx context.Context, userID string) ([]string, error)
	// ListHierarchy returns every defined permission with its parent.
	ListHierarchy(ctx context.Context) ([]domainauth.Permission, error)
	Define(ctx context.Context, p domainauth.Permission) error
	Grant(ctx context.Context, userID, key string) (bool, error)
	Revoke(ctx context.Context, userID, key string) (bool, error)
}

// Tx is a storage transaction scoped to one connection.
type Tx interface {
	Commit() error
	Rollback() error
}

// Transactor opens transactions. The returned context carries the transaction so that
// repositories called with it run their statements on the same connection.
type Transactor interface {
	Begin(ctx context.Context) (context.Context, Tx, error)
}

// DeleteExpiredParams groups parameters for the reaper's cleanup passes.
type DeleteExpiredParams struct {
	Now       time.Time
	BatchSize int
}

// ReaperRepository defines the cleanup operations run by the reaper.
type ReaperRepository interface {
	DeleteExpiredSessions(ctx context.Context, params DeleteExpiredParams) (int64, error)
	DeleteExpiredPreAuthTokens(ctx context.Context, params DeleteExpiredParams) (int64, error)
}
