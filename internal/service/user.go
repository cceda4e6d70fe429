package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	apperrors "github.com/target/mmk-rpc-api/internal/errors"
)

// UserServiceOptions groups dependencies for UserService.
type UserServiceOptions struct {
	Users    core.UserRepository    // Required
	Sessions core.SessionRepository // Required: sessions are revoked on credential changes
	Logger   *slog.Logger
}

// UserService manages login-capable users.
type UserService struct {
	users    core.UserRepository
	sessions core.SessionRepository
	logger   *slog.Logger
}

// NewUserService constructs a UserService.
func NewUserService(opts UserServiceOptions) (*UserService, error) {
	if opts.Users == nil {
		return nil, errors.New("UserRepository is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("SessionRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: opts.Users, sessions: opts.Sessions, logger: logger.With("component", "user_service")}, nil
}

// Create registers a user. A taken username is a conflict.
func (s *UserService) Create(ctx context.Context, req domainauth.CreateUserRequest) (*domainauth.User, error) {
	req.Normalize()
	if req.Username == "" {
		return nil, apperrors.ValidationField("username", "username is required")
	}
	u, err := s.users.Create(ctx, req)
	if errors.Is(err, data.ErrUsernameExists) {
		return nil, &apperrors.AppError{
			Code: apperrors.ErrCodeConflict, Message: "username is already taken", Field: "username", Cause: err,
		}
	}
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id string) (*domainauth.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, data.ErrUserNotFound) {
		return nil, apperrors.NotFoundf("user %s not found", id)
	}
	return u, err
}

// SetActive enables or disables logins for the user. Disabled users' sessions stop
// resolving immediately and are deleted.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	ok, err := s.users.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("user %s not found", id)
	}
	if !active {
		if _, err := s.sessions.DeleteOthers(ctx, id, ""); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
	}
	return nil
}

// ChangePassword stores a new password digest and ends every other session of the user.
func (s *UserService) ChangePassword(ctx context.Context, id, keepSessionID, passwordHash string) error {
	ok, err := s.users.SetPasswordHash(ctx, id, strings.TrimSpace(passwordHash))
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFoundf("user %s not found", id)
	}
	if _, err := s.sessions.DeleteOthers(ctx, id, keepSessionID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
