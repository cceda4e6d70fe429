package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	apperrors "github.com/target/mmk-rpc-api/internal/errors"
)

// UserRepo implements core.UserRepository over Postgres.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userColumns = `id, username, password_hash, active, is_admin, last_login_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domainauth.User, error) {
	var (
		u         domainauth.User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Active, &u.IsAdmin, &lastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// Create inserts a new user. A taken username yields ErrUsernameExists.
func (r *UserRepo) Create(ctx context.Context, req domainauth.CreateUserRequest) (*domainauth.User, error) {
	req.Normalize()
	if req.Username == "" {
		return nil, apperrors.ValidationField("username", "username is required")
	}
	if req.PasswordHash == "" {
		return nil, apperrors.ValidationField("password_hash", "password hash is required")
	}

	row := Conn(ctx, r.DB).QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		req.Username, req.PasswordHash, req.IsAdmin)
	u, err := scanUser(row)
	if err != nil {
		if mapped := apperrors.MapDBError(err); apperrors.IsConflict(mapped) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns the user with id. Malformed IDs are reported as not found.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domainauth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername returns the user named username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domainauth.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, strings.TrimSpace(username))
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*domainauth.User, error) {
	u, err := scanUser(Conn(ctx, r.DB).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetActive toggles the active flag. It reports false when no such user exists.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return r.execAffected(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active)
}

// SetPasswordHash replaces the stored password digest.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id, hash string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return r.execAffected(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, strings.ToLower(hash))
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	ok, err := r.execAffected(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := Conn(ctx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
