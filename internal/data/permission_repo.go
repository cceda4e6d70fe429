package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	apperrors "github.com/target/mmk-rpc-api/internal/errors"
)

// PermissionRepo implements core.PermissionRepository over Postgres.
type PermissionRepo struct {
	DB *sql.DB
}

// NewPermissionRepo creates a new PermissionRepo.
func NewPermissionRepo(db *sql.DB) *PermissionRepo {
	return &PermissionRepo{DB: db}
}

// ListGranted returns the keys granted directly to userID, sorted.
func (r *PermissionRepo) ListGranted(ctx context.Context, userID string) ([]string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	rows, err := Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT permission_key FROM user_permissions WHERE user_id = $1 ORDER BY permission_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return keys, nil
}

// ListHierarchy returns every defined permission, sorted by key.
func (r *PermissionRepo) ListHierarchy(ctx context.Context) ([]domainauth.Permission, error) {
	rows, err := Conn(ctx, r.DB).QueryContext(ctx,
		`SELECT key, COALESCE(parent_key, ''), description FROM permissions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var out []domainauth.Permission
	for rows.Next() {
		var p domainauth.Permission
		if err := rows.Scan(&p.Key, &p.Parent, &p.Description); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return out, nil
}

// Define creates p or updates its parent and description.
func (r *PermissionRepo) Define(ctx context.Context, p domainauth.Permission) error {
	p.Key = strings.TrimSpace(p.Key)
	if p.Key == "" {
		return apperrors.ValidationField("key", "permission key is required")
	}
	var parent sql.NullString
	if p.Parent = strings.TrimSpace(p.Parent); p.Parent != "" {
		parent = sql.NullString{String: p.Parent, Valid: true}
	}
	_, err := Conn(ctx, r.DB).ExecContext(ctx, `
		INSERT INTO permissions (key, parent_key, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET parent_key = EXCLUDED.parent_key, description = EXCLUDED.description`,
		p.Key, parent, p.Description)
	if err != nil {
		return fmt.Errorf("define permission: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Grant gives key to userID. It reports false when the grant already existed.
func (r *PermissionRepo) Grant(ctx context.Context, userID, key string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, ErrUserNotFound
	}
	n, err := execCount(ctx, Conn(ctx, r.DB), `
		INSERT INTO user_permissions (user_id, permission_key)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, key)
	if err != nil {
		return false, fmt.Errorf("grant permission: %w", apperrors.MapDBError(err))
	}
	return n > 0, nil
}

// Revoke removes a direct grant. It reports false when there was none.
func (r *PermissionRepo) Revoke(ctx context.Context, userID, key string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	n, err := execCount(ctx, Conn(ctx, r.DB),
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_key = $2`, userID, key)
	if err != nil {
		return false, fmt.Errorf("revoke permission: %w", err)
	}
	return n > 0, nil
}
