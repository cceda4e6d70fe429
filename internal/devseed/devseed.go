// Package devseed loads users, grants and the permission hierarchy from a YAML fixture.
// Seeding is idempotent: existing users are left in place and re-granting is a no-op.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// Fixture is the document a seed file decodes into.
//
//	permissions:
//	  - key: admin
//	  - key: permissions.manage
//	    parent: admin
//	users:
//	  - username: alice
//	    password_hash: 5e884898da...
//	    admin: true
//	    grants: [admin]
type Fixture struct {
	Permissions []PermissionSeed `yaml:"permissions"`
	Users       []UserSeed       `yaml:"users"`
}

// PermissionSeed defines one hierarchy node.
type PermissionSeed struct {
	Key         string `yaml:"key"`
	Parent      string `yaml:"parent"`
	Description string `yaml:"description"`
}

// UserSeed defines one user and their direct grants.
type UserSeed struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Admin        bool     `yaml:"admin"`
	Inactive     bool     `yaml:"inactive"`
	Grants       []string `yaml:"grants"`
}

// Summary counts what a seed run changed.
type Summary struct {
	Permissions  int
	UsersCreated int
	UsersKept    int
	Grants       int
}

// Load reads and validates the fixture at path.
func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a fixture, rejecting unknown fields.
func Parse(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return &fx, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	keys := make(map[string]bool, len(fx.Permissions))
	for i, p := range fx.Permissions {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return fmt.Errorf("permissions[%d]: key is required", i)
		}
		if keys[key] {
			return fmt.Errorf("permissions[%d]: duplicate key %q", i, key)
		}
		if strings.TrimSpace(p.Parent) == key {
			return fmt.Errorf("permissions[%d]: %q cannot be its own parent", i, key)
		}
		keys[key] = true
	}

	names := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		name := strings.TrimSpace(u.Username)
		if name == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if names[name] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, name)
		}
		if strings.TrimSpace(u.PasswordHash) == "" {
			return fmt.Errorf("users[%d]: password_hash is required", i)
		}
		names[name] = true
	}
	return nil
}

// orderedPermissions returns the fixture's permissions with every parent defined in the
// fixture placed before its children. Parents outside the fixture must already exist.
func (fx *Fixture) orderedPermissions() ([]domainauth.Permission, error) {
	byKey := make(map[string]PermissionSeed, len(fx.Permissions))
	for _, p := range fx.Permissions {
		byKey[strings.TrimSpace(p.Key)] = p
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(byKey))
	out := make([]domainauth.Permission, 0, len(byKey))

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("permission %q is part of a cycle", key)
		}
		state[key] = visiting
		p := byKey[key]
		parent := strings.TrimSpace(p.Parent)
		if _, inFixture := byKey[parent]; parent != "" && inFixture {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[key] = done
		out = append(out, domainauth.Permission{Key: key, Parent: parent, Description: p.Description})
		return nil
	}

	for _, p := range fx.Permissions {
		if err := visit(strings.TrimSpace(p.Key)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Deps groups the storage ports a seed run writes through.
type Deps struct {
	Users       core.UserRepository
	Permissions core.PermissionRepository
	Tx          core.Transactor
	Logger      *slog.Logger
}

// NewDeps builds seeding dependencies backed by Postgres repositories.
func NewDeps(db *sql.DB, logger *slog.Logger) Deps {
	return Deps{
		Users:       data.NewUserRepo(db),
		Permissions: data.NewPermissionRepo(db),
		Tx:          data.NewTransactor(db),
		Logger:      logger,
	}
}

// Run applies fx in a single transaction. Any failure rolls the whole fixture back.
func Run(ctx context.Context, d Deps, fx *Fixture) (Summary, error) {
	var sum Summary
	if fx == nil {
		return sum, errors.New("seed fixture is required")
	}
	if d.Users == nil || d.Permissions == nil || d.Tx == nil {
		return sum, errors.New("seed dependencies are incomplete")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devseed")

	perms, err := fx.orderedPermissions()
	if err != nil {
		return sum, err
	}

	err = data.WithTx(ctx, d.Tx, func(ctx context.Context) error {
		sum = Summary{}
		for _, p := range perms {
			if err := d.Permissions.Define(ctx, p); err != nil {
				return fmt.Errorf("define permission %q: %w", p.Key, err)
			}
			sum.Permissions++
		}
		for _, u := range fx.Users {
			if err := seedUser(ctx, d, u, &sum, logger); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	logger.InfoContext(ctx, "dev seed applied",
		"permissions", sum.Permissions,
		"users_created", sum.UsersCreated,
		"users_kept", sum.UsersKept,
		"grants", sum.Grants)
	return sum, nil
}

func seedUser(ctx context.Context, d Deps, seed UserSeed, sum *Summary, logger *slog.Logger) error {
	username := strings.TrimSpace(seed.Username)
	user, err := d.Users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, data.ErrUserNotFound):
		user, err = d.Users.Create(ctx, domainauth.CreateUserRequest{
			Username:     username,
			PasswordHash: seed.PasswordHash,
			IsAdmin:      seed.Admin,
		})
		if err != nil {
			return fmt.Errorf("create user %q: %w", username, err)
		}
		sum.UsersCreated++
		logger.DebugContext(ctx, "seeded user", "username", username, "user_id", user.ID)
	case err != nil:
		return fmt.Errorf("look up user %q: %w", username, err)
	default:
		sum.UsersKept++
	}

	if user.Active == seed.Inactive {
		if _, err := d.Users.SetActive(ctx, user.ID, !seed.Inactive); err != nil {
			return fmt.Errorf("set active for %q: %w", username, err)
		}
	}

	for _, key := range seed.Grants {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		created, err := d.Permissions.Grant(ctx, user.ID, key)
		if err != nil {
			return fmt.Errorf("grant %q to %q: %w", key, username, err)
		}
		if created {
			sum.Grants++
		}
	}
	return nil
}
