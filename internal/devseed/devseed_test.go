package devseed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/mocks"
)

const fixtureYAML = `
permissions:
  - key: permissions.manage
    parent: admin
    description: Edit the hierarchy
  - key: admin
  - key: reports.read
users:
  - username: alice
    password_hash: ABCDEF
    admin: true
    grants: [admin]
  - username: bob
    password_hash: "123456"
    inactive: true
    grants: [reports.read, " "]
`

type recordingTx struct{ committed, rolledBack bool }

func (r *recordingTx) Commit() error   { r.committed = true; return nil }
func (r *recordingTx) Rollback() error { r.rolledBack = true; return nil }

type recordingTransactor struct{ tx *recordingTx }

func (r *recordingTransactor) Begin(ctx context.Context) (context.Context, core.Tx, error) {
	r.tx = &recordingTx{}
	return ctx, r.tx, nil
}

func TestParse(t *testing.T) {
	fx, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	require.Len(t, fx.Permissions, 3)
	require.Len(t, fx.Users, 2)
	assert.True(t, fx.Users[0].Admin)
	assert.True(t, fx.Users[1].Inactive)

	ordered, err := fx.orderedPermissions()
	require.NoError(t, err)
	keys := make([]string, 0, len(ordered))
	for _, p := range ordered {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"admin", "permissions.manage", "reports.read"}, keys)

	empty, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Users)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"unknown field", "users:\n  - username: a\n    password: x\n", "field password not found"},
		{"missing key", "permissions:\n  - parent: admin\n", "key is required"},
		{"duplicate key", "permissions:\n  - key: a\n  - key: a\n", "duplicate key"},
		{"self parent", "permissions:\n  - key: a\n    parent: a\n", "own parent"},
		{"missing hash", "users:\n  - username: a\n", "password_hash is required"},
		{"duplicate user", "users:\n  - {username: a, password_hash: x}\n  - {username: a, password_hash: y}\n", "duplicate username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOrderedPermissionsDetectsCycle(t *testing.T) {
	fx := &Fixture{Permissions: []PermissionSeed{{Key: "a", Parent: "b"}, {Key: "b", Parent: "a"}}}
	_, err := fx.orderedPermissions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	fx, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, fx.Users, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	perms := mocks.NewMockPermissionRepository(ctrl)
	tx := &recordingTransactor{}

	fx, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	gomock.InOrder(
		perms.EXPECT().Define(gomock.Any(), domainauth.Permission{Key: "admin"}).Return(nil),
		perms.EXPECT().Define(gomock.Any(), domainauth.Permission{Key: "permissions.manage", Parent: "admin", Description: "Edit the hierarchy"}).Return(nil),
		perms.EXPECT().Define(gomock.Any(), domainauth.Permission{Key: "reports.read"}).Return(nil),
	)

	users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, data.ErrUserNotFound)
	users.EXPECT().Create(gomock.Any(), domainauth.CreateUserRequest{Username: "alice", PasswordHash: "ABCDEF", IsAdmin: true}).
		Return(&domainauth.User{ID: "u-alice", Username: "alice", Active: true, IsAdmin: true}, nil)
	perms.EXPECT().Grant(gomock.Any(), "u-alice", "admin").Return(true, nil)

	users.EXPECT().GetByUsername(gomock.Any(), "bob").Return(&domainauth.User{ID: "u-bob", Username: "bob", Active: true}, nil)
	users.EXPECT().SetActive(gomock.Any(), "u-bob", false).Return(true, nil)
	perms.EXPECT().Grant(gomock.Any(), "u-bob", "reports.read").Return(false, nil)

	sum, err := Run(context.Background(), Deps{Users: users, Permissions: perms, Tx: tx}, fx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Permissions: 3, UsersCreated: 1, UsersKept: 1, Grants: 1}, sum)
	assert.True(t, tx.tx.committed)
	assert.False(t, tx.tx.rolledBack)
}

func TestRunRollsBackOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	perms := mocks.NewMockPermissionRepository(ctrl)
	tx := &recordingTransactor{}

	fx := &Fixture{Users: []UserSeed{{Username: "carol", PasswordHash: "aa", Grants: []string{"ghost"}}}}
	users.EXPECT().GetByUsername(gomock.Any(), "carol").Return(&domainauth.User{ID: "u-carol", Active: true}, nil)
	perms.EXPECT().Grant(gomock.Any(), "u-carol", "ghost").Return(false, errors.New("foreign key violation"))

	sum, err := Run(context.Background(), Deps{Users: users, Permissions: perms, Tx: tx}, fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `grant "ghost" to "carol"`)
	assert.Equal(t, Summary{}, sum)
	assert.True(t, tx.tx.rolledBack)
	assert.False(t, tx.tx.committed)
}

func TestRunRequiresDeps(t *testing.T) {
	_, err := Run(context.Background(), Deps{}, &Fixture{})
	require.Error(t, err)
	_, err = Run(context.Background(), Deps{}, nil)
	require.Error(t, err)
}
