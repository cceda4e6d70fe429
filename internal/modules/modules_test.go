package modules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
	apperrors "github.com/target/mmk-rpc-api/internal/errors"
	"github.com/target/mmk-rpc-api/internal/service"
)

var bob = &domainauth.Session{ID: "sess-bob", UserID: "user-bob", Username: "bob", Token: "tok-bob"}

type fakeSessions struct {
	loginErr   error
	loggedOut  bool
	keepAlive  time.Time
	lastClient domainauth.ClientBinding
}

func (f *fakeSessions) IssuePreAuthToken(_ context.Context, c domainauth.ClientBinding) (string, error) {
	f.lastClient = c
	return "pre-1", nil
}

func (f *fakeSessions) Login(_ context.Context, _ service.LoginRequest) (*domainauth.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return bob, nil
}

func (f *fakeSessions) Logout(context.Context, string) (bool, error) { return f.loggedOut, nil }

func (f *fakeSessions) LogoutOthers(context.Context, string, string) (bool, error) { return true, nil }

func (f *fakeSessions) KeepAlive(context.Context, string) (time.Time, error) { return f.keepAlive, nil }

func lookup(t *testing.T, m rpc.Module, route string) rpc.Descriptor {
	t.Helper()
	reg, err := rpc.NewRegistry(m)
	require.NoError(t, err)
	d, ok := reg.Lookup(route)
	require.True(t, ok, route)
	return d
}

func call(t *testing.T, d rpc.Descriptor, sess *domainauth.Session, inputs map[string]any) (rpc.Response, error) {
	t.Helper()
	values, rejected := param.ValidateAll(d.Params, inputs)
	require.Nil(t, rejected, "inputs rejected: %+v", rejected)
	return d.Handler.Invoke(context.Background(), rpc.Call{
		Route: d.Route, Params: values, Session: sess, Client: domainauth.ClientBinding{IP: "192.0.2.1", UserAgent: "ua"},
	})
}

func TestAllModulesRegister(t *testing.T) {
	reg, err := rpc.NewRegistry(
		Session(&fakeSessions{}),
		Permissions(nil),
		Users(nil),
		System(&data.RealTimeProvider{}),
	)
	require.NoError(t, err)
	assert.Equal(t, 19, reg.Len())
	for _, route := range reg.Routes() {
		d, _ := reg.Lookup(route)
		if len(d.Permissions) > 0 {
			assert.True(t, d.RequiresSession, "%s declares permissions without a session", route)
		}
	}
}

func TestSession_Token(t *testing.T) {
	sessions := &fakeSessions{}
	resp, err := call(t, lookup(t, Session(sessions), "/session/token"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"token": "pre-1"}, resp.Data)
	assert.Equal(t, "192.0.2.1", sessions.lastClient.IP)
}

func TestSession_Login(t *testing.T) {
	digest := service.ExpectedDigest("00", "pre-1")
	inputs := map[string]any{"username": "bob", "password": digest}

	t.Run("success mutates session", func(t *testing.T) {
		resp, err := call(t, lookup(t, Session(&fakeSessions{}), "/session/login"), nil, inputs)
		require.NoError(t, err)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Session)
		assert.Same(t, bob, resp.Session.Session)
	})

	kinds := map[error]rpc.ErrorKind{
		service.ErrUserNotFound:  rpc.KindUserNotFound,
		service.ErrUserInactive:  rpc.KindUserInactive,
		service.ErrTokenMissing:  rpc.KindTokenMissing,
		service.ErrWrongPassword: rpc.KindWrongPassword,
	}
	for sentinel, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			resp, err := call(t, lookup(t, Session(&fakeSessions{loginErr: sentinel}), "/session/login"), nil, inputs)
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, kind, resp.Code)
			assert.Nil(t, resp.Session)
		})
	}

	t.Run("wrong password carries fresh token", func(t *testing.T) {
		loginErr := &service.LoginError{Err: service.ErrWrongPassword, Token: "pre-2"}
		resp, err := call(t, lookup(t, Session(&fakeSessions{loginErr: loginErr}), "/session/login"), nil, inputs)
		require.NoError(t, err)
		assert.Equal(t, rpc.KindWrongPassword, resp.Code)
		assert.Equal(t, "pre-2", resp.Token)
	})

	t.Run("storage fault propagates", func(t *testing.T) {
		boom := errors.New("db down")
		_, err := call(t, lookup(t, Session(&fakeSessions{loginErr: boom}), "/session/login"), nil, inputs)
		require.ErrorIs(t, err, boom)
	})
}

func TestSession_LogoutClearsSession(t *testing.T) {
	resp, err := call(t, lookup(t, Session(&fakeSessions{loggedOut: true}), "/session/logout"), bob, nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Session)
	assert.Nil(t, resp.Session.Session)

	resp, err = call(t, lookup(t, Session(&fakeSessions{}), "/session/logout"), bob, nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestSession_KeepAliveAndInfo(t *testing.T) {
	at := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	resp, err := call(t, lookup(t, Session(&fakeSessions{keepAlive: at}), "/session/keepalive"), bob, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"expires_at": at}, resp.Data)

	resp, err = call(t, lookup(t, Session(&fakeSessions{}), "/session/info"), bob, nil)
	require.NoError(t, err)
	assert.Same(t, bob, resp.Data)
}

type fakePermissions struct {
	held    []string
	defined []domainauth.Permission
	err     error
}

func (f *fakePermissions) EffectivePermissions(context.Context, string) ([]string, error) {
	return f.held, nil
}

func (f *fakePermissions) Descendants(context.Context, string) ([]string, error) { return nil, nil }

func (f *fakePermissions) HasPermissions(_ context.Context, _ string, req []string) (bool, error) {
	return domainauth.Covers(f.held, req), nil
}

func (f *fakePermissions) Grant(context.Context, string, string) (bool, error) { return true, f.err }

func (f *fakePermissions) Revoke(context.Context, string, string) (bool, error) { return false, f.err }

func (f *fakePermissions) Define(_ context.Context, p domainauth.Permission) error {
	f.defined = append(f.defined, p)
	return f.err
}

func (f *fakePermissions) List(context.Context) ([]domainauth.Permission, error) { return f.defined, nil }

func TestPermissions_Check(t *testing.T) {
	perms := &fakePermissions{held: []string{"reports", "reports.view"}}
	d := lookup(t, Permissions(perms), "/permissions/check")

	resp, err := call(t, d, bob, map[string]any{"keys": `["reports.view"]`})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"granted": true}, resp.Data)

	resp, err = call(t, d, bob, map[string]any{"keys": `["reports","billing"]`})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"granted": false}, resp.Data)

	resp, err = call(t, d, bob, map[string]any{"keys": `["reports", 3]`})
	require.NoError(t, err)
	assert.Equal(t, rpc.KindParamType, resp.Code)

	resp, err = call(t, d, bob, map[string]any{"keys": `{"a":1}`})
	require.NoError(t, err)
	assert.Equal(t, rpc.KindParamType, resp.Code)
}

func TestPermissions_Define(t *testing.T) {
	perms := &fakePermissions{}
	d := lookup(t, Permissions(perms), "/permissions/define")
	assert.True(t, d.Transactional)
	assert.Equal(t, []string{PermissionManage}, d.Permissions)

	resp, err := call(t, d, bob, map[string]any{"key": "reports.audit", "parent": "reports"})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	resp, err = call(t, d, bob, map[string]any{"key": "root", "parent": ""})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "", perms.defined[1].Parent)

	resp, err = call(t, d, bob, map[string]any{"key": "loop", "parent": "loop"})
	require.NoError(t, err)
	assert.Equal(t, rpc.KindParamRange, resp.Code)
	assert.Len(t, perms.defined, 2)
}

func TestPermissions_ClientFacingErrors(t *testing.T) {
	fk := &apperrors.AppError{Code: apperrors.ErrCodeForeignKey, Message: "the referenced permission does not exist"}
	d := lookup(t, Permissions(&fakePermissions{err: fk}), "/permissions/grant")

	resp, err := call(t, d, bob, map[string]any{"user_id": "9f1b7a52-1c1e-4c3b-8d6e-2f6a4b3c2d1e", "key": "ghost"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "the referenced permission does not exist", resp.Message)

	boom := errors.New("connection refused")
	d = lookup(t, Permissions(&fakePermissions{err: boom}), "/permissions/grant")
	_, err = call(t, d, bob, map[string]any{"user_id": "9f1b7a52-1c1e-4c3b-8d6e-2f6a4b3c2d1e", "key": "x"})
	require.ErrorIs(t, err, boom)
}

type fakeUsers struct {
	err         error
	passwordFor string
	kept        string
}

func (f *fakeUsers) Create(_ context.Context, req domainauth.CreateUserRequest) (*domainauth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domainauth.User{ID: "u-1", Username: req.Username, IsAdmin: req.IsAdmin, Active: true}, nil
}

func (f *fakeUsers) Get(context.Context, string) (*domainauth.User, error) { return nil, f.err }

func (f *fakeUsers) SetActive(context.Context, string, bool) error { return f.err }

func (f *fakeUsers) ChangePassword(_ context.Context, id, keep, _ string) error {
	f.passwordFor, f.kept = id, keep
	return f.err
}

func TestUsers_Create(t *testing.T) {
	hash := service.ExpectedDigest("", "x")
	resp, err := call(t, lookup(t, Users(&fakeUsers{}), "/users/create"), bob, map[string]any{
		"username": "carol", "password_hash": hash,
	})
	require.NoError(t, err)
	u := resp.Data.(*domainauth.User)
	assert.Equal(t, "carol", u.Username)
	assert.False(t, u.IsAdmin)

	conflict := &apperrors.AppError{Code: apperrors.ErrCodeConflict, Message: "username is already taken"}
	resp, err = call(t, lookup(t, Users(&fakeUsers{err: conflict}), "/users/create"), bob, map[string]any{
		"username": "carol", "password_hash": hash,
	})
	require.NoError(t, err)
	assert.Equal(t, "username is already taken", resp.Message)
}

func TestUsers_ChangePasswordTargetsCaller(t *testing.T) {
	users := &fakeUsers{}
	resp, err := call(t, lookup(t, Users(users), "/users/change-password"), bob, map[string]any{
		"password_hash": service.ExpectedDigest("", "y"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, bob.UserID, users.passwordFor)
	assert.Equal(t, bob.ID, users.kept)
}

func TestUsers_GetNotFound(t *testing.T) {
	resp, err := call(t, lookup(t, Users(&fakeUsers{err: apperrors.NotFoundf("user x not found")}), "/users/get"), bob,
		map[string]any{"user_id": "9f1b7a52-1c1e-4c3b-8d6e-2f6a4b3c2d1e"})
	require.NoError(t, err)
	assert.Equal(t, "user x not found", resp.Message)
}

func TestSystem(t *testing.T) {
	clock := data.NewFixedTimeProvider(time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	resp, err := call(t, lookup(t, System(clock), "/system/time"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{"now": clock.Now()}, resp.Data)

	resp, err = call(t, lookup(t, System(clock), "/system/ping"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Data)
}
