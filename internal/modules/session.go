package modules

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
	"github.com/target/mmk-rpc-api/internal/service"
)

// SessionManager is the session functionality the session methods need.
type SessionManager interface {
	IssuePreAuthToken(ctx context.Context, client domainauth.ClientBinding) (string, error)
	Login(ctx context.Context, req service.LoginRequest) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) (bool, error)
	LogoutOthers(ctx context.Context, userID, exceptSessionID string) (bool, error)
	KeepAlive(ctx context.Context, sessionID string) (time.Time, error)
}

var loginKinds = map[error]rpc.ErrorKind{
	service.ErrUserNotFound:  rpc.KindUserNotFound,
	service.ErrUserInactive:  rpc.KindUserInactive,
	service.ErrTokenMissing:  rpc.KindTokenMissing,
	service.ErrWrongPassword: rpc.KindWrongPassword,
}

// Session returns the session methods.
//
// Login is not transactional at the pipeline level: the service scopes its own writes
// so that a pre-auth token reissued after a wrong password survives the failure.
func Session(sessions SessionManager) rpc.Module {
	m := sessionModule{sessions: sessions}
	return rpc.Module{
		Name: "session",
		Methods: []rpc.Descriptor{
			{
				Route:             "/session/token",
				RequiresNoSession: true,
				Handler:           rpc.HandlerFunc(m.token),
			},
			{
				Route:             "/session/login",
				RequiresNoSession: true,
				Params: []param.Spec{
					{Key: "username", Type: param.TypeString, MaxLength: param.Length(64)},
					{Key: "password", Type: param.TypeHex64},
				},
				Handler: rpc.HandlerFunc(m.login),
			},
			{
				Route:           "/session/logout",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.logout),
			},
			{
				Route:           "/session/logout-others",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.logoutOthers),
			},
			{
				Route:           "/session/keepalive",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.keepAlive),
			},
			{
				Route:           "/session/info",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.info),
			},
		},
	}
}

type sessionModule struct {
	sessions SessionManager
}

func (m sessionModule) token(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	tok, err := m.sessions.IssuePreAuthToken(ctx, call.Client)
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(map[string]string{"token": tok}), nil
}

func (m sessionModule) login(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	sess, err := m.sessions.Login(ctx, service.LoginRequest{
		Username: call.Params.String("username"),
		Digest:   call.Params.String("password"),
		Client:   call.Client,
	})
	if err != nil {
		resp, fault := failureKind(err, loginKinds)
		var loginErr *service.LoginError
		if errors.As(err, &loginErr) {
			resp = resp.WithToken(loginErr.Token)
		}
		return resp, fault
	}
	return rpc.OK(sess).WithSession(sess), nil
}

func (m sessionModule) logout(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	ok, err := m.sessions.Logout(ctx, call.Session.ID)
	if err != nil {
		return rpc.Response{}, err
	}
	if !ok {
		return rpc.Fail("Session could not be closed"), nil
	}
	return rpc.OK(nil).WithSession(nil), nil
}

func (m sessionModule) logoutOthers(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	ok, err := m.sessions.LogoutOthers(ctx, call.Session.UserID, call.Session.ID)
	if err != nil {
		return rpc.Response{}, err
	}
	if !ok {
		return rpc.Fail("Other sessions could not be closed"), nil
	}
	return rpc.OK(nil), nil
}

func (m sessionModule) keepAlive(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	expires, err := m.sessions.KeepAlive(ctx, call.Session.ID)
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(map[string]time.Time{"expires_at": expires}), nil
}

func (m sessionModule) info(_ context.Context, call rpc.Call) (rpc.Response, error) {
	return rpc.OK(call.Session), nil
}
