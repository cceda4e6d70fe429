package modules

import (
	"context"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// UserManage guards user administration.
const UserManage = "users.manage"

// UserManager is the user functionality the user methods need.
type UserManager interface {
	Create(ctx context.Context, req domainauth.CreateUserRequest) (*domainauth.User, error)
	Get(ctx context.Context, id string) (*domainauth.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	ChangePassword(ctx context.Context, id, keepSessionID, passwordHash string) error
}

// Users returns the user administration methods.
func Users(users UserManager) rpc.Module {
	m := userModule{users: users}
	userID := param.Spec{Key: "user_id", Type: param.TypeUUID}

	return rpc.Module{
		Name: "users",
		Methods: []rpc.Descriptor{
			{
				Route:           "/users/create",
				RequiresSession: true,
				Permissions:     []string{UserManage},
				Transactional:   true,
				Params: []param.Spec{
					{Key: "username", Type: param.TypeString, MinLength: param.Length(3), MaxLength: param.Length(64)},
					{Key: "password_hash", Type: param.TypeHex64},
					{Key: "is_admin", Type: param.TypeBool, Optional: true, Default: param.DefaultTo(param.BoolValue(false))},
				},
				Handler: rpc.HandlerFunc(m.create),
			},
			{
				Route:           "/users/get",
				RequiresSession: true,
				Permissions:     []string{UserManage},
				Params:          []param.Spec{userID},
				Handler:         rpc.HandlerFunc(m.get),
			},
			{
				Route:           "/users/set-active",
				RequiresSession: true,
				Permissions:     []string{UserManage},
				Transactional:   true,
				Params:          []param.Spec{userID, {Key: "active", Type: param.TypeBool}},
				Handler:         rpc.HandlerFunc(m.setActive),
			},
			{
				Route:           "/users/change-password",
				RequiresSession: true,
				Transactional:   true,
				Params:          []param.Spec{{Key: "password_hash", Type: param.TypeHex64}},
				Handler:         rpc.HandlerFunc(m.changePassword),
			},
		},
	}
}

type userModule struct {
	users UserManager
}

func (m userModule) create(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	u, err := m.users.Create(ctx, domainauth.CreateUserRequest{
		Username:     call.Params.String("username"),
		PasswordHash: call.Params.String("password_hash"),
		IsAdmin:      call.Params.Bool("is_admin"),
	})
	if err != nil {
		return failure(err)
	}
	return rpc.OK(u), nil
}

func (m userModule) get(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	u, err := m.users.Get(ctx, call.Params.String("user_id"))
	if err != nil {
		return failure(err)
	}
	return rpc.OK(u), nil
}

func (m userModule) setActive(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	if err := m.users.SetActive(ctx, call.Params.String("user_id"), call.Params.Bool("active")); err != nil {
		return failure(err)
	}
	return rpc.OK(nil), nil
}

// changePassword applies to the caller's own account and keeps only the current session.
func (m userModule) changePassword(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	if err := m.users.ChangePassword(ctx, call.UserID(), call.Session.ID, call.Params.String("password_hash")); err != nil {
		return failure(err)
	}
	return rpc.OK(nil), nil
}
