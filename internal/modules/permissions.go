package modules

import (
	"context"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// PermissionManage guards edits of grants and of the hierarchy.
const PermissionManage = "permissions.manage"

// PermissionResolver is the permission functionality the permission methods need.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)
	Descendants(ctx context.Context, key string) ([]string, error)
	HasPermissions(ctx context.Context, userID string, required []string) (bool, error)
	Grant(ctx context.Context, userID, key string) (bool, error)
	Revoke(ctx context.Context, userID, key string) (bool, error)
	Define(ctx context.Context, p domainauth.Permission) error
	List(ctx context.Context) ([]domainauth.Permission, error)
}

func permissionKey(key string) param.Spec {
	return param.Spec{Key: key, Type: param.TypeString, MaxLength: param.Length(128)}
}

// Permissions returns the permission methods.
func Permissions(perms PermissionResolver) rpc.Module {
	m := permissionModule{perms: perms}
	grantParams := []param.Spec{{Key: "user_id", Type: param.TypeUUID}, permissionKey("key")}

	return rpc.Module{
		Name: "permissions",
		Methods: []rpc.Descriptor{
			{
				Route:           "/permissions/mine",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.mine),
			},
			{
				Route:           "/permissions/check",
				RequiresSession: true,
				Params:          []param.Spec{{Key: "keys", Type: param.TypeJSON}},
				Handler:         rpc.HandlerFunc(m.check),
			},
			{
				Route:           "/permissions/descendants",
				RequiresSession: true,
				Params:          []param.Spec{permissionKey("key")},
				Handler:         rpc.HandlerFunc(m.descendants),
			},
			{
				Route:           "/permissions/list",
				RequiresSession: true,
				Handler:         rpc.HandlerFunc(m.list),
			},
			{
				Route:           "/permissions/grant",
				RequiresSession: true,
				Permissions:     []string{PermissionManage},
				Transactional:   true,
				Params:          grantParams,
				Handler:         rpc.HandlerFunc(m.grant),
			},
			{
				Route:           "/permissions/revoke",
				RequiresSession: true,
				Permissions:     []string{PermissionManage},
				Transactional:   true,
				Params:          grantParams,
				Handler:         rpc.HandlerFunc(m.revoke),
			},
			{
				Route:           "/permissions/define",
				RequiresSession: true,
				Permissions:     []string{PermissionManage},
				Transactional:   true,
				Params: []param.Spec{
					permissionKey("key"),
					{Key: "parent", Type: param.TypeString, Optional: true, NullValues: []string{"", "null"}, MaxLength: param.Length(128)},
					{Key: "description", Type: param.TypeString, Optional: true, MaxLength: param.Length(512)},
				},
				Handler: rpc.HandlerFunc(m.define),
			},
		},
	}
}

type permissionModule struct {
	perms PermissionResolver
}

func (m permissionModule) mine(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	keys, err := m.perms.EffectivePermissions(ctx, call.UserID())
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(keys), nil
}

func (m permissionModule) check(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	list, ok := call.Params.JSON("keys").([]any)
	if !ok {
		return rpc.FailKind(rpc.KindParamType, `parameter "keys" must be a JSON array of strings`), nil
	}
	keys := call.Params.Strings("keys")
	if len(keys) != len(list) {
		return rpc.FailKind(rpc.KindParamType, `parameter "keys" must be a JSON array of strings`), nil
	}
	granted, err := m.perms.HasPermissions(ctx, call.UserID(), keys)
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(map[string]bool{"granted": granted}), nil
}

func (m permissionModule) descendants(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	keys, err := m.perms.Descendants(ctx, call.Params.String("key"))
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(keys), nil
}

func (m permissionModule) list(ctx context.Context, _ rpc.Call) (rpc.Response, error) {
	perms, err := m.perms.List(ctx)
	if err != nil {
		return rpc.Response{}, err
	}
	return rpc.OK(perms), nil
}

func (m permissionModule) grant(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	created, err := m.perms.Grant(ctx, call.Params.String("user_id"), call.Params.String("key"))
	if err != nil {
		return failure(err)
	}
	return rpc.OK(map[string]bool{"created": created}), nil
}

func (m permissionModule) revoke(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	removed, err := m.perms.Revoke(ctx, call.Params.String("user_id"), call.Params.String("key"))
	if err != nil {
		return failure(err)
	}
	if !removed {
		return rpc.Fail("No such grant"), nil
	}
	return rpc.OK(nil), nil
}

func (m permissionModule) define(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	p := domainauth.Permission{
		Key:         call.Params.String("key"),
		Parent:      call.Params.String("parent"),
		Description: call.Params.String("description"),
	}
	if p.Parent == p.Key {
		return rpc.FailKind(rpc.KindParamRange, "a permission cannot be its own parent"), nil
	}
	if err := m.perms.Define(ctx, p); err != nil {
		return failure(err)
	}
	return rpc.OK(p), nil
}
