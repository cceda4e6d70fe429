package modules

import (
	"context"
	"time"

	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// Clock supplies the server time reported by /system/time.
type Clock interface {
	Now() time.Time
}

// System returns liveness and clock methods open to any caller.
func System(clock Clock) rpc.Module {
	return rpc.Module{
		Name: "system",
		Methods: []rpc.Descriptor{
			{
				Route: "/system/ping",
				Handler: rpc.HandlerFunc(func(context.Context, rpc.Call) (rpc.Response, error) {
					return rpc.OK("pong"), nil
				}),
			},
			{
				Route: "/system/time",
				Handler: rpc.HandlerFunc(func(context.Context, rpc.Call) (rpc.Response, error) {
					return rpc.OK(map[string]time.Time{"now": clock.Now()}), nil
				}),
			},
		},
	}
}
