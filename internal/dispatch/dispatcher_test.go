package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-rpc-api/config"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

type tokenSessions struct {
	byToken map[string]*domainauth.Session
	err     error
	calls   int
}

func (s *tokenSessions) Establish(_ context.Context, token string) (*domainauth.Session, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.byToken[token], nil
}

func whoami() rpc.Module {
	return rpc.Module{Name: "test", Methods: []rpc.Descriptor{{
		Route:           "/session/info",
		RequiresSession: true,
		Handler: rpc.HandlerFunc(func(_ context.Context, call rpc.Call) (rpc.Response, error) {
			return rpc.OK(call.Session.Username + "@" + call.Client.IP), nil
		}),
	}}}
}

func newTestDispatcher(t *testing.T, sessions SessionEstablisher) *Dispatcher {
	t.Helper()
	d, err := Build(
		[]rpc.Module{whoami()},
		newTestPipeline(t, staticAuthorizer{}, nil, nil),
		sessions,
		OrchestratorOptions{UnknownPolicy: config.UnknownRouteReport},
		nil,
	)
	require.NoError(t, err)
	return d
}

func TestDispatcher_Dispatch(t *testing.T) {
	sessions := &tokenSessions{byToken: map[string]*domainauth.Session{"tok-alice": alice}}
	d := newTestDispatcher(t, sessions)
	ctx := context.Background()
	client := domainauth.ClientBinding{IP: "198.51.100.4", UserAgent: "test"}

	got := d.Dispatch(ctx, Inbound{Route: "session/info/", Token: "tok-alice", Client: client})
	require.True(t, got.Success)
	assert.Equal(t, "alice@198.51.100.4", got.Data)

	got = d.Dispatch(ctx, Inbound{Route: "/session/info", Token: "stale", Client: client})
	assert.Equal(t, rpc.KindPermissionNoSession, got.Code)

	calls := sessions.calls
	got = d.Dispatch(ctx, Inbound{Route: "/session/info"})
	assert.Equal(t, rpc.KindPermissionNoSession, got.Code)
	assert.Equal(t, calls, sessions.calls, "no token, no lookup")
}

func TestDispatcher_UnknownRoute(t *testing.T) {
	d := newTestDispatcher(t, &tokenSessions{})
	got := d.Dispatch(context.Background(), Inbound{Route: "/reports/nope"})
	assert.Equal(t, rpc.KindMethodUnknown, got.Code)
	assert.Contains(t, got.Message, "/reports/nope")
}

func TestDispatcher_SessionFaultIsHandlerError(t *testing.T) {
	d := newTestDispatcher(t, &tokenSessions{err: errors.New("db down")})
	got := d.Dispatch(context.Background(), Inbound{Route: "/session/info", Token: "x"})
	assert.Equal(t, rpc.KindHandlerError, got.Code)
}

func TestDispatcher_MulticallIsRoutableButNotNestable(t *testing.T) {
	sessions := &tokenSessions{byToken: map[string]*domainauth.Session{"tok-alice": alice}}
	d := newTestDispatcher(t, sessions)
	assert.Equal(t, []string{"/multicall", "/session/info"}, d.Routes())

	got := d.Dispatch(context.Background(), Inbound{
		Route:  "/multicall",
		Token:  "tok-alice",
		Inputs: map[string]any{"calls": `[{"method":"/session/info"},{"method":"/multicall","params":{"calls":"[]"}}]`},
	})
	require.True(t, got.Success, got.Message)
	results := got.Data.([]rpc.Response)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, rpc.KindMethodUnknown, results[1].Code)
}
