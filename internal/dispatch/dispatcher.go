package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// SessionEstablisher resolves and renews the session named by a bearer token.
type SessionEstablisher interface {
	Establish(ctx context.Context, token string) (*domainauth.Session, error)
}

// Inbound is a call as delivered by a transport.
type Inbound struct {
	Route  string
	Inputs map[string]any
	Token  string
	Client domainauth.ClientBinding
}

// DispatcherOptions groups dependencies for Dispatcher.
type DispatcherOptions struct {
	Registry *rpc.Registry      // Required: every routable method, multicall included
	Pipeline *Pipeline          // Required
	Sessions SessionEstablisher // Required
	Logger   *slog.Logger
}

// Dispatcher is the single entry point transports call.
type Dispatcher struct {
	registry *rpc.Registry
	pipeline *Pipeline
	sessions SessionEstablisher
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("Registry is required")
	case opts.Pipeline == nil:
		return nil, errors.New("Pipeline is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionEstablisher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: opts.Registry,
		pipeline: opts.Pipeline,
		sessions: opts.Sessions,
		logger:   logger.With("component", "dispatcher"),
	}, nil
}

// Routes lists every routable method.
func (d *Dispatcher) Routes() []string { return d.registry.Routes() }

// Dispatch resolves the route and the caller's session, then runs the pipeline.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) rpc.Response {
	desc, ok := d.registry.Lookup(in.Route)
	if !ok {
		return rpc.FailKind(rpc.KindMethodUnknown, fmt.Sprintf("Unknown method %q", rpc.NormalizeRoute(in.Route)))
	}

	var sess *domainauth.Session
	if in.Token != "" {
		var err error
		sess, err = d.sessions.Establish(ctx, in.Token)
		if err != nil {
			d.logger.ErrorContext(ctx, "session lookup failed", "route", desc.Route, "error", err)
			return rpc.FailKind(rpc.KindHandlerError, msgHandlerError)
		}
	}

	return d.pipeline.Execute(ctx, Request{
		Descriptor: desc,
		Inputs:     in.Inputs,
		Session:    sess,
		Client:     in.Client,
	})
}

// Build assembles the dispatcher for modules plus the multicall method.
func Build(
	modules []rpc.Module,
	pipeline *Pipeline,
	sessions SessionEstablisher,
	orch OrchestratorOptions,
	logger *slog.Logger,
) (*Dispatcher, error) {
	base, err := rpc.NewRegistry(modules...)
	if err != nil {
		return nil, err
	}
	orch.Registry = base
	orch.Pipeline = pipeline
	if orch.Logger == nil {
		orch.Logger = logger
	}
	o, err := NewOrchestrator(orch)
	if err != nil {
		return nil, err
	}
	full, err := base.With(o.Descriptor())
	if err != nil {
		return nil, err
	}
	return NewDispatcher(DispatcherOptions{
		Registry: full,
		Pipeline: pipeline,
		Sessions: sessions,
		Logger:   logger,
	})
}
